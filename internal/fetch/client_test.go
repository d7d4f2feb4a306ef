package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGet_KindFromContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Write([]byte("a,b\n"))
	}))
	defer srv.Close()

	data, kind, err := NewClient("secret").Get(context.Background(), srv.URL+"/download")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "a,b\n" {
		t.Errorf("body = %q", data)
	}
	if kind != "text/csv" {
		t.Errorf("kind = %q, want text/csv", kind)
	}
}

func TestGet_KindFromPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0})
	}))
	defer srv.Close()

	_, kind, err := NewClient("").Get(context.Background(), srv.URL+"/exports/stats.html.zst")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if kind != "html+zstd" {
		t.Errorf("kind = %q, want html+zstd", kind)
	}
}

func TestGet_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, _, err := NewClient("").Get(context.Background(), srv.URL+"/missing.html"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestIsURL(t *testing.T) {
	if !IsURL("https://example.com/x.html") || IsURL("/tmp/x.html") {
		t.Error("IsURL misclassified input")
	}
}
