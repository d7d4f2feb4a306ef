// Package fetch downloads export documents over HTTP so they can be loaded
// straight from a URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pable/codstats/internal/ingest"
)

// maxDownloadSize bounds a downloaded document.
const maxDownloadSize = 64 << 20

// Client is a minimal HTTP client for export downloads.
type Client struct {
	token string
	http  *http.Client
}

// NewClient returns a client. A non-empty token is sent as a bearer token.
func NewClient(token string) *Client {
	return &Client{
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IsURL reports whether s looks like an http(s) URL rather than a file path.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Get downloads rawURL and returns the body with its declared kind. The
// kind comes from the URL's file name when it has a known extension and from
// the Content-Type header otherwise.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GET %s: HTTP %d", u.Redacted(), resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	if len(data) > maxDownloadSize {
		return nil, "", fmt.Errorf("GET %s: document exceeds %d bytes", u.Redacted(), maxDownloadSize)
	}
	return data, kindOf(u, resp.Header), nil
}

func kindOf(u *url.URL, h http.Header) string {
	if kind := ingest.KindFromFilename(path.Base(u.Path)); kind != "" && !strings.HasPrefix(kind, "+") {
		return kind
	}
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return h.Get("Content-Type")
	}
	switch h.Get("Content-Encoding") {
	case "zstd":
		return mediaType + "+zstd"
	}
	return mediaType
}
