package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/pable/codstats/internal/model"
)

const header = "UTC Timestamp,Match Start Timestamp,Match End Timestamp,Operator,Game Type,Map,Match Outcome,Kills,Deaths,Hits,Shots,Headshots,Skill\n"

const twoMatches = header +
	"2024-01-02 14:00:00,2024-01-02 14:00:00,2024-01-02 14:10:00,Ghost,Team Deathmatch,Rust,win,10,5,40,100,2,1.5\n" +
	"2024-01-03 20:00:00,2024-01-03 20:00:00,2024-01-03 20:12:00,Price,Domination,Shipment,loss,0,0,0,0,0,0.5\n"

func newSession(t *testing.T, mirror Mirror) *Session {
	t.Helper()
	s, err := New(Options{Location: time.UTC, HistogramBins: 5, CacheSize: 8, Mirror: mirror, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func mustLoad(t *testing.T, s *Session, doc string) LoadOutcome {
	t.Helper()
	out, err := s.Load(context.Background(), []byte(doc), "csv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return out
}

type recordingMirror struct {
	mu    sync.Mutex
	calls int
	last  int
	err   error
}

func (m *recordingMirror) ReplaceMatches(_ context.Context, _ string, records []model.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.last = len(records)
	return nil
}

func TestLoad_Outcome(t *testing.T) {
	mirror := &recordingMirror{}
	s := newSession(t, mirror)
	out := mustLoad(t, s, twoMatches)

	if out.Dispositions.Accepted != 2 {
		t.Errorf("accepted = %d, want 2", out.Dispositions.Accepted)
	}
	if strings.Join(out.Maps, ",") != "Rust,Shipment" {
		t.Errorf("maps = %v", out.Maps)
	}
	if out.MinLocal.Hour() != 14 || out.MaxLocal.Day() != 3 {
		t.Errorf("span = %v .. %v", out.MinLocal, out.MaxLocal)
	}
	if out.Generation != 1 {
		t.Errorf("generation = %d, want 1", out.Generation)
	}
	if mirror.calls != 1 || mirror.last != 2 {
		t.Errorf("mirror calls = %d last = %d", mirror.calls, mirror.last)
	}
}

func TestLoad_FailureKeepsPreviousDataset(t *testing.T) {
	s := newSession(t, nil)
	first := mustLoad(t, s, twoMatches)

	_, err := s.Load(context.Background(), []byte("<html><body>nothing here</body></html>"), "html")
	var noRecords *model.NoRecordsFoundError
	if !errors.As(err, &noRecords) {
		t.Fatalf("expected NoRecordsFoundError, got %v", err)
	}

	_, err = s.Load(context.Background(), []byte("x"), "pdf")
	var unsupported *model.UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}

	if got := s.Dataset().ID.String(); got != first.DatasetID {
		t.Errorf("dataset changed after failed loads: %s != %s", got, first.DatasetID)
	}
}

func TestLoad_AllExcluded(t *testing.T) {
	s := newSession(t, nil)
	doc := header + "2024-01-02 14:00:00,2024-01-02 14:00:00,2024-01-02 14:10:00,Ghost,Training Course,Rust,win,1,1,1,1,0,1\n"
	_, err := s.Load(context.Background(), []byte(doc), "csv")
	var none *model.NoAcceptedRecordsError
	if !errors.As(err, &none) {
		t.Fatalf("expected NoAcceptedRecordsError, got %v", err)
	}
	if none.Dispositions.Excluded != 1 {
		t.Errorf("excluded = %d, want 1", none.Dispositions.Excluded)
	}
	if s.Dataset() != nil {
		t.Error("expected no dataset after a load with nothing accepted")
	}
}

func TestLoad_MirrorFailureKeepsPrevious(t *testing.T) {
	mirror := &recordingMirror{}
	s := newSession(t, mirror)
	first := mustLoad(t, s, twoMatches)

	mirror.err = errors.New("disk full")
	if _, err := s.Load(context.Background(), []byte(twoMatches), "csv"); err == nil {
		t.Fatal("expected mirror error")
	}
	if s.Dataset().ID.String() != first.DatasetID {
		t.Error("dataset replaced despite mirror failure")
	}
}

func TestQuery_NoDataset(t *testing.T) {
	s := newSession(t, nil)
	if _, err := s.Query(context.Background(), model.FilterSpec{}); !errors.Is(err, model.ErrNoDataset) {
		t.Errorf("expected ErrNoDataset, got %v", err)
	}
}

func TestQuery_DefaultFilter(t *testing.T) {
	s := newSession(t, nil)
	mustLoad(t, s, twoMatches)

	res, err := s.Query(context.Background(), s.DefaultFilter())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Filtered.Matches != 2 || res.Lifetime.Matches != 2 {
		t.Errorf("matches = %d / %d, want 2 / 2", res.Filtered.Matches, res.Lifetime.Matches)
	}
	// Kills [10, 0], Deaths [5, 0]
	if res.Lifetime.KDRatio != 2.0 {
		t.Errorf("lifetime KD = %v, want 2.0", res.Lifetime.KDRatio)
	}
	if res.Aggregates.Activity.Cell("Tuesday", "2 PM") != 1 {
		t.Error("expected one match on Tuesday at 2 PM")
	}
	if len(res.Rows) != 2 || res.Rows[0].Accuracy != 0.4 {
		t.Errorf("rows = %+v", res.Rows)
	}
}

func TestQuery_EmptySelection(t *testing.T) {
	s := newSession(t, nil)
	mustLoad(t, s, twoMatches)

	spec := s.DefaultFilter()
	spec.Maps = nil
	if _, err := s.Query(context.Background(), spec); !errors.Is(err, model.ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}

	spec = s.DefaultFilter()
	spec.Maps = []string{"Rust"}
	spec.Start = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	if _, err := s.Query(context.Background(), spec); !errors.Is(err, model.ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult for window after the only Rust match, got %v", err)
	}
}

func TestQuery_CacheInvalidatedOnReplace(t *testing.T) {
	s := newSession(t, nil)
	mustLoad(t, s, twoMatches)

	spec := s.DefaultFilter()
	first, err := s.Query(context.Background(), spec)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	again, _ := s.Query(context.Background(), spec)
	if again != first {
		t.Error("expected cached result for identical spec")
	}
	if s.CachedResults() != 1 {
		t.Errorf("cached = %d, want 1", s.CachedResults())
	}

	second := mustLoad(t, s, twoMatches)
	if s.CachedResults() != 0 {
		t.Errorf("cache not purged on replace: %d entries", s.CachedResults())
	}
	res, err := s.Query(context.Background(), spec)
	if err != nil {
		t.Fatalf("Query after reload: %v", err)
	}
	if res == first || res.DatasetID != second.DatasetID || res.Generation != 2 {
		t.Errorf("stale result after reload: %s gen %d", res.DatasetID, res.Generation)
	}
}

func TestQuery_SupersededQueryIsCancelled(t *testing.T) {
	s := newSession(t, nil)
	mustLoad(t, s, twoMatches)

	started := make(chan struct{})
	var once sync.Once
	s.beforeAggregate = func(ctx context.Context) {
		held := false
		once.Do(func() { held = true })
		if !held {
			return
		}
		close(started)
		<-ctx.Done()
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.Query(context.Background(), s.DefaultFilter())
		errc <- err
	}()
	<-started

	spec := s.DefaultFilter()
	spec.Maps = []string{"Rust"}
	if _, err := s.Query(context.Background(), spec); err != nil {
		t.Fatalf("superseding query: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superseded query did not return")
	}
}

const scenarioHTML = `<html><body>
<table>
<tr><th>UTC Timestamp</th><th>Match Start Timestamp</th><th>Match End Timestamp</th><th>Game Type</th><th>Map</th><th>Operator</th><th>Match Outcome</th><th>Kills</th><th>Deaths</th><th>Hits</th><th>Shots</th></tr>
<tr><td>2024-01-02 14:00:00</td><td>2024-01-02 14:00:00</td><td>2024-01-02 14:09:00</td><td>Team Deathmatch</td><td>Rust</td><td>Ghost</td><td>win</td><td>10</td><td>5</td><td>40</td><td>100</td></tr>
<tr><td>2024-01-02 15:00:00</td><td>2024-01-02 15:00:00</td><td>2024-01-02 15:05:00</td><td>Training Course</td><td>Rust</td><td>Ghost</td><td>win</td><td>3</td><td>0</td><td>3</td><td>3</td></tr>
</table>
</body></html>`

func TestLoad_ZstdHTMLScenario(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	payload := enc.EncodeAll([]byte(scenarioHTML), nil)
	enc.Close()

	s := newSession(t, nil)
	out, err := s.Load(context.Background(), payload, "text/html+zstd")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Dispositions.Accepted != 1 || out.Dispositions.Excluded != 1 {
		t.Errorf("dispositions = %+v, want 1 accepted and 1 excluded", out.Dispositions)
	}

	res, err := s.Query(context.Background(), s.DefaultFilter())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	row := res.Rows[0]
	if row.KDRatio != 2.0 || row.Accuracy != 0.4 {
		t.Errorf("block A: kd %v acc %v, want 2.0 and 0.4", row.KDRatio, row.Accuracy)
	}
}
