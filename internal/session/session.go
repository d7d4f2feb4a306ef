// Package session is the Load and Query boundary of the pipeline. A Session
// owns the current dataset, a bounded cache of query results and the
// cancellation of superseded queries.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/pable/codstats/internal/aggregator"
	"github.com/pable/codstats/internal/dataset"
	"github.com/pable/codstats/internal/extract"
	"github.com/pable/codstats/internal/filter"
	"github.com/pable/codstats/internal/ingest"
	"github.com/pable/codstats/internal/metrics"
	"github.com/pable/codstats/internal/model"
	"github.com/pable/codstats/internal/normalize"
)

const defaultCacheSize = 64

// Mirror receives every successfully loaded dataset before it becomes
// current. storage.DB implements it.
type Mirror interface {
	ReplaceMatches(ctx context.Context, datasetID string, records []model.MatchRecord) error
}

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	Exclusions    []string
	Location      *time.Location // zone LocalTime is derived in; nil = time.Local
	HistogramBins int
	CacheSize     int
	Mirror        Mirror
	Logger        zerolog.Logger
}

// LoadOutcome describes a successful load.
type LoadOutcome struct {
	DatasetID    string             `json:"dataset_id" yaml:"dataset_id"`
	Generation   uint64             `json:"generation" yaml:"generation"`
	Dispositions model.Dispositions `json:"dispositions" yaml:"dispositions"`
	Operators    []string           `json:"operators" yaml:"operators"`
	GameTypes    []string           `json:"game_types" yaml:"game_types"`
	Maps         []string           `json:"maps" yaml:"maps"`
	MinLocal     time.Time          `json:"min_local" yaml:"min_local"`
	MaxLocal     time.Time          `json:"max_local" yaml:"max_local"`
	Zone         string             `json:"zone" yaml:"zone"`
}

// QueryResult is everything computed for one FilterSpec. It is shared
// between callers through the cache and must be treated as read-only.
type QueryResult struct {
	DatasetID  string                 `json:"dataset_id" yaml:"dataset_id"`
	Generation uint64                 `json:"generation" yaml:"generation"`
	Filter     model.FilterSpec       `json:"filter" yaml:"filter"`
	Lifetime   aggregator.Summary     `json:"lifetime" yaml:"lifetime"`
	Filtered   aggregator.Summary     `json:"filtered" yaml:"filtered"`
	Aggregates *aggregator.Aggregates `json:"aggregates" yaml:"aggregates"`
	Rows       []model.MatchMetrics   `json:"matches" yaml:"matches"`
}

type cacheKey struct {
	id         uuid.UUID
	generation uint64
	filter     string
}

// Session is safe for concurrent use.
type Session struct {
	exclusions []string
	loc        *time.Location
	bins       int
	mirror     Mirror
	log        zerolog.Logger

	handle dataset.Handle
	cache  *lru.Cache[cacheKey, *QueryResult]

	loadMu sync.Mutex

	mu       sync.Mutex
	querySeq uint64
	inflight context.CancelFunc

	// beforeAggregate runs after filtering; tests use it to hold a query open.
	beforeAggregate func(ctx context.Context)
}

// New creates an empty session.
func New(opts Options) (*Session, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[cacheKey, *QueryResult](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	exclusions := opts.Exclusions
	if exclusions == nil {
		exclusions = normalize.DefaultExclusions
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Session{
		exclusions: exclusions,
		loc:        loc,
		bins:       opts.HistogramBins,
		mirror:     opts.Mirror,
		log:        opts.Logger,
		cache:      cache,
	}, nil
}

// Dataset returns the current dataset, or nil before the first load.
func (s *Session) Dataset() *dataset.Dataset {
	return s.handle.Current()
}

// Load ingests one export document and, if at least one record is accepted,
// makes it the current dataset. On any error the previous dataset stays
// current and the cache is untouched.
func (s *Session) Load(ctx context.Context, data []byte, kind string) (LoadOutcome, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	start := time.Now()
	doc, err := ingest.Decode(data, kind)
	if err != nil {
		return LoadOutcome{}, fmt.Errorf("load: %w", err)
	}
	blocks, err := extract.Extract(doc)
	if err != nil {
		return LoadOutcome{}, fmt.Errorf("load: %w", err)
	}

	loc := normalize.BatchLocation(s.loc, start)
	norm := normalize.New(s.exclusions, loc, s.log)
	records, disp, err := norm.Batch(ctx, blocks.Seq)
	if err != nil {
		return LoadOutcome{}, fmt.Errorf("load: %w", err)
	}
	if disp.Accepted == 0 {
		return LoadOutcome{Dispositions: disp}, &model.NoAcceptedRecordsError{Dispositions: disp}
	}

	ds := dataset.New(records, loc, disp)
	if s.mirror != nil {
		if err := s.mirror.ReplaceMatches(ctx, ds.ID.String(), ds.Records()); err != nil {
			return LoadOutcome{}, fmt.Errorf("load: mirror dataset: %w", err)
		}
	}
	s.handle.Replace(ds)
	s.cache.Purge()

	s.log.Info().
		Str("dataset", ds.ID.String()).
		Uint64("generation", ds.Generation).
		Str("kind", string(doc.Kind)).
		Int("blocks", blocks.Count).
		Int("accepted", disp.Accepted).
		Int("excluded", disp.Excluded).
		Int("rejected", disp.Rejected).
		Int("parse_failed", disp.ParseFailed).
		Dur("elapsed", time.Since(start)).
		Msg("dataset loaded")

	return outcomeOf(ds), nil
}

func outcomeOf(ds *dataset.Dataset) LoadOutcome {
	cats := ds.Categories()
	lo, hi := ds.TimeSpan()
	zone, _ := lo.Zone()
	return LoadOutcome{
		DatasetID:    ds.ID.String(),
		Generation:   ds.Generation,
		Dispositions: ds.Dispositions,
		Operators:    cats.Operators,
		GameTypes:    cats.GameTypes,
		Maps:         cats.Maps,
		MinLocal:     lo,
		MaxLocal:     hi,
		Zone:         zone,
	}
}

// Outcome describes the current dataset, or returns ErrNoDataset.
func (s *Session) Outcome() (LoadOutcome, error) {
	ds := s.handle.Current()
	if ds == nil {
		return LoadOutcome{}, model.ErrNoDataset
	}
	return outcomeOf(ds), nil
}

// DefaultFilter selects every category and the whole time span of the
// current dataset. It is the zero spec before the first load.
func (s *Session) DefaultFilter() model.FilterSpec {
	return filter.SelectAll(s.handle.Current())
}

// Query filters the current dataset and computes metrics, summaries and
// aggregates. Starting a query cancels any query still in flight; the
// superseded call returns an error wrapping context.Canceled. An empty view
// returns model.ErrEmptyResult.
func (s *Session) Query(ctx context.Context, spec model.FilterSpec) (*QueryResult, error) {
	ctx, done := s.supersede(ctx)
	defer done()

	ds := s.handle.Current()
	if ds == nil {
		return nil, model.ErrNoDataset
	}

	key := cacheKey{id: ds.ID, generation: ds.Generation, filter: spec.Key()}
	if res, ok := s.cache.Get(key); ok {
		s.log.Debug().Str("dataset", ds.ID.String()).Msg("query cache hit")
		return res, nil
	}
	s.log.Debug().Str("dataset", ds.ID.String()).Msg("query cache miss")

	view := filter.Apply(ds, spec)
	if view.Len() == 0 {
		return nil, model.ErrEmptyResult
	}
	if s.beforeAggregate != nil {
		s.beforeAggregate(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	rows := metrics.Derive(view)
	agg, err := aggregator.Build(ctx, rows, s.bins)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	res := &QueryResult{
		DatasetID:  ds.ID.String(),
		Generation: ds.Generation,
		Filter:     spec,
		Lifetime:   aggregator.Summarize(ds.Records()),
		Filtered:   aggregator.Summarize(view.Records),
		Aggregates: agg,
		Rows:       rows,
	}
	if s.handle.Current() == ds {
		s.cache.Add(key, res)
	}
	return res, nil
}

// supersede cancels the previous in-flight query and registers a new one.
// The returned func releases the registration.
func (s *Session) supersede(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.inflight != nil {
		s.inflight()
	}
	s.querySeq++
	seq := s.querySeq
	s.inflight = cancel
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if s.querySeq == seq {
			s.inflight = nil
		}
		s.mu.Unlock()
		cancel()
	}
}

// CachedResults reports how many query results are cached.
func (s *Session) CachedResults() int {
	return s.cache.Len()
}
