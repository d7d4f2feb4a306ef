// Package dataset holds the session's loaded match records. A Dataset never
// changes after construction; a Handle swaps whole datasets atomically.
package dataset

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pable/codstats/internal/model"
)

// Dataset is an immutable, identified collection of normalized records.
type Dataset struct {
	ID           uuid.UUID
	Generation   uint64
	Location     *time.Location // batch location LocalTime was derived in
	LoadedAt     time.Time
	Dispositions model.Dispositions

	records []model.MatchRecord
}

// New builds a dataset that owns a copy of records.
func New(records []model.MatchRecord, loc *time.Location, disp model.Dispositions) *Dataset {
	if loc == nil {
		loc = time.UTC
	}
	return &Dataset{
		ID:           uuid.New(),
		Location:     loc,
		LoadedAt:     time.Now(),
		Dispositions: disp,
		records:      append([]model.MatchRecord(nil), records...),
	}
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// Records returns the records. Callers must not modify the returned slice.
func (d *Dataset) Records() []model.MatchRecord { return d.records }

// All returns the whole dataset as a view.
func (d *Dataset) All() model.FilteredView {
	return model.FilteredView{Records: d.records}
}

// Categories holds the distinct categorical values of a dataset, sorted.
type Categories struct {
	Operators []string `json:"operators" yaml:"operators"`
	GameTypes []string `json:"game_types" yaml:"game_types"`
	Maps      []string `json:"maps" yaml:"maps"`
}

// Categories returns the sorted distinct operator, game type and map values.
func (d *Dataset) Categories() Categories {
	ops := make(map[string]struct{})
	types := make(map[string]struct{})
	maps := make(map[string]struct{})
	for i := range d.records {
		r := &d.records[i]
		ops[r.Operator] = struct{}{}
		types[r.GameType] = struct{}{}
		maps[r.Map] = struct{}{}
	}
	return Categories{Operators: keys(ops), GameTypes: keys(types), Maps: keys(maps)}
}

// TimeSpan returns the earliest and latest LocalTime. Both are zero for an
// empty dataset.
func (d *Dataset) TimeSpan() (min, max time.Time) {
	for i := range d.records {
		t := d.records[i].LocalTime
		if i == 0 || t.Before(min) {
			min = t
		}
		if i == 0 || t.After(max) {
			max = t
		}
	}
	return min, max
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Handle is the session's single reference to the current dataset. Readers
// take one snapshot per operation; Replace publishes a new dataset in one
// atomic step so no reader ever sees a half-replaced one.
type Handle struct {
	current    atomic.Pointer[Dataset]
	generation atomic.Uint64
}

// Current returns the current dataset, or nil before the first load.
func (h *Handle) Current() *Dataset {
	return h.current.Load()
}

// Replace stamps ds with the next generation and makes it current. The
// previous dataset is returned.
func (h *Handle) Replace(ds *Dataset) *Dataset {
	ds.Generation = h.generation.Add(1)
	return h.current.Swap(ds)
}
