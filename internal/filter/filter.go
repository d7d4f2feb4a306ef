// Package filter derives views of a dataset from a FilterSpec.
//
// Apply is a pure function: it reads the dataset, never writes to it, and
// returns records in dataset order.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pable/codstats/internal/dataset"
	"github.com/pable/codstats/internal/model"
)

// Apply returns the records of ds matching spec. An empty category set in
// spec selects nothing. The date window is inclusive and compares LocalTime
// against spec's naive bounds read in the dataset's location.
func Apply(ds *dataset.Dataset, spec model.FilterSpec) model.FilteredView {
	if ds == nil || len(spec.Operators) == 0 || len(spec.GameTypes) == 0 || len(spec.Maps) == 0 {
		return model.FilteredView{}
	}

	ops := toSet(spec.Operators)
	types := toSet(spec.GameTypes)
	maps := toSet(spec.Maps)
	start := Localize(spec.Start, ds.Location)
	end := Localize(spec.End, ds.Location)

	var out []model.MatchRecord
	for _, r := range ds.Records() {
		if _, ok := ops[r.Operator]; !ok {
			continue
		}
		if _, ok := types[r.GameType]; !ok {
			continue
		}
		if _, ok := maps[r.Map]; !ok {
			continue
		}
		if r.LocalTime.Before(start) || r.LocalTime.After(end) {
			continue
		}
		out = append(out, r)
	}
	return model.FilteredView{Records: out}
}

// Localize reads the wall clock of naive in loc, discarding whatever zone
// naive carried.
func Localize(naive time.Time, loc *time.Location) time.Time {
	return time.Date(naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), naive.Second(), naive.Nanosecond(), loc)
}

// SelectAll returns a spec selecting every category value and the whole time
// span of ds, the default selection after a load.
func SelectAll(ds *dataset.Dataset) model.FilterSpec {
	if ds == nil {
		return model.FilterSpec{}
	}
	cats := ds.Categories()
	lo, hi := ds.TimeSpan()
	return model.FilterSpec{
		Operators: cats.Operators,
		GameTypes: cats.GameTypes,
		Maps:      cats.Maps,
		Start:     naiveWall(lo),
		End:       naiveWall(hi),
	}
}

func naiveWall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func toSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// ParseBound reads a naive date or date-time bound for a FilterSpec. A bare
// date used as an upper bound covers the whole day.
func ParseBound(s string, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		if upper {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or YYYY-MM-DD HH:MM[:SS])", s)
}
