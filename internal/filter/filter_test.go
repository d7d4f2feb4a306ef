package filter

import (
	"testing"
	"time"

	"github.com/pable/codstats/internal/dataset"
	"github.com/pable/codstats/internal/model"
)

// fixture builds a dataset in a UTC+2 batch zone.
func fixture() *dataset.Dataset {
	loc := time.FixedZone("EET", 2*60*60)
	mk := func(op, gt, m string, utc time.Time) model.MatchRecord {
		return model.MatchRecord{Operator: op, GameType: gt, Map: m, UTCTimestamp: utc, LocalTime: utc.In(loc)}
	}
	return dataset.New([]model.MatchRecord{
		mk("Ghost", "TDM", "Rust", time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC)), // local Jan 2 00:30
		mk("Price", "TDM", "Shipment", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)),
		mk("Ghost", "Domination", "Rust", time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)),
	}, loc, model.Dispositions{Accepted: 3})
}

func TestApply_SelectAllIsIdentity(t *testing.T) {
	ds := fixture()
	view := Apply(ds, SelectAll(ds))
	if view.Len() != ds.Len() {
		t.Errorf("SelectAll view = %d records, want %d", view.Len(), ds.Len())
	}
}

func TestApply_EmptySetSelectsNothing(t *testing.T) {
	ds := fixture()
	for _, clear := range []func(*model.FilterSpec){
		func(s *model.FilterSpec) { s.Operators = nil },
		func(s *model.FilterSpec) { s.GameTypes = []string{} },
		func(s *model.FilterSpec) { s.Maps = nil },
	} {
		spec := SelectAll(ds)
		clear(&spec)
		if n := Apply(ds, spec).Len(); n != 0 {
			t.Errorf("expected empty view, got %d records", n)
		}
	}
	if Apply(nil, SelectAll(ds)).Len() != 0 {
		t.Error("nil dataset should give an empty view")
	}
}

func TestApply_Idempotent(t *testing.T) {
	ds := fixture()
	spec := SelectAll(ds)
	spec.Maps = []string{"Rust"}
	first := Apply(ds, spec)
	again := Apply(dataset.New(first.Records, ds.Location, ds.Dispositions), spec)
	if again.Len() != first.Len() || first.Len() != 2 {
		t.Errorf("re-filtering changed the view: %d -> %d", first.Len(), again.Len())
	}
}

func TestApply_InclusiveLocalWindow(t *testing.T) {
	ds := fixture()
	spec := SelectAll(ds)
	// naive local bounds; the first match is 00:30 local on Jan 2
	spec.Start = time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC)
	spec.End = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	view := Apply(ds, spec)
	if view.Len() != 2 {
		t.Fatalf("window matched %d records, want 2", view.Len())
	}
	if view.Records[0].Map != "Rust" || view.Records[1].Map != "Shipment" {
		t.Errorf("records out of dataset order: %v, %v", view.Records[0].Map, view.Records[1].Map)
	}
}

func TestSelectAll_Span(t *testing.T) {
	spec := SelectAll(fixture())
	if spec.Start.Day() != 2 || spec.Start.Hour() != 0 || spec.Start.Minute() != 30 {
		t.Errorf("start = %v, want local wall clock Jan 2 00:30", spec.Start)
	}
	if len(spec.Operators) != 2 || len(spec.GameTypes) != 2 || len(spec.Maps) != 2 {
		t.Errorf("categories = %v %v %v", spec.Operators, spec.GameTypes, spec.Maps)
	}
}

func TestParseBound(t *testing.T) {
	end, err := ParseBound("2024-01-02", true)
	if err != nil {
		t.Fatalf("ParseBound: %v", err)
	}
	if want := time.Date(2024, 1, 2, 23, 59, 59, 999999999, time.UTC); !end.Equal(want) {
		t.Errorf("upper date bound = %v, want %v", end, want)
	}
	start, _ := ParseBound("2024-01-02", false)
	if start.Hour() != 0 {
		t.Errorf("lower date bound = %v", start)
	}
	at, err := ParseBound("2024-01-02 18:45", true)
	if err != nil || at.Hour() != 18 || at.Minute() != 45 {
		t.Errorf("ParseBound with time = %v, %v", at, err)
	}
	if _, err := ParseBound("02.01.2024", false); err == nil {
		t.Error("expected error for unsupported format")
	}
}
