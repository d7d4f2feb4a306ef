package aggregator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pable/codstats/internal/metrics"
	"github.com/pable/codstats/internal/model"
)

// rec builds a match record at a local time with the given combat stats.
func rec(mapName string, at time.Time, kills, deaths, hits, shots int) model.MatchRecord {
	return model.MatchRecord{
		Operator:     "Ghost",
		GameType:     "Team Deathmatch",
		Map:          mapName,
		MatchOutcome: "win",
		UTCTimestamp: at.UTC(),
		MatchStart:   at,
		MatchEnd:     at.Add(10 * time.Minute),
		LocalTime:    at,
		Kills:        kills,
		Deaths:       deaths,
		Hits:         hits,
		Shots:        shots,
	}
}

func derive(records ...model.MatchRecord) []model.MatchMetrics {
	return metrics.Derive(model.FilteredView{Records: records})
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ---- Hour labels ----

func TestHourLabel(t *testing.T) {
	cases := map[int]string{
		0:  "12 AM",
		1:  "1 AM",
		11: "11 AM",
		12: "12 PM",
		13: "1 PM",
		23: "11 PM",
	}
	for h, want := range cases {
		if got := HourLabel(h); got != want {
			t.Errorf("HourLabel(%d) = %q, want %q", h, got, want)
		}
	}
}

// ---- Heatmap ----

func TestHeatmap_TuesdayAfternoon(t *testing.T) {
	// 2024-01-02 is a Tuesday.
	at := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	hm := ComputeHeatmap(derive(rec("Rust", at, 10, 5, 40, 100)))

	if hm.Empty {
		t.Fatal("expected non-empty heatmap")
	}
	if got := hm.Cell("Tuesday", "2 PM"); got != 1 {
		t.Errorf("Tuesday 2 PM = %d, want 1", got)
	}
	total := 0
	for _, row := range hm.Counts {
		for _, c := range row {
			total += c
		}
	}
	if total != 1 {
		t.Errorf("total count = %d, want 1", total)
	}
}

func TestHeatmap_FullGridWhenEmpty(t *testing.T) {
	hm := ComputeHeatmap(nil)
	if !hm.Empty {
		t.Error("expected Empty for no rows")
	}
	if len(hm.Days) != 7 || hm.Days[0] != "Monday" || hm.Days[6] != "Sunday" {
		t.Errorf("unexpected day order: %v", hm.Days)
	}
	if len(hm.Counts) != 7 || len(hm.Counts[3]) != 24 {
		t.Errorf("grid is %dx%d, want 7x24", len(hm.Counts), len(hm.Counts[3]))
	}
}

// ---- Map K/D ----

func TestMapKD_ZeroDeathsUsesKills(t *testing.T) {
	at := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	rows := derive(
		rec("Rust", at, 7, 0, 0, 0),
		rec("Rust", at, 3, 0, 0, 0),
		rec("Shipment", at, 4, 8, 0, 0),
	)
	got := ComputeMapKD(rows)
	if len(got.Maps) != 2 {
		t.Fatalf("expected 2 maps, got %d", len(got.Maps))
	}
	// ascending by KD
	if got.Maps[0].Map != "Shipment" || !almostEqual(got.Maps[0].KD, 0.5) {
		t.Errorf("first map = %+v, want Shipment 0.5", got.Maps[0])
	}
	if got.Maps[1].Map != "Rust" || !almostEqual(got.Maps[1].KD, 10) {
		t.Errorf("second map = %+v, want Rust 10", got.Maps[1])
	}
}

// ---- Hourly K/D ----

func TestHourlyKD_MeanPerHour(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	rows := derive(
		rec("Rust", day.Add(20*time.Hour), 4, 2, 0, 0),
		rec("Rust", day.Add(20*time.Hour+30*time.Minute), 1, 1, 0, 0),
		rec("Rust", day.Add(9*time.Hour), 3, 1, 0, 0),
	)
	got := ComputeHourlyKD(rows)
	if len(got.Hours) != 2 {
		t.Fatalf("expected 2 hours, got %d", len(got.Hours))
	}
	if got.Hours[0].Hour != 9 || !almostEqual(got.Hours[0].MeanKD, 3) {
		t.Errorf("hour 9 = %+v", got.Hours[0])
	}
	if got.Hours[1].Label != "8 PM" || !almostEqual(got.Hours[1].MeanKD, 1.5) || got.Hours[1].Matches != 2 {
		t.Errorf("hour 20 = %+v", got.Hours[1])
	}
}

// ---- Outcomes ----

func TestOutcomes_SortedByCount(t *testing.T) {
	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	a := rec("Rust", at, 1, 1, 0, 0)
	b := a
	b.MatchOutcome = "loss"
	c := a
	c.MatchOutcome = "loss"
	got := ComputeOutcomes(derive(a, b, c))
	if len(got.Counts) != 2 || got.Counts[0].Outcome != "loss" || got.Counts[0].Count != 2 {
		t.Errorf("outcomes = %+v", got.Counts)
	}
}

// ---- Histograms ----

func TestHistogram_CountsEveryValue(t *testing.T) {
	values := []float64{0, 0.1, 0.5, 0.9, 1}
	h := ComputeHistogram(values, 4)
	if len(h.Bins) != 4 {
		t.Fatalf("expected 4 bins, got %d", len(h.Bins))
	}
	if h.Total() != len(values) {
		t.Errorf("total = %d, want %d", h.Total(), len(values))
	}
	if h.Bins[3].Count != 2 {
		t.Errorf("last bin = %d, want 2 (max is inclusive)", h.Bins[3].Count)
	}
}

func TestHistogram_ConstantValuesWiden(t *testing.T) {
	h := ComputeHistogram([]float64{2, 2, 2}, 10)
	if !almostEqual(h.Bins[0].Lo, 1.5) || !almostEqual(h.Bins[9].Hi, 2.5) {
		t.Errorf("range = [%v, %v], want [1.5, 2.5]", h.Bins[0].Lo, h.Bins[9].Hi)
	}
	if h.Total() != 3 {
		t.Errorf("total = %d, want 3", h.Total())
	}
}

func TestHistogram_Empty(t *testing.T) {
	if h := ComputeHistogram(nil, 30); !h.Empty {
		t.Error("expected Empty for no values")
	}
}

func TestAccuracyValues_SkipsNoShots(t *testing.T) {
	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	got := AccuracyValues(derive(rec("Rust", at, 1, 1, 0, 0), rec("Rust", at, 1, 1, 20, 50)))
	if len(got) != 1 || !almostEqual(got[0], 0.4) {
		t.Errorf("accuracy values = %v, want [0.4]", got)
	}
}

// ---- Time series ----

func TestTimeSeries_Chronological(t *testing.T) {
	t1 := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	rows := derive(rec("Rust", t2, 2, 1, 0, 0), rec("Rust", t1, 1, 1, 0, 0))
	ts := ComputeTimeSeries(rows, Column{Name: "KD", Get: kdOf})
	pts := ts.Series[0].Points
	if !pts[0].Time.Equal(t1) || !almostEqual(pts[0].Value, 1) || !almostEqual(pts[1].Value, 2) {
		t.Errorf("points = %+v", pts)
	}
}

// ---- Damage trend ----

func TestLinearFit(t *testing.T) {
	slope, intercept, ok := linearFit([]float64{1, 2, 3}, []float64{3, 5, 7})
	if !ok || !almostEqual(slope, 2) || !almostEqual(intercept, 1) {
		t.Errorf("fit = (%v, %v, %v), want (2, 1, true)", slope, intercept, ok)
	}
}

func TestDamageEfficiency_NoTrendWithoutSpread(t *testing.T) {
	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	a := rec("Rust", at, 1, 1, 0, 0)
	a.DamageTaken, a.DamageDone = 500, 400
	b := a
	b.DamageDone = 900
	got := ComputeDamageEfficiency(derive(a, b))
	if got.Trend != nil {
		t.Errorf("expected no trend when damage taken is constant, got %+v", got.Trend)
	}
	if len(got.Points) != 2 {
		t.Errorf("expected 2 points, got %d", len(got.Points))
	}
}

// ---- Summary ----

func TestSummarize_LifetimeKD(t *testing.T) {
	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	s := Summarize([]model.MatchRecord{
		rec("Rust", at, 10, 5, 40, 100),
		rec("Rust", at, 0, 0, 0, 0),
	})
	if !almostEqual(s.KDRatio, 2.0) {
		t.Errorf("KD = %v, want 2.0", s.KDRatio)
	}
	if !almostEqual(s.AccuracyPct, 40) {
		t.Errorf("accuracy = %v, want 40", s.AccuracyPct)
	}
	if s.Wins != 2 || !almostEqual(s.WinRate, 100) {
		t.Errorf("wins = %d rate = %v", s.Wins, s.WinRate)
	}
	if got := s.PlayTimeText(); got != "0d 0h 20m" {
		t.Errorf("play time = %q, want 0d 0h 20m", got)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Matches != 0 || s.KDRatio != 0 || s.WinRate != 0 || s.AccuracyPct != 0 {
		t.Errorf("unexpected empty summary: %+v", s)
	}
}

func TestFormatPlayTime(t *testing.T) {
	d := 26*time.Hour + 5*time.Minute + 59*time.Second
	if got := FormatPlayTime(d); got != "1d 2h 5m" {
		t.Errorf("FormatPlayTime = %q, want 1d 2h 5m", got)
	}
}

// ---- Build ----

func TestBuild_AllStages(t *testing.T) {
	at := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	rows := derive(rec("Rust", at, 10, 5, 40, 100))
	agg, err := Build(context.Background(), rows, 5)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if agg.KDHist.Total() != 1 || agg.MapKD.Empty || agg.Activity.Cell("Tuesday", "2 PM") != 1 {
		t.Errorf("unexpected aggregates: %+v", agg)
	}
	if len(agg.Performance.Series) != 2 {
		t.Errorf("performance series = %d, want 2", len(agg.Performance.Series))
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, nil, 5); err == nil {
		t.Error("expected error from cancelled context")
	}
}
