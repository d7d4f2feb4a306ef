package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pable/codstats/internal/metrics"
	"github.com/pable/codstats/internal/model"
)

// DefaultBins is the histogram resolution used by the dashboard views.
const DefaultBins = 30

// Aggregates is every cross-record result computed for one filtered view.
type Aggregates struct {
	HourlyKD      HourlyKD         `json:"hourly_kd" yaml:"hourly_kd"`
	AccuracyHist  Histogram        `json:"accuracy_hist" yaml:"accuracy_hist"`
	KDHist        Histogram        `json:"kd_hist" yaml:"kd_hist"`
	SkillHist     Histogram        `json:"skill_hist" yaml:"skill_hist"`
	SkillSeries   TimeSeries       `json:"skill_series" yaml:"skill_series"`
	Performance   TimeSeries       `json:"performance_series" yaml:"performance_series"`
	HeadshotRatio TimeSeries       `json:"headshot_series" yaml:"headshot_series"`
	Damage        DamageEfficiency `json:"damage" yaml:"damage"`
	Outcomes      Outcomes         `json:"outcomes" yaml:"outcomes"`
	MapKD         MapPerformance   `json:"map_kd" yaml:"map_kd"`
	Activity      Heatmap          `json:"activity" yaml:"activity"`
}

// Build computes every aggregate over rows concurrently. It returns ctx's
// error if ctx is cancelled before all stages finish; results are never
// partially returned.
func Build(ctx context.Context, rows []model.MatchMetrics, bins int) (*Aggregates, error) {
	if bins <= 0 {
		bins = DefaultBins
	}
	var agg Aggregates
	g, ctx := errgroup.WithContext(ctx)

	stage := func(name string, fn func()) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fn()
			return nil
		})
	}

	stage("hourly kd", func() { agg.HourlyKD = ComputeHourlyKD(rows) })
	stage("accuracy histogram", func() { agg.AccuracyHist = ComputeHistogram(AccuracyValues(rows), bins) })
	stage("kd histogram", func() { agg.KDHist = ComputeHistogram(column(rows, kdOf), bins) })
	stage("skill histogram", func() { agg.SkillHist = ComputeHistogram(column(rows, skillOf), bins) })
	stage("skill series", func() { agg.SkillSeries = ComputeTimeSeries(rows, Column{"Skill", skillOf}) })
	stage("performance series", func() {
		agg.Performance = ComputeTimeSeries(rows, Column{"KD Ratio", kdOf}, Column{"Accuracy", accuracyOf})
	})
	stage("headshot series", func() { agg.HeadshotRatio = ComputeTimeSeries(rows, Column{"Headshot Ratio", headshotOf}) })
	stage("damage efficiency", func() { agg.Damage = ComputeDamageEfficiency(rows) })
	stage("outcomes", func() { agg.Outcomes = ComputeOutcomes(rows) })
	stage("map kd", func() { agg.MapKD = ComputeMapKD(rows) })
	stage("activity", func() { agg.Activity = ComputeHeatmap(rows) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &agg, nil
}

// ---- Hourly K/D ----

// HourKD is the mean K/D of matches started in one local hour.
type HourKD struct {
	Hour    int     `json:"hour" yaml:"hour"`
	Label   string  `json:"label" yaml:"label"`
	MeanKD  float64 `json:"mean_kd" yaml:"mean_kd"`
	Matches int     `json:"matches" yaml:"matches"`
}

// HourlyKD lists hours that have at least one match, ascending.
type HourlyKD struct {
	Empty bool     `json:"empty" yaml:"empty"`
	Hours []HourKD `json:"hours" yaml:"hours"`
}

// ComputeHourlyKD groups K/D by hour of day.
func ComputeHourlyKD(rows []model.MatchMetrics) HourlyKD {
	if len(rows) == 0 {
		return HourlyKD{Empty: true}
	}
	var sum [24]float64
	var n [24]int
	for i := range rows {
		sum[rows[i].Hour] += rows[i].KDRatio
		n[rows[i].Hour]++
	}
	var out HourlyKD
	for h := 0; h < 24; h++ {
		if n[h] == 0 {
			continue
		}
		out.Hours = append(out.Hours, HourKD{
			Hour:    h,
			Label:   HourLabel(h),
			MeanKD:  sum[h] / float64(n[h]),
			Matches: n[h],
		})
	}
	return out
}

// HourLabel renders an hour of day on a 12-hour clock: 0 -> "12 AM",
// 13 -> "1 PM".
func HourLabel(h int) string {
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d %s", h12, suffix)
}

// ---- Outcomes ----

// OutcomeCount is the number of matches with one outcome value.
type OutcomeCount struct {
	Outcome string `json:"outcome" yaml:"outcome"`
	Count   int    `json:"count" yaml:"count"`
}

// Outcomes is ordered by count descending, then outcome name.
type Outcomes struct {
	Empty  bool           `json:"empty" yaml:"empty"`
	Counts []OutcomeCount `json:"counts" yaml:"counts"`
}

// ComputeOutcomes counts each distinct match outcome.
func ComputeOutcomes(rows []model.MatchMetrics) Outcomes {
	if len(rows) == 0 {
		return Outcomes{Empty: true}
	}
	counts := make(map[string]int)
	for i := range rows {
		counts[rows[i].MatchOutcome]++
	}
	var out Outcomes
	for o, c := range counts {
		out.Counts = append(out.Counts, OutcomeCount{Outcome: o, Count: c})
	}
	sort.Slice(out.Counts, func(i, j int) bool {
		if out.Counts[i].Count != out.Counts[j].Count {
			return out.Counts[i].Count > out.Counts[j].Count
		}
		return out.Counts[i].Outcome < out.Counts[j].Outcome
	})
	return out
}

// ---- Per-map K/D ----

// MapKD is the pooled K/D on one map.
type MapKD struct {
	Map    string  `json:"map" yaml:"map"`
	Kills  int     `json:"kills" yaml:"kills"`
	Deaths int     `json:"deaths" yaml:"deaths"`
	KD     float64 `json:"kd" yaml:"kd"`
}

// MapPerformance is ordered by KD ascending, then map name.
type MapPerformance struct {
	Empty bool    `json:"empty" yaml:"empty"`
	Maps  []MapKD `json:"maps" yaml:"maps"`
}

// ComputeMapKD pools kills and deaths per map. A map without deaths divides
// by one, so its KD is its kill total.
func ComputeMapKD(rows []model.MatchMetrics) MapPerformance {
	if len(rows) == 0 {
		return MapPerformance{Empty: true}
	}
	byMap := make(map[string]*MapKD)
	for i := range rows {
		r := &rows[i]
		m := byMap[r.Map]
		if m == nil {
			m = &MapKD{Map: r.Map}
			byMap[r.Map] = m
		}
		m.Kills += r.Kills
		m.Deaths += r.Deaths
	}
	var out MapPerformance
	for _, m := range byMap {
		m.KD = metrics.Round(metrics.SafeRatio(float64(m.Kills), float64(m.Deaths), float64(m.Kills)), 2)
		out.Maps = append(out.Maps, *m)
	}
	sort.Slice(out.Maps, func(i, j int) bool {
		if out.Maps[i].KD != out.Maps[j].KD {
			return out.Maps[i].KD < out.Maps[j].KD
		}
		return out.Maps[i].Map < out.Maps[j].Map
	})
	return out
}

// ---- Activity heatmap ----

// DayOrder is the fixed Monday-first row order of the activity heatmap.
var DayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// Heatmap is a day-by-hour grid of match counts. Counts[d][h] is the number
// of matches on Days[d] during hour h; every cell is present.
type Heatmap struct {
	Empty  bool     `json:"empty" yaml:"empty"`
	Days   []string `json:"days" yaml:"days"`
	Hours  []string `json:"hours" yaml:"hours"`
	Counts [][]int  `json:"counts" yaml:"counts"`
}

// ComputeHeatmap pivots match counts by local weekday and hour.
func ComputeHeatmap(rows []model.MatchMetrics) Heatmap {
	hm := Heatmap{
		Empty:  len(rows) == 0,
		Days:   make([]string, len(DayOrder)),
		Hours:  make([]string, 24),
		Counts: make([][]int, len(DayOrder)),
	}
	rowOf := make(map[time.Weekday]int, len(DayOrder))
	for i, d := range DayOrder {
		hm.Days[i] = d.String()
		hm.Counts[i] = make([]int, 24)
		rowOf[d] = i
	}
	for h := range hm.Hours {
		hm.Hours[h] = HourLabel(h)
	}
	for i := range rows {
		hm.Counts[rowOf[rows[i].DayOfWeek]][rows[i].Hour]++
	}
	return hm
}

// Cell returns the count for a day and hour label, e.g. ("Tuesday", "2 PM").
func (hm Heatmap) Cell(day, hour string) int {
	for d, name := range hm.Days {
		if name != day {
			continue
		}
		for h, label := range hm.Hours {
			if label == hour {
				return hm.Counts[d][h]
			}
		}
	}
	return 0
}

// ---- column helpers ----

func kdOf(m *model.MatchMetrics) float64       { return m.KDRatio }
func skillOf(m *model.MatchMetrics) float64    { return m.Skill }
func accuracyOf(m *model.MatchMetrics) float64 { return m.Accuracy }
func headshotOf(m *model.MatchMetrics) float64 { return m.HeadshotRatio }

func column(rows []model.MatchMetrics, get func(*model.MatchMetrics) float64) []float64 {
	out := make([]float64, len(rows))
	for i := range rows {
		out[i] = get(&rows[i])
	}
	return out
}

// AccuracyValues returns accuracy for matches with shots fired and a valid
// accuracy in [0, 1].
func AccuracyValues(rows []model.MatchMetrics) []float64 {
	var out []float64
	for i := range rows {
		r := &rows[i]
		if r.Shots > 0 && r.Accuracy >= 0 && r.Accuracy <= 1 {
			out = append(out, r.Accuracy)
		}
	}
	return out
}
