package aggregator

import (
	"math"
	"sort"
	"time"

	"github.com/pable/codstats/internal/model"
)

// ---- Histograms ----

// Bin is one histogram bucket covering [Lo, Hi); the last bin includes Hi.
type Bin struct {
	Lo    float64 `json:"lo" yaml:"lo"`
	Hi    float64 `json:"hi" yaml:"hi"`
	Count int     `json:"count" yaml:"count"`
}

// Histogram is a fixed-width distribution.
type Histogram struct {
	Empty bool  `json:"empty" yaml:"empty"`
	Bins  []Bin `json:"bins" yaml:"bins"`
}

// ComputeHistogram splits [min, max] of values into n equal-width bins. When
// every value is the same the range is widened to value±0.5.
func ComputeHistogram(values []float64, n int) Histogram {
	if len(values) == 0 || n <= 0 {
		return Histogram{Empty: true}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(n)

	h := Histogram{Bins: make([]Bin, n)}
	for i := range h.Bins {
		h.Bins[i].Lo = lo + float64(i)*width
		h.Bins[i].Hi = lo + float64(i+1)*width
	}
	h.Bins[n-1].Hi = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.Bins[idx].Count++
	}
	return h
}

// Total returns the number of values binned.
func (h Histogram) Total() int {
	total := 0
	for _, b := range h.Bins {
		total += b.Count
	}
	return total
}

// ---- Time series ----

// Point is one value at a local time.
type Point struct {
	Time  time.Time `json:"time" yaml:"time"`
	Value float64   `json:"value" yaml:"value"`
}

// Series is a named sequence of points ordered by time.
type Series struct {
	Name   string  `json:"name" yaml:"name"`
	Points []Point `json:"points" yaml:"points"`
}

// TimeSeries groups one or more series sharing the same time axis.
type TimeSeries struct {
	Empty  bool     `json:"empty" yaml:"empty"`
	Series []Series `json:"series" yaml:"series"`
}

// Column names a per-match value to plot.
type Column struct {
	Name string
	Get  func(*model.MatchMetrics) float64
}

// ComputeTimeSeries orders rows by LocalTime (stable for ties) and emits one
// series per column.
func ComputeTimeSeries(rows []model.MatchMetrics, cols ...Column) TimeSeries {
	if len(rows) == 0 {
		return TimeSeries{Empty: true}
	}
	order := chronological(rows)
	out := TimeSeries{Series: make([]Series, len(cols))}
	for c, col := range cols {
		s := Series{Name: col.Name, Points: make([]Point, len(order))}
		for i, idx := range order {
			r := &rows[idx]
			s.Points[i] = Point{Time: r.LocalTime, Value: col.Get(r)}
		}
		out.Series[c] = s
	}
	return out
}

func chronological(rows []model.MatchMetrics) []int {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return rows[order[i]].LocalTime.Before(rows[order[j]].LocalTime)
	})
	return order
}

// ---- Damage efficiency ----

// DamagePoint pairs damage taken and dealt in one match.
type DamagePoint struct {
	Taken   int    `json:"taken" yaml:"taken"`
	Done    int    `json:"done" yaml:"done"`
	Outcome string `json:"outcome" yaml:"outcome"`
}

// Trend is an ordinary least squares line Done = Slope*Taken + Intercept.
type Trend struct {
	Slope     float64 `json:"slope" yaml:"slope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
}

// At evaluates the trend line.
func (t Trend) At(x float64) float64 { return t.Slope*x + t.Intercept }

// DamageEfficiency holds the scatter points and, when defined, the trend
// line across all of them.
type DamageEfficiency struct {
	Empty  bool          `json:"empty" yaml:"empty"`
	Points []DamagePoint `json:"points" yaml:"points"`
	Trend  *Trend        `json:"trend,omitempty" yaml:"trend,omitempty"`
}

// ComputeDamageEfficiency pairs damage taken/dealt per match and fits a line.
// The trend is nil with fewer than two points or no spread in damage taken.
func ComputeDamageEfficiency(rows []model.MatchMetrics) DamageEfficiency {
	if len(rows) == 0 {
		return DamageEfficiency{Empty: true}
	}
	out := DamageEfficiency{Points: make([]DamagePoint, len(rows))}
	x := make([]float64, len(rows))
	y := make([]float64, len(rows))
	for i := range rows {
		r := &rows[i]
		out.Points[i] = DamagePoint{Taken: r.DamageTaken, Done: r.DamageDone, Outcome: r.MatchOutcome}
		x[i] = float64(r.DamageTaken)
		y[i] = float64(r.DamageDone)
	}
	if slope, intercept, ok := linearFit(x, y); ok {
		out.Trend = &Trend{Slope: slope, Intercept: intercept}
	}
	return out
}

// Outcomes returns the distinct outcomes present, sorted, for coloring.
func (d DamageEfficiency) Outcomes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range d.Points {
		if _, ok := seen[p.Outcome]; ok {
			continue
		}
		seen[p.Outcome] = struct{}{}
		out = append(out, p.Outcome)
	}
	sort.Strings(out)
	return out
}

func linearFit(x, y []float64) (slope, intercept float64, ok bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, 0, false
	}
	var sumX, sumY, sumXY, sumX2 float64
	n := float64(len(x))
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
	}
	denominator := (n * sumX2) - (sumX * sumX)
	if denominator == 0 {
		return 0, 0, false
	}
	slope = ((n * sumXY) - (sumX * sumY)) / denominator
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}
