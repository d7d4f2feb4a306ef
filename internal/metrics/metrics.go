// Package metrics computes per-match derived values over a filtered view.
package metrics

import "github.com/pable/codstats/internal/model"

// Accuracy is hits over shots rounded to three places and clipped to [0, 1].
// Zero shots give 0; exports occasionally report a few more hits than shots,
// which the clip absorbs.
func Accuracy(r *model.MatchRecord) float64 {
	return Clip(Round(SafeRatio(float64(r.Hits), float64(r.Shots), 0), 3), 0, 1)
}

// KDRatio is kills over deaths rounded to two places; a deathless match
// counts its kills as the ratio.
func KDRatio(r *model.MatchRecord) float64 {
	return Round(SafeRatio(float64(r.Kills), float64(r.Deaths), float64(r.Kills)), 2)
}

// HeadshotRatio is headshots over kills clipped to [0, 1], 0 without kills.
func HeadshotRatio(r *model.MatchRecord) float64 {
	return Clip(SafeRatio(float64(r.Headshots), float64(r.Kills), 0), 0, 1)
}

// Derive returns a fresh metrics row per record of view. The view's records
// are copied, never modified.
func Derive(view model.FilteredView) []model.MatchMetrics {
	out := make([]model.MatchMetrics, len(view.Records))
	for i := range view.Records {
		r := &view.Records[i]
		out[i] = model.MatchMetrics{
			MatchRecord:   *r,
			Accuracy:      Accuracy(r),
			KDRatio:       KDRatio(r),
			HeadshotRatio: HeadshotRatio(r),
			Hour:          r.LocalTime.Hour(),
			DayOfWeek:     r.LocalTime.Weekday(),
		}
	}
	return out
}
