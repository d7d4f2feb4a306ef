package aggregator

import (
	"fmt"
	"math"
	"time"

	"github.com/pable/codstats/internal/metrics"
	"github.com/pable/codstats/internal/model"
)

// Summary is the headline statistics card for a set of matches.
type Summary struct {
	Matches     int           `json:"matches" yaml:"matches"`
	Kills       int           `json:"kills" yaml:"kills"`
	Deaths      int           `json:"deaths" yaml:"deaths"`
	KDRatio     float64       `json:"kd_ratio" yaml:"kd_ratio"`
	Wins        int           `json:"wins" yaml:"wins"`
	WinRate     float64       `json:"win_rate_pct" yaml:"win_rate_pct"`
	Hits        int           `json:"hits" yaml:"hits"`
	Shots       int           `json:"shots" yaml:"shots"`
	AccuracyPct float64       `json:"accuracy_pct" yaml:"accuracy_pct"`
	AvgScore    int           `json:"avg_score" yaml:"avg_score"`
	AvgSkill    float64       `json:"avg_skill" yaml:"avg_skill"`
	PlayTime    time.Duration `json:"play_time_ns" yaml:"play_time_ns"`
	BestStreak  int           `json:"best_streak" yaml:"best_streak"`
}

// PlayTimeText formats PlayTime as days, hours and minutes.
func (s Summary) PlayTimeText() string {
	return FormatPlayTime(s.PlayTime)
}

// Summarize computes the statistics card. Zero deaths, shots or matches fall
// back to the policies in metrics instead of dividing by zero.
func Summarize(records []model.MatchRecord) Summary {
	s := Summary{Matches: len(records)}
	var score int
	var skill float64
	for i := range records {
		r := &records[i]
		s.Kills += r.Kills
		s.Deaths += r.Deaths
		s.Hits += r.Hits
		s.Shots += r.Shots
		score += r.Score
		skill += r.Skill
		s.PlayTime += r.Duration()
		if r.IsWin() {
			s.Wins++
		}
		if r.LongestStreak > s.BestStreak {
			s.BestStreak = r.LongestStreak
		}
	}

	n := float64(s.Matches)
	s.KDRatio = metrics.Round(metrics.SafeRatio(float64(s.Kills), float64(s.Deaths), float64(s.Kills)), 2)
	s.WinRate = metrics.Round(metrics.SafeRatio(float64(s.Wins), n, 0)*100, 1)
	s.AccuracyPct = metrics.Round(metrics.SafeRatio(float64(s.Hits), float64(s.Shots), 0)*100, 1)
	s.AvgScore = int(math.Round(metrics.SafeRatio(float64(score), n, 0)))
	s.AvgSkill = metrics.Round(metrics.SafeRatio(skill, n, 0), 2)
	return s
}

// FormatPlayTime renders d as "Xd Yh Zm", truncating seconds.
func FormatPlayTime(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}
