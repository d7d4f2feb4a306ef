// Package model holds the record types shared by the ingestion and analytics
// pipeline: raw extracted blocks, normalized match records, filter specs and
// derived per-match metrics.
package model

import (
	"sort"
	"strings"
	"time"
)

// Canonical field names as they appear in export headers.
const (
	FieldOperator      = "Operator"
	FieldGameType      = "Game Type"
	FieldMap           = "Map"
	FieldUTCTimestamp  = "UTC Timestamp"
	FieldMatchStart    = "Match Start Timestamp"
	FieldMatchEnd      = "Match End Timestamp"
	FieldKills         = "Kills"
	FieldDeaths        = "Deaths"
	FieldHits          = "Hits"
	FieldShots         = "Shots"
	FieldHeadshots     = "Headshots"
	FieldScore         = "Score"
	FieldSkill         = "Skill"
	FieldLongestStreak = "Longest Streak"
	FieldMatchOutcome  = "Match Outcome"
	FieldDamageTaken   = "Damage Taken"
	FieldDamageDone    = "Damage Done"
)

// Fields lists every field the extractor looks for, in export order.
var Fields = []string{
	FieldUTCTimestamp, FieldGameType, FieldMap, FieldOperator,
	FieldMatchStart, FieldMatchEnd, FieldMatchOutcome,
	FieldKills, FieldDeaths, FieldHits, FieldShots, FieldHeadshots,
	FieldScore, FieldSkill, FieldLongestStreak,
	FieldDamageDone, FieldDamageTaken,
}

var fieldIndex = func() map[string]string {
	m := make(map[string]string, len(Fields))
	for _, f := range Fields {
		m[FoldFieldName(f)] = f
	}
	return m
}()

// FoldFieldName lowercases a header label and collapses whitespace, NBSPs and a
// trailing colon so "Game&nbsp;Type:" and "game type" compare equal.
func FoldFieldName(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// CanonicalField maps a header label to its canonical field name.
func CanonicalField(label string) (string, bool) {
	f, ok := fieldIndex[FoldFieldName(label)]
	return f, ok
}

// ---- Raw extraction output ----

// RawRecord is one extracted match block: canonical field name -> cell text.
// Fields missing from the block are absent keys.
type RawRecord map[string]string

// Get returns the trimmed value for field and whether it was present and non-empty.
func (r RawRecord) Get(field string) (string, bool) {
	v, ok := r[field]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// ---- Normalized records ----

// MatchRecord is one completed match after normalization.
type MatchRecord struct {
	Operator     string `json:"operator" yaml:"operator"`
	GameType     string `json:"game_type" yaml:"game_type"`
	Map          string `json:"map" yaml:"map"`
	MatchOutcome string `json:"match_outcome" yaml:"match_outcome"`

	UTCTimestamp time.Time `json:"utc_timestamp" yaml:"utc_timestamp"` // canonical record time, UTC
	MatchStart   time.Time `json:"match_start" yaml:"match_start"`
	MatchEnd     time.Time `json:"match_end" yaml:"match_end"`
	LocalTime    time.Time `json:"local_time" yaml:"local_time"` // UTCTimestamp in the batch location

	Kills         int `json:"kills" yaml:"kills"`
	Deaths        int `json:"deaths" yaml:"deaths"`
	Hits          int `json:"hits" yaml:"hits"`
	Shots         int `json:"shots" yaml:"shots"`
	Headshots     int `json:"headshots" yaml:"headshots"`
	Score         int `json:"score" yaml:"score"`
	LongestStreak int `json:"longest_streak" yaml:"longest_streak"`
	DamageDone    int `json:"damage_done" yaml:"damage_done"`
	DamageTaken   int `json:"damage_taken" yaml:"damage_taken"`

	Skill float64 `json:"skill" yaml:"skill"`
}

// Duration is the wall time between match start and end.
func (r *MatchRecord) Duration() time.Duration {
	return r.MatchEnd.Sub(r.MatchStart)
}

// IsWin reports whether the outcome text contains "win", ignoring case.
func (r *MatchRecord) IsWin() bool {
	return strings.Contains(strings.ToLower(r.MatchOutcome), "win")
}

// Dispositions counts what happened to each extracted block during a load.
type Dispositions struct {
	Accepted    int `json:"accepted" yaml:"accepted"`
	Excluded    int `json:"excluded" yaml:"excluded"`
	Rejected    int `json:"rejected" yaml:"rejected"`
	ParseFailed int `json:"parse_failed" yaml:"parse_failed"`
}

// Total is the number of blocks seen.
func (d Dispositions) Total() int {
	return d.Accepted + d.Excluded + d.Rejected + d.ParseFailed
}

// ---- Queries ----

// FilterSpec selects a view of the dataset. Start and End are naive wall-clock
// bounds: only their date and clock fields are used, read in the dataset's
// location. An empty category slice selects nothing.
type FilterSpec struct {
	Operators []string  `json:"operators" yaml:"operators"`
	GameTypes []string  `json:"game_types" yaml:"game_types"`
	Maps      []string  `json:"maps" yaml:"maps"`
	Start     time.Time `json:"start" yaml:"start"`
	End       time.Time `json:"end" yaml:"end"`
}

// Key returns a canonical string for the filter; equal filters (ignoring category
// order and duplicates) produce equal keys.
func (f FilterSpec) Key() string {
	var b strings.Builder
	for _, set := range [][]string{f.Operators, f.GameTypes, f.Maps} {
		b.WriteString(strings.Join(sortedUnique(set), "\x1f"))
		b.WriteByte('\x1e')
	}
	b.WriteString(f.Start.Format("2006-01-02T15:04:05.999999999"))
	b.WriteByte('\x1e')
	b.WriteString(f.End.Format("2006-01-02T15:04:05.999999999"))
	return b.String()
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FilteredView is the subsequence of a dataset that matched a FilterSpec.
type FilteredView struct {
	Records []MatchRecord
}

// Len returns the number of records in the view.
func (v FilteredView) Len() int { return len(v.Records) }

// ---- Derived metrics ----

// MatchMetrics is a MatchRecord augmented with per-match derived values.
type MatchMetrics struct {
	MatchRecord   `yaml:",inline"`
	Accuracy      float64      `json:"accuracy" yaml:"accuracy"`
	KDRatio       float64      `json:"kd_ratio" yaml:"kd_ratio"`
	HeadshotRatio float64      `json:"headshot_ratio" yaml:"headshot_ratio"`
	Hour          int          `json:"hour" yaml:"hour"`
	DayOfWeek     time.Weekday `json:"day_of_week" yaml:"day_of_week"`
}
