// Package normalize turns raw extracted blocks into validated MatchRecords.
//
// Each block goes through coercion, category exclusion, invariant checks and
// local-time derivation, in that order. Per-record failures are counted in
// model.Dispositions and never abort the batch.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pable/codstats/internal/model"
)

// DefaultExclusions are the non-competitive game types dropped on load.
var DefaultExclusions = []string{
	"Pentathlon Hint (TDM Example: Eliminate the other team or be holding the flag when time runs out.)",
	"Training Course",
	"Ran-snack",
	"Stop and Go",
	"Red Light Green Light",
	"Prop Hunt",
}

// ErrExcluded marks a record dropped because its game type is excluded.
var ErrExcluded = errors.New("game type excluded")

// ctxCheckEvery is how many blocks are normalized between context checks.
const ctxCheckEvery = 256

// Cell values that mean "no value" in numeric and timestamp columns.
var placeholders = map[string]struct{}{
	"-": {}, "—": {}, "–": {}, "n/a": {}, "na": {}, "null": {}, "none": {},
}

// Normalizer converts raw records using a fixed exclusion set and batch location.
type Normalizer struct {
	exclusions map[string]struct{}
	loc        *time.Location
	log        zerolog.Logger
}

// New returns a Normalizer. loc is the batch location used for LocalTime; see
// BatchLocation.
func New(exclusions []string, loc *time.Location, log zerolog.Logger) *Normalizer {
	ex := make(map[string]struct{}, len(exclusions))
	for _, g := range exclusions {
		ex[g] = struct{}{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{exclusions: ex, loc: loc, log: log}
}

// Location returns the batch location.
func (n *Normalizer) Location() *time.Location { return n.loc }

// BatchLocation pins loc to the offset it has at now, so every record of one
// load shares a single offset even across a DST change.
func BatchLocation(loc *time.Location, now time.Time) *time.Location {
	if loc == nil {
		loc = time.Local
	}
	name, offset := now.In(loc).Zone()
	return time.FixedZone(name, offset)
}

// Batch normalizes every block in seq. It stops early only if ctx is done.
func (n *Normalizer) Batch(ctx context.Context, seq iter.Seq[model.RawRecord]) ([]model.MatchRecord, model.Dispositions, error) {
	var (
		out  []model.MatchRecord
		disp model.Dispositions
		i    int
	)
	for raw := range seq {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, disp, err
			}
		}
		i++

		rec, err := n.Normalize(raw)
		var tsErr *model.TimestampParseError
		switch {
		case err == nil:
			out = append(out, rec)
			disp.Accepted++
		case errors.Is(err, ErrExcluded):
			disp.Excluded++
		case errors.As(err, &tsErr):
			disp.ParseFailed++
			n.log.Debug().Err(err).Int("block", i).Msg("timestamp parse failed")
		default:
			disp.Rejected++
			n.log.Debug().Err(err).Int("block", i).Msg("record rejected")
		}
	}
	return out, disp, nil
}

// Normalize converts one raw record. It returns ErrExcluded for excluded game
// types, *model.TimestampParseError for unreadable timestamps and
// *model.ValidationError for everything else.
func (n *Normalizer) Normalize(raw model.RawRecord) (model.MatchRecord, error) {
	var rec model.MatchRecord
	c := coercer{raw: raw}

	rec.Operator = c.str(model.FieldOperator)
	rec.GameType = c.str(model.FieldGameType)
	rec.Map = c.str(model.FieldMap)
	rec.MatchOutcome = c.str(model.FieldMatchOutcome)

	rec.UTCTimestamp = c.timestamp(model.FieldUTCTimestamp)
	rec.MatchStart = c.timestamp(model.FieldMatchStart)
	rec.MatchEnd = c.timestamp(model.FieldMatchEnd)

	rec.Kills = c.count(model.FieldKills, true)
	rec.Deaths = c.count(model.FieldDeaths, true)
	rec.Hits = c.count(model.FieldHits, true)
	rec.Shots = c.count(model.FieldShots, true)
	rec.Headshots = c.count(model.FieldHeadshots, false)
	rec.Score = c.count(model.FieldScore, false)
	rec.LongestStreak = c.count(model.FieldLongestStreak, false)
	rec.DamageDone = c.count(model.FieldDamageDone, false)
	rec.DamageTaken = c.count(model.FieldDamageTaken, false)
	rec.Skill = c.real(model.FieldSkill)

	if c.err != nil {
		return model.MatchRecord{}, c.err
	}

	if _, excluded := n.exclusions[rec.GameType]; excluded {
		return model.MatchRecord{}, fmt.Errorf("%w: %s", ErrExcluded, rec.GameType)
	}

	if err := validate(&rec); err != nil {
		return model.MatchRecord{}, err
	}

	rec.LocalTime = rec.UTCTimestamp.In(n.loc)
	return rec, nil
}

// validate checks the invariants a record cannot be kept without. Hits above
// shots and headshots above kills are left alone; the derived ratios clip them.
func validate(r *model.MatchRecord) error {
	if r.MatchEnd.Before(r.MatchStart) {
		return &model.ValidationError{Field: model.FieldMatchEnd, Reason: "match ends before it starts"}
	}
	return nil
}

// coercer reads typed values out of a raw record, keeping the first error.
// Timestamp errors win over validation errors so a record with a bad
// timestamp is always counted as a parse failure.
type coercer struct {
	raw model.RawRecord
	err error
}

func (c *coercer) fail(err error) {
	var ts *model.TimestampParseError
	if c.err == nil || (errors.As(err, &ts) && !errors.As(c.err, &ts)) {
		c.err = err
	}
}

// value returns the cell for field, treating placeholders as absent. Text
// columns use raw instead: "None" is a legitimate operator name.
func (c *coercer) value(field string) (string, bool) {
	v, ok := c.raw.Get(field)
	if !ok {
		return "", false
	}
	if _, blank := placeholders[strings.ToLower(v)]; blank {
		return "", false
	}
	return v, true
}

func (c *coercer) str(field string) string {
	v, ok := c.raw.Get(field)
	if !ok {
		c.fail(&model.ValidationError{Field: field, Reason: "missing"})
	}
	return v
}

func (c *coercer) count(field string, required bool) int {
	v, ok := c.value(field)
	if !ok {
		if required {
			c.fail(&model.ValidationError{Field: field, Reason: "missing"})
		}
		return 0
	}
	n, err := parseCount(v)
	if err != nil {
		c.fail(&model.ValidationError{Field: field, Reason: err.Error()})
		return 0
	}
	return n
}

func (c *coercer) real(field string) float64 {
	v, ok := c.value(field)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(stripNumber(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		c.fail(&model.ValidationError{Field: field, Reason: fmt.Sprintf("not a number: %q", v)})
		return 0
	}
	return f
}

func (c *coercer) timestamp(field string) time.Time {
	v, ok := c.value(field)
	if !ok {
		c.fail(&model.ValidationError{Field: field, Reason: "missing"})
		return time.Time{}
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		c.fail(&model.TimestampParseError{Field: field, Value: v})
		return time.Time{}
	}
	return t
}

// stripNumber removes thousands separators and stray spaces.
func stripNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '_':
			return -1
		}
		return r
	}, s)
}

// parseCount reads a non-negative integer. Integral floats ("12.0") are
// accepted because spreadsheet round-trips produce them.
func parseCount(s string) (int, error) {
	s = stripNumber(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not an integer: %q", s)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("must be non-negative, got %d", n)
	}
	return n, nil
}
