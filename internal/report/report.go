package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/codstats/internal/aggregator"
	"github.com/pable/codstats/internal/model"
	"github.com/pable/codstats/internal/session"
)

const dateTime = "2006-01-02 15:04"

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
}

// PrintLoadOutcome prints what a load accepted and dropped, then the
// available categories and time span.
func PrintLoadOutcome(w io.Writer, out session.LoadOutcome) {
	d := out.Dispositions
	fmt.Fprintf(w, "\nDataset: %s  |  Generation: %d  |  Zone: %s\n\n", out.DatasetID, out.Generation, out.Zone)

	table := newTable(w)
	table.Header("BLOCKS", "ACCEPTED", "EXCLUDED", "REJECTED", "BAD_TIMESTAMP")
	table.Append(
		strconv.Itoa(d.Total()),
		strconv.Itoa(d.Accepted),
		strconv.Itoa(d.Excluded),
		strconv.Itoa(d.Rejected),
		strconv.Itoa(d.ParseFailed),
	)
	table.Render()

	fmt.Fprintf(w, "\nOperators:  %s\n", strings.Join(out.Operators, ", "))
	fmt.Fprintf(w, "Game types: %s\n", strings.Join(out.GameTypes, ", "))
	fmt.Fprintf(w, "Maps:       %s\n", strings.Join(out.Maps, ", "))
	fmt.Fprintf(w, "Span:       %s .. %s\n", out.MinLocal.Format(dateTime), out.MaxLocal.Format(dateTime))
}

// PrintSummaries prints the lifetime and filtered statistics cards side by side.
func PrintSummaries(w io.Writer, lifetime, filtered aggregator.Summary) {
	table := newTable(w)
	table.Header("", "MATCHES", "K", "D", "K/D", "WINS", "WIN%", "ACC%", "AVG_SCORE", "AVG_SKILL", "BEST_STREAK", "PLAY_TIME")
	for _, row := range []struct {
		label string
		s     aggregator.Summary
	}{{"lifetime", lifetime}, {"selection", filtered}} {
		s := row.s
		table.Append(
			row.label,
			strconv.Itoa(s.Matches),
			strconv.Itoa(s.Kills),
			strconv.Itoa(s.Deaths),
			fmt.Sprintf("%.2f", s.KDRatio),
			strconv.Itoa(s.Wins),
			fmt.Sprintf("%.1f%%", s.WinRate),
			fmt.Sprintf("%.1f%%", s.AccuracyPct),
			strconv.Itoa(s.AvgScore),
			fmt.Sprintf("%.2f", s.AvgSkill),
			strconv.Itoa(s.BestStreak),
			s.PlayTimeText(),
		)
	}
	table.Render()
}

// PrintHourlyKD prints mean K/D per local hour.
func PrintHourlyKD(w io.Writer, h aggregator.HourlyKD) {
	if h.Empty {
		fmt.Fprintln(w, "(no data)")
		return
	}
	table := newTable(w)
	table.Header("HOUR", "MATCHES", "MEAN_K/D")
	for _, r := range h.Hours {
		table.Append(r.Label, strconv.Itoa(r.Matches), fmt.Sprintf("%.2f", r.MeanKD))
	}
	table.Render()
}

// PrintMapKD prints pooled K/D per map, weakest map first.
func PrintMapKD(w io.Writer, m aggregator.MapPerformance) {
	if m.Empty {
		fmt.Fprintln(w, "(no data)")
		return
	}
	table := newTable(w)
	table.Header("MAP", "K", "D", "K/D")
	for _, r := range m.Maps {
		table.Append(r.Map, strconv.Itoa(r.Kills), strconv.Itoa(r.Deaths), fmt.Sprintf("%.2f", r.KD))
	}
	table.Render()
}

// PrintOutcomes prints match outcome counts with their share.
func PrintOutcomes(w io.Writer, o aggregator.Outcomes) {
	if o.Empty {
		fmt.Fprintln(w, "(no data)")
		return
	}
	total := 0
	for _, c := range o.Counts {
		total += c.Count
	}
	table := newTable(w)
	table.Header("OUTCOME", "MATCHES", "SHARE")
	for _, c := range o.Counts {
		table.Append(c.Outcome, strconv.Itoa(c.Count), fmt.Sprintf("%.1f%%", 100*float64(c.Count)/float64(total)))
	}
	table.Render()
}

// PrintHeatmap prints the day-by-hour activity grid. Zero cells print as ".".
func PrintHeatmap(w io.Writer, hm aggregator.Heatmap) {
	if hm.Empty {
		fmt.Fprintln(w, "(no data)")
		return
	}
	header := make([]any, 0, len(hm.Hours)+1)
	header = append(header, "DAY")
	for h := range hm.Hours {
		header = append(header, strconv.Itoa(h))
	}
	table := newTable(w)
	table.Header(header...)
	for d, day := range hm.Days {
		row := make([]any, 0, len(hm.Hours)+1)
		row = append(row, day[:3])
		for _, c := range hm.Counts[d] {
			if c == 0 {
				row = append(row, ".")
			} else {
				row = append(row, strconv.Itoa(c))
			}
		}
		table.Append(row...)
	}
	table.Render()
}

// PrintHistogram prints each bin with a proportional bar.
func PrintHistogram(w io.Writer, title string, h aggregator.Histogram) {
	fmt.Fprintf(w, "\n%s\n", title)
	if h.Empty {
		fmt.Fprintln(w, "(no data)")
		return
	}
	peak := 0
	for _, b := range h.Bins {
		peak = max(peak, b.Count)
	}
	table := newTable(w)
	table.Header("FROM", "TO", "N", "")
	for _, b := range h.Bins {
		table.Append(
			fmt.Sprintf("%.3f", b.Lo),
			fmt.Sprintf("%.3f", b.Hi),
			strconv.Itoa(b.Count),
			bar(b.Count, peak, 30),
		)
	}
	table.Render()
}

// PrintDamage prints the damage trend line, or why there is none.
func PrintDamage(w io.Writer, d aggregator.DamageEfficiency) {
	if d.Empty {
		fmt.Fprintln(w, "(no data)")
		return
	}
	if d.Trend == nil {
		fmt.Fprintf(w, "Damage: %d matches, no trend (damage taken has no spread)\n", len(d.Points))
		return
	}
	fmt.Fprintf(w, "Damage: %d matches  |  done = %.3f * taken %+.1f\n", len(d.Points), d.Trend.Slope, d.Trend.Intercept)
}

// PrintMatches prints one line per match in the selection.
func PrintMatches(w io.Writer, rows []model.MatchMetrics) {
	table := newTable(w)
	table.Header("LOCAL_TIME", "OPERATOR", "GAME_TYPE", "MAP", "OUTCOME", "K", "D", "K/D", "ACC", "HS", "SKILL")
	for i := range rows {
		r := &rows[i]
		table.Append(
			r.LocalTime.Format(dateTime),
			r.Operator,
			r.GameType,
			r.Map,
			r.MatchOutcome,
			strconv.Itoa(r.Kills),
			strconv.Itoa(r.Deaths),
			fmt.Sprintf("%.2f", r.KDRatio),
			fmt.Sprintf("%.3f", r.Accuracy),
			fmt.Sprintf("%.2f", r.HeadshotRatio),
			fmt.Sprintf("%.2f", r.Skill),
		)
	}
	table.Render()
}

// PrintQueryResult prints every section of a query result.
func PrintQueryResult(w io.Writer, res *session.QueryResult, showMatches bool) {
	PrintSummaries(w, res.Lifetime, res.Filtered)
	agg := res.Aggregates

	fmt.Fprintln(w, "\nK/D by hour")
	PrintHourlyKD(w, agg.HourlyKD)
	fmt.Fprintln(w, "\nK/D by map")
	PrintMapKD(w, agg.MapKD)
	fmt.Fprintln(w, "\nOutcomes")
	PrintOutcomes(w, agg.Outcomes)
	fmt.Fprintln(w, "\nActivity")
	PrintHeatmap(w, agg.Activity)
	PrintHistogram(w, "Accuracy", agg.AccuracyHist)
	PrintHistogram(w, "K/D", agg.KDHist)
	PrintHistogram(w, "Skill", agg.SkillHist)
	fmt.Fprintln(w)
	PrintDamage(w, agg.Damage)

	if showMatches {
		fmt.Fprintln(w)
		PrintMatches(w, res.Rows)
	}
}

// PrintRows prints a raw query result.
func PrintRows(w io.Writer, cols []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}
	table := newTable(w)
	colsAny := make([]any, len(cols))
	for i, c := range cols {
		colsAny[i] = c
	}
	table.Header(colsAny...)
	for _, row := range rows {
		rowAny := make([]any, len(row))
		for i, v := range row {
			rowAny[i] = v
		}
		table.Append(rowAny...)
	}
	table.Render()
	fmt.Fprintf(w, "\n(%d rows)\n", len(rows))
}

func bar(n, peak, width int) string {
	if peak == 0 || n == 0 {
		return ""
	}
	return strings.Repeat("#", max(1, n*width/peak))
}
