package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/codstats/internal/filter"
	"github.com/pable/codstats/internal/model"
	"github.com/pable/codstats/internal/report"
	"github.com/pable/codstats/internal/session"
)

// selection holds the filter flags shared by query and export.
type selection struct {
	operators []string
	gameTypes []string
	maps      []string
	from      string
	to        string

	noOperators bool
	noGameTypes bool
	noMaps      bool
}

func (s *selection) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVar(&s.operators, "operator", nil, "operators to include (repeatable; default all)")
	f.StringArrayVar(&s.gameTypes, "game-type", nil, "game types to include (repeatable; default all)")
	f.StringArrayVar(&s.maps, "map", nil, "maps to include (repeatable; default all)")
	f.StringVar(&s.from, "from", "", "start date YYYY-MM-DD[ HH:MM[:SS]] (default earliest match)")
	f.StringVar(&s.to, "to", "", "end date, inclusive; a bare date covers the whole day (default latest match)")
	f.BoolVar(&s.noOperators, "none-operators", false, "select no operators")
	f.BoolVar(&s.noGameTypes, "none-game-types", false, "select no game types")
	f.BoolVar(&s.noMaps, "none-maps", false, "select no maps")
}

// spec applies the flags on top of the session's default selection.
func (s *selection) spec(sess *session.Session) (model.FilterSpec, error) {
	spec := sess.DefaultFilter()
	pick := func(dst *[]string, values []string, none bool) {
		switch {
		case none:
			*dst = nil
		case len(values) > 0:
			*dst = values
		}
	}
	pick(&spec.Operators, s.operators, s.noOperators)
	pick(&spec.GameTypes, s.gameTypes, s.noGameTypes)
	pick(&spec.Maps, s.maps, s.noMaps)

	var err error
	if s.from != "" {
		if spec.Start, err = filter.ParseBound(s.from, false); err != nil {
			return spec, fmt.Errorf("--from: %w", err)
		}
	}
	if s.to != "" {
		if spec.End, err = filter.ParseBound(s.to, true); err != nil {
			return spec, fmt.Errorf("--to: %w", err)
		}
	}
	return spec, nil
}

var (
	querySel     selection
	queryKind    string
	queryMatches bool
)

var queryCmd = &cobra.Command{
	Use:   "query <file>",
	Short: "Load an export and print statistics for a selection",
	Long: `Load an export, apply the selection flags (everything is selected by default)
and print the lifetime and selection summaries, K/D by hour and map, outcomes,
the activity heatmap, distributions and the damage trend.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	querySel.register(queryCmd)
	queryCmd.Flags().StringVar(&queryKind, "kind", "", "document kind; default from file name")
	queryCmd.Flags().BoolVar(&queryMatches, "matches", false, "also list every selected match")
}

func runQuery(cmd *cobra.Command, args []string) error {
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	if _, err := loadFile(cmd.Context(), sess, args[0], queryKind); err != nil {
		return err
	}
	spec, err := querySel.spec(sess)
	if err != nil {
		return err
	}

	res, err := sess.Query(cmd.Context(), spec)
	if errors.Is(err, model.ErrEmptyResult) {
		fmt.Println(err)
		return nil
	}
	if err != nil {
		return err
	}
	report.PrintQueryResult(os.Stdout, res, queryMatches)
	return nil
}
