package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/codstats/internal/report"
	"github.com/pable/codstats/internal/storage"
)

var sqlKind string

var sqlCmd = &cobra.Command{
	Use:   "sql <file> <query>",
	Short: "Load an export into SQLite and run a raw SQL query",
	Long: `Load an export, mirror the accepted matches into SQLite (db-path, in memory by
default) and run an arbitrary SQL query, printing the results as a table.

Schema overview:
  datasets(id, loaded_at, match_count)
  matches(dataset_id, seq, operator, game_type, map, match_outcome,
    utc_timestamp, local_time, match_start, match_end, duration_s,
    kills, deaths, hits, shots, headshots, score, skill,
    longest_streak, damage_done, damage_taken)

Timestamps are stored as TEXT 'YYYY-MM-DD HH:MM:SS'; local_time is in the zone
the dataset was loaded in. Example:
  codstats sql export.html "SELECT map, SUM(kills)*1.0/MAX(SUM(deaths),1) AS kd FROM matches GROUP BY map"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSQL,
}

func init() {
	sqlCmd.Flags().StringVar(&sqlKind, "kind", "", "document kind; default from file name")
}

func runSQL(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	sess, err := newSession(db)
	if err != nil {
		return err
	}
	if _, err := loadFile(cmd.Context(), sess, args[0], sqlKind); err != nil {
		return err
	}

	query := strings.Join(args[1:], " ")
	cols, rows, err := db.QueryRaw(cmd.Context(), query)
	if err != nil {
		return err
	}
	report.PrintRows(os.Stdout, cols, rows)
	return nil
}
