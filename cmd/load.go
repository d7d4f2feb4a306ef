package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/codstats/internal/fetch"
	"github.com/pable/codstats/internal/ingest"
	"github.com/pable/codstats/internal/report"
	"github.com/pable/codstats/internal/session"
)

var loadKind string

var loadCmd = &cobra.Command{
	Use:   "load <file|url>",
	Short: "Load an export and report what was accepted",
	Long: `Load an HTML or CSV export (optionally .gz or .zst compressed) and print how
many match blocks were accepted, excluded or rejected, plus the operators, game
types, maps and time span available for querying.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadKind, "kind", "", "document kind (html, csv, html+zstd, ...); default from file name")
}

func runLoad(cmd *cobra.Command, args []string) error {
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	out, err := loadFile(cmd.Context(), sess, args[0], loadKind)
	if err != nil {
		return err
	}
	report.PrintLoadOutcome(os.Stdout, out)
	return nil
}

// newSession builds a session from the loaded configuration.
func newSession(mirror session.Mirror) (*session.Session, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Exclusions:    cfg.ExcludedGameTypes,
		Location:      loc,
		HistogramBins: cfg.HistogramBins,
		CacheSize:     cfg.CacheSize,
		Mirror:        mirror,
		Logger:        logger,
	})
}

// loadFile reads path, or downloads it when it is an http(s) URL, and loads
// it. An empty kind is derived from the file name or response.
func loadFile(ctx context.Context, sess *session.Session, path, kind string) (session.LoadOutcome, error) {
	var data []byte
	if fetch.IsURL(path) {
		body, fetched, err := fetch.NewClient(cfg.FetchToken).Get(ctx, path)
		if err != nil {
			return session.LoadOutcome{}, fmt.Errorf("download export: %w", err)
		}
		data = body
		if kind == "" {
			kind = fetched
		}
	} else {
		body, err := os.ReadFile(path)
		if err != nil {
			return session.LoadOutcome{}, fmt.Errorf("read export: %w", err)
		}
		data = body
		if kind == "" {
			kind = ingest.KindFromFilename(path)
		}
	}
	return sess.Load(ctx, data, kind)
}
