package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pable/codstats/internal/session"
)

var (
	exportSel    selection
	exportKind   string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write a query result as JSON or YAML",
	Long: `Load an export, run a query with the selection flags and write the full
result document (summaries, aggregates and every selected match) as JSON or YAML.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportSel.register(exportCmd)
	exportCmd.Flags().StringVar(&exportKind, "kind", "", "document kind; default from file name")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "json" && exportFormat != "yaml" {
		return fmt.Errorf("unknown --format %q (want json or yaml)", exportFormat)
	}

	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	if _, err := loadFile(cmd.Context(), sess, args[0], exportKind); err != nil {
		return err
	}
	spec, err := exportSel.spec(sess)
	if err != nil {
		return err
	}
	res, err := sess.Query(cmd.Context(), spec)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeResult(w, res, exportFormat); err != nil {
		return err
	}
	if exportOut != "" {
		logger.Info().Str("path", exportOut).Int("matches", len(res.Rows)).Msg("result written")
	}
	return nil
}

func writeResult(w io.Writer, res *session.QueryResult, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}
