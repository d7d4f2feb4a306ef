package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pable/codstats/internal/httpserver"
)

var (
	serveAddr string
	serveKind string
)

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve the load and query API over HTTP",
	Long: `Start an HTTP API over one analytics session, optionally preloading an export.

  POST /api/load     body is the export; kind from ?kind= or Content-Type
  GET  /api/dataset  current dataset outcome and default selection
  POST /api/query    {"operators":[..],"game_types":[..],"maps":[..],"from":"..","to":".."}
                     omitted fields select everything
  GET  /api/health`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default api-addr from config)")
	serveCmd.Flags().StringVar(&serveKind, "kind", "", "document kind of the preloaded file; default from file name")
}

func runServe(cmd *cobra.Command, args []string) error {
	sess, err := newSession(nil)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if _, err := loadFile(cmd.Context(), sess, args[0], serveKind); err != nil {
			return err
		}
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.APIAddr
	}
	srv := httpserver.NewServer(addr, sess, logger)
	bound, err := srv.Start()
	if err != nil {
		return err
	}
	logger.Info().Str("addr", bound).Msg("api listening")

	<-cmd.Context().Done()
	logger.Info().Msg("shutting down")
	return srv.Stop()
}
