package commands

import (
	"github.com/leapstack-labs/livef1/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var port int
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session's tables over HTTP",
		Long: `Start a read-only JSON API over the selected session's data lake.

Endpoints:
  GET /api/health          liveness
  GET /api/session         the selected session
  GET /api/tables          registered tables
  GET /api/tables/{name}   table preview (?limit=N, 0 for all)
  GET /api/dag             dependency graph
  GET /api/runs            generation history (?limit=N)
  GET /api/runs/{id}       one run and its tables
  GET /api/events          server-sent events on script reload

Table scripts are reloaded when they change unless --no-watch is given.`,
		Example: `  # Serve on the default port
  livef1 serve

  # Serve on port 9000 without watching scripts
  livef1 serve --port 9000 --no-watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := cmdCtx.Cfg
			if !cmd.Flags().Changed("port") {
				port = cfg.Server.Port
			}
			srv := server.NewServer(server.Config{
				Engine:       cmdCtx.Engine,
				Port:         port,
				Watch:        cfg.Server.Watch && !noWatch,
				PreviewLimit: cfg.Server.PreviewLimit,
				Logger:       cmdCtx.Logger,
			})
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8765, "Port to listen on")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload table scripts on change")

	return cmd
}
