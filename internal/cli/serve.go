package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ancsummary/internal/server"
)

// shutdownGrace bounds how long in-flight requests may run after a stop signal.
const shutdownGrace = 30 * time.Second

// serveCommand creates the command that runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the summary pipeline over HTTP",
		Long: `Serve the summary pipeline over HTTP.

POST a JSON request with the summary tree and traces inline to /v1/states,
/v1/charmap or /v1/transitions. Runs are archived when [archive] is
configured; Prometheus metrics are served on /metrics.`,
		Example: `  ancsummary serve --addr :9090
  curl -s localhost:9090/v1/states?format=newick \
    -d "{\"summary_tree\": \"$(cat map.tree)\", \"state_log\": \"$(cat states.log)\"}"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = c.Config.Server.Addr
			}
			return c.runServe(cmd.Context(), addr, noCache, metrics)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "serve Prometheus metrics on /metrics")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache, withMetrics bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close(context.WithoutCancel(ctx))

	var m *server.Metrics
	if withMetrics {
		m = server.NewMetrics()
		m.Register()
	}
	srv := server.New(runner, c.Logger, m)
	return srv.ListenAndServe(ctx, addr, shutdownGrace)
}
