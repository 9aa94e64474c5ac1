package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/smallnest/researchflow/metrics"
	"github.com/smallnest/researchflow/server"
)

var serveFlags struct {
	listen         string
	requestTimeout time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research pipeline over HTTP",
	Long: `Start an HTTP API:

  POST /research   {"query": "...", "format": "markdown", "trace": false}
  GET  /health
  GET  /metrics    Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.listen, "listen", "l", "", "Listen address (default from config, :8080)")
	f.DurationVar(&serveFlags.requestTimeout, "request-timeout", 5*time.Minute, "Upper bound for one research request")
}

func runServe(cmd *cobra.Command, _ []string) error {
	m := metrics.New()
	ctrl, cfg, logger, err := newController(cmd, m)
	if err != nil {
		return err
	}

	addr := cfg.Listen
	if serveFlags.listen != "" {
		addr = serveFlags.listen
	}
	srv := server.New(ctrl,
		server.WithMetrics(m),
		server.WithLogger(logger),
		server.WithRequestTimeout(serveFlags.requestTimeout),
	)
	return srv.ListenAndServe(cmd.Context(), addr)
}
