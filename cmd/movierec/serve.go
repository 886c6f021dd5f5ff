package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucrnz/ai-movies-rec-app/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  "Serve GET /api/recommend as a server-sent event stream, /api/recommendations as JSON, /healthz and /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if !a.verifier.Enabled() {
				a.logger.Warn("bot verification disabled; set TURNSTILE_SECRET_KEY to enable it")
			}

			srv := server.New(cfg, a.agent, a.enricher,
				server.WithLogger(a.logger),
				server.WithMetrics(a.metrics),
				server.WithVerifier(a.verifier),
				server.WithVersion(version),
			)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}
