package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucrnz/ai-movies-rec-app/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the recommend_movies tool over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a.logger.Info("mcp server starting", "tool", mcp.ToolName)
			return mcp.NewServer(a.agent, a.enricher, a.metrics.Emitter(), a.logger, version).Run(ctx)
		},
	}
}
