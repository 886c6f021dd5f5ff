// Package main is the entry point for the movierec service and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	configPath string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "movierec",
		Short: "Catalog-grounded movie recommendation agent",
		Long: `movierec turns a natural language description into a short list of
movies. A tool-using agent searches the TMDB catalog, consults a
recommender model, and commits a validated answer that is streamed to
clients as server-sent events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotenv()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: movierec.yaml if present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRecommendCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// loadDotenv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotenv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
