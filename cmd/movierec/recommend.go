package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/lucrnz/ai-movies-rec-app/internal/events"
	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
	"github.com/lucrnz/ai-movies-rec-app/internal/stream"
	"github.com/lucrnz/ai-movies-rec-app/internal/telemetry"
)

func newRecommendCmd() *cobra.Command {
	var (
		serverURL string
		token     string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "recommend [query]",
		Short: "Ask for recommendations and print them",
		Long: `Run one recommendation request. By default the agent runs in-process;
with --server the request is sent to a running movierec server and its
event stream is followed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var (
				movies []recommend.EnrichedMovie
				err    error
			)
			if serverURL != "" {
				movies, err = recommendRemote(ctx, serverURL, query, token)
			} else {
				movies, err = recommendLocal(ctx, query)
			}
			if err != nil {
				return err
			}
			return printMovies(cmd.OutOrStdout(), movies, asJSON)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Base URL of a running movierec server")
	cmd.Flags().StringVar(&token, "turnstile-token", "", "Verification token forwarded to the server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func recommendLocal(ctx context.Context, query string) ([]recommend.EnrichedMovie, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	defer a.Close()

	runID := telemetry.NewID()
	progress := events.EmitterFunc(func(ev *events.Event) {
		if ev.Type == events.ToolCalled {
			fmt.Fprintf(os.Stderr, "[%s]\n", ev.Tool)
		}
	})
	emitter := events.Multi(events.LogEmitter{Logger: a.logger.With("run_id", runID)}, progress)

	items, _, err := a.agent.Recommend(ctx, runID, query, emitter)
	if err != nil {
		return nil, fmt.Errorf("recommendation failed: %w", err)
	}
	return a.enricher.EnrichAll(ctx, items)
}

func recommendRemote(ctx context.Context, baseURL, query, token string) ([]recommend.EnrichedMovie, error) {
	client := stream.NewClient(baseURL, &http.Client{})
	last := ""
	state, err := client.Recommend(ctx, query, token, func(s stream.State) {
		if s.Progress != "" && s.Progress != last {
			fmt.Fprintln(os.Stderr, s.Progress)
			last = s.Progress
		}
	})
	if err != nil {
		return nil, err
	}
	if state.Err != "" {
		return nil, fmt.Errorf("server: %s", state.Err)
	}
	return state.Results, nil
}

func printMovies(w io.Writer, movies []recommend.EnrichedMovie, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(movies)
	}
	if len(movies) == 0 {
		fmt.Fprintln(w, "No movies found.")
		return nil
	}
	for i, m := range movies {
		title := m.Title
		if m.ReleaseYear != nil {
			title = fmt.Sprintf("%s (%s)", title, *m.ReleaseYear)
		}
		fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, title, m.Reason)
	}
	return nil
}
