// Package mcp exposes the recommender as a Model Context Protocol tool so
// other agents can ask it for movies.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lucrnz/ai-movies-rec-app/internal/events"
	"github.com/lucrnz/ai-movies-rec-app/internal/loop"
	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
	"github.com/lucrnz/ai-movies-rec-app/internal/telemetry"
)

// ToolName is the name of the single tool served.
const ToolName = "recommend_movies"

// Recommender runs the agent. *recommend.Agent implements it.
type Recommender interface {
	Recommend(ctx context.Context, runID, criteria string, emitter events.Emitter) ([]recommend.Item, *loop.Response, error)
}

// Enricher enriches a finalized answer. *recommend.Enricher implements it.
type Enricher interface {
	EnrichAll(ctx context.Context, items []recommend.Item) ([]recommend.EnrichedMovie, error)
}

// RecommendInput is the tool's argument object.
type RecommendInput struct {
	Query string `json:"query" jsonschema:"what the user wants to watch, in natural language"`
}

// Movie is one recommended movie in the tool's structured output.
type Movie struct {
	ID          int64  `json:"id" jsonschema:"TMDB movie id"`
	Title       string `json:"title"`
	Reason      string `json:"reason" jsonschema:"why the movie fits the query"`
	PosterURL   string `json:"posterUrl,omitempty" jsonschema:"TMDB poster path"`
	Overview    string `json:"overview,omitempty"`
	ReleaseYear string `json:"releaseYear,omitempty"`
}

// RecommendOutput is the tool's structured result.
type RecommendOutput struct {
	RunID  string  `json:"runId"`
	Movies []Movie `json:"movies"`
}

// Server serves the recommend_movies tool.
type Server struct {
	agent    Recommender
	enricher Enricher
	emitter  events.Emitter
	logger   *slog.Logger
	server   *mcpsdk.Server
}

// NewServer creates an MCP server. emitter may be nil.
func NewServer(agent Recommender, enricher Enricher, emitter events.Emitter, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{agent: agent, enricher: enricher, emitter: emitter, logger: logger}

	s.server = mcpsdk.NewServer(&mcpsdk.Implementation{Name: "movierec", Version: version}, nil)
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name: ToolName,
		Description: "Recommend movies matching a natural language description. " +
			"Runs a catalog-grounded agent; expect the call to take up to a few minutes.",
	}, s.recommend)
	return s
}

// Run serves over stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves a single session over t. It is used with in-memory
// transports.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) recommend(ctx context.Context, _ *mcpsdk.CallToolRequest, in RecommendInput) (*mcpsdk.CallToolResult, RecommendOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, RecommendOutput{}, errors.New("query is required")
	}

	runID := telemetry.NewID()
	logger := s.logger.With("run_id", runID, "component", "mcp")
	emitter := events.Multi(events.LogEmitter{Logger: logger}, s.emitter)

	items, _, err := s.agent.Recommend(ctx, runID, query, emitter)
	if err != nil {
		return nil, RecommendOutput{}, fmt.Errorf("recommendation failed: %w", err)
	}
	enriched, err := s.enricher.EnrichAll(ctx, items)
	if err != nil {
		return nil, RecommendOutput{}, err
	}

	out := RecommendOutput{RunID: runID, Movies: make([]Movie, len(enriched))}
	var summary strings.Builder
	for i, m := range enriched {
		out.Movies[i] = Movie{
			ID:          m.ID,
			Title:       m.Title,
			Reason:      m.Reason,
			PosterURL:   deref(m.PosterURL),
			Overview:    deref(m.Overview),
			ReleaseYear: deref(m.ReleaseYear),
		}
		fmt.Fprintf(&summary, "%d. %s", i+1, m.Title)
		if m.ReleaseYear != nil {
			fmt.Fprintf(&summary, " (%s)", *m.ReleaseYear)
		}
		fmt.Fprintf(&summary, ": %s\n", m.Reason)
	}
	if len(enriched) == 0 {
		summary.WriteString("No movies found.\n")
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: summary.String()}},
	}, out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
