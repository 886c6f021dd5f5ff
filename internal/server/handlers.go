package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucrnz/ai-movies-rec-app/internal/events"
	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
	"github.com/lucrnz/ai-movies-rec-app/internal/stream"
	"github.com/lucrnz/ai-movies-rec-app/internal/telemetry"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"version": s.version,
	})
}

// handleRecommendStream serves GET /api/recommend as an event stream.
// Validation failures are reported in-band, so the status is always 200 once
// streaming is possible.
func (s *Server) handleRecommendStream(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	runID := telemetry.NewID()
	logger := telemetry.RequestLogger(ctx, s.logger, "stream").With("run_id", runID)

	// The writer follows the connection; the run follows the deadline.
	sw, err := stream.NewWriter(r.Context(), w, logger, s.metrics)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Streaming not supported")
		return
	}

	p := &stream.Pipeline{
		Agent:    s.agent,
		Enricher: s.enricher,
		Verifier: s.verifier,
		Emitter:  s.runEmitter(logger),
		Logger:   logger,
	}
	q := r.URL.Query()
	p.Serve(ctx, stream.Request{
		Query:          q.Get("query"),
		TurnstileToken: q.Get("turnstileToken"),
		RunID:          runID,
	}, sw)
}

// handleRecommendJSON serves GET /api/recommendations: the same run, with
// every movie enriched before a single JSON response.
func (s *Server) handleRecommendJSON(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Query parameter is required")
		return
	}
	if s.verifier != nil && s.verifier.Enabled() {
		token := q.Get("turnstileToken")
		if token == "" {
			writeError(w, http.StatusForbidden, "captcha_error", "Captcha token is required")
			return
		}
		if res := s.verifier.Verify(ctx, token); !res.Success {
			msg := res.Error
			if msg == "" {
				msg = "Captcha verification failed"
			}
			writeError(w, http.StatusForbidden, "captcha_error", msg)
			return
		}
	}

	runID := telemetry.NewID()
	logger := telemetry.RequestLogger(ctx, s.logger, "recommend").With("run_id", runID)

	items, _, err := s.agent.Recommend(ctx, runID, query, s.runEmitter(logger))
	if err != nil {
		logger.Error("recommendation run failed", "error", err)
		if timedOut(ctx) {
			writeError(w, http.StatusGatewayTimeout, "timeout", stream.MsgTimeout)
			return
		}
		writeError(w, http.StatusBadGateway, "run_failed", err.Error())
		return
	}
	movies, err := s.enricher.EnrichAll(ctx, items)
	if err != nil {
		if timedOut(ctx) {
			writeError(w, http.StatusGatewayTimeout, "timeout", stream.MsgTimeout)
			return
		}
		writeError(w, http.StatusGatewayTimeout, "canceled", err.Error())
		return
	}
	if movies == nil {
		movies = []recommend.EnrichedMovie{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "movies": movies})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.StreamTimeout > 0 {
		return context.WithTimeout(r.Context(), s.cfg.StreamTimeout)
	}
	return context.WithCancel(r.Context())
}

func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// runEmitter logs agent lifecycle events and derives metrics from them.
func (s *Server) runEmitter(logger *slog.Logger) events.Emitter {
	return events.Multi(events.LogEmitter{Logger: logger}, s.metrics.Emitter())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes {"error": {"code": ..., "message": ...}}.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]apiError{
		"error": {Code: code, Message: message},
	})
}
