package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/lucrnz/ai-movies-rec-app/internal/events"
	"github.com/lucrnz/ai-movies-rec-app/internal/loop"
	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
	"github.com/lucrnz/ai-movies-rec-app/internal/verify"
)

// Recommender runs the agent. *recommend.Agent implements it.
type Recommender interface {
	Recommend(ctx context.Context, runID, criteria string, emitter events.Emitter) ([]recommend.Item, *loop.Response, error)
}

// Enricher turns one finalized item into a movie. *recommend.Enricher
// implements it.
type Enricher interface {
	Enrich(ctx context.Context, item recommend.Item) (recommend.EnrichedMovie, bool, error)
}

// Verifier checks bot-verification tokens. *verify.Turnstile implements it.
type Verifier interface {
	Enabled() bool
	Verify(ctx context.Context, token string) verify.Result
}

// Request is one recommendation request.
type Request struct {
	Query          string
	TurnstileToken string
	RunID          string
}

// MsgTimeout ends a stream whose run outlived the server's deadline.
const MsgTimeout = "Request timed out"

// Pipeline turns a Request into a complete event stream.
type Pipeline struct {
	Agent    Recommender
	Enricher Enricher
	// Verifier may be nil, which disables verification.
	Verifier Verifier
	// Emitter receives the agent's lifecycle events alongside the progress
	// translation, e.g. for logging and metrics.
	Emitter events.Emitter
	Logger  *slog.Logger
}

// Serve runs req and writes its frames to w. Whatever happens, the stream
// ends with exactly one terminal frame unless the consumer went away first.
// ctx bounds the run; w watches the connection, so a run deadline still
// reaches the consumer as an error frame.
func (p *Pipeline) Serve(ctx context.Context, req Request, w *Writer) {
	final := p.run(ctx, req, w)
	if err := w.Send(final); err != nil && !w.Terminated() {
		p.logger().Debug("terminal frame not delivered", "run_id", req.RunID, "error", err)
	}
}

func (p *Pipeline) run(ctx context.Context, req Request, w *Writer) (final Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger().Error("recommendation stream panicked",
				"run_id", req.RunID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			final = Error(fmt.Sprint(r))
		}
	}()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Error("Query parameter is required")
	}
	if p.Verifier != nil && p.Verifier.Enabled() {
		if req.TurnstileToken == "" {
			return CaptchaError("Captcha token is required")
		}
		if res := p.Verifier.Verify(ctx, req.TurnstileToken); !res.Success {
			msg := res.Error
			if msg == "" {
				msg = "Captcha verification failed"
			}
			return CaptchaError(msg)
		}
	}

	emitter := events.Emitter(&progressEmitter{w: w})
	if p.Emitter != nil {
		emitter = events.Multi(emitter, p.Emitter)
	}
	items, _, err := p.Agent.Recommend(ctx, req.RunID, query, emitter)
	if err != nil {
		return failure(ctx, err)
	}

	for _, item := range items {
		movie, ok, err := p.Enricher.Enrich(ctx, item)
		if err != nil {
			return failure(ctx, err)
		}
		if !ok {
			continue
		}
		if err := w.Send(Movie(movie)); err != nil {
			return Error(err.Error())
		}
	}
	return Done()
}

// failure maps a run error to its terminal frame.
func failure(ctx context.Context, err error) Event {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Error(MsgTimeout)
	}
	return Error(err.Error())
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
