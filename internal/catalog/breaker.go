package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings configures Breaker.
type BreakerSettings struct {
	Name string
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
	// Interval is the cyclic period after which closed-state counts reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before trying again.
	Timeout time.Duration
	// MinRequests and FailureRatio decide when to open.
	MinRequests  uint32
	FailureRatio float64
}

// Breaker wraps a Client with a circuit breaker. A movie that does not exist
// is a successful lookup, and a caller abandoning its request is not held
// against the upstream.
type Breaker struct {
	next Client
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps next.
func NewBreaker(next Client, s BreakerSettings, logger *slog.Logger, recorder Recorder) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if s.Name == "" {
		s.Name = "tmdb"
	}
	recorder.BreakerState(s.Name, int(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("catalog circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			recorder.BreakerState(name, int(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{next: next, cb: cb}
}

// State reports the breaker's current state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Search implements Client.
func (b *Breaker) Search(ctx context.Context, query string, page int) (*SearchPage, error) {
	return castResult[SearchPage](b.cb.Execute(func() (any, error) {
		return b.next.Search(ctx, query, page)
	}))
}

// Details implements Client.
func (b *Breaker) Details(ctx context.Context, id int64) (*Details, error) {
	return castResult[Details](b.cb.Execute(func() (any, error) {
		return b.next.Details(ctx, id)
	}))
}

func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("catalog: unavailable: %w", err)
		}
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("catalog: unexpected result type %T", result)
	}
	return typed, nil
}
