package recommend

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lucrnz/ai-movies-rec-app/internal/catalog"
)

// EnrichRecorder receives enrichment outcomes. *telemetry.Metrics implements
// it.
type EnrichRecorder interface {
	Enrichment(outcome string)
}

type nopEnrichRecorder struct{}

func (nopEnrichRecorder) Enrichment(string) {}

// Enricher merges catalog details into finalized items.
type Enricher struct {
	catalog     catalog.Client
	logger      *slog.Logger
	recorder    EnrichRecorder
	concurrency int
}

// NewEnricher creates an enricher. concurrency bounds EnrichAll's parallel
// lookups; values below 1 mean one at a time.
func NewEnricher(c catalog.Client, concurrency int, logger *slog.Logger, recorder EnrichRecorder) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopEnrichRecorder{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{catalog: c, logger: logger, recorder: recorder, concurrency: concurrency}
}

// Enrich looks item up in the catalog. ok is false when the catalog does not
// know the id and the item should be dropped. Other lookup failures keep the
// item with empty details. err is only set when ctx is done.
func (e *Enricher) Enrich(ctx context.Context, item Item) (movie EnrichedMovie, ok bool, err error) {
	movie = EnrichedMovie{Item: item}

	d, err := e.catalog.Details(ctx, item.ID)
	switch {
	case err == nil:
		e.recorder.Enrichment("found")
	case errors.Is(err, catalog.ErrNotFound):
		e.recorder.Enrichment("not_found")
		e.logger.Info("dropping recommendation unknown to the catalog", "movie_id", item.ID, "title", item.Title)
		return movie, false, nil
	case ctx.Err() != nil:
		return movie, false, ctx.Err()
	default:
		e.recorder.Enrichment("error")
		e.logger.Warn("movie details unavailable", "movie_id", item.ID, "error", err)
		return movie, true, nil
	}

	if d.PosterPath != nil && *d.PosterPath != "" {
		movie.PosterURL = d.PosterPath
	}
	if d.Overview != "" {
		overview := d.Overview
		movie.Overview = &overview
	}
	movie.ReleaseYear = ReleaseYear(d.ReleaseDate)
	return movie, true, nil
}

// EnrichAll enriches items concurrently and returns the kept movies in the
// order of items.
func (e *Enricher) EnrichAll(ctx context.Context, items []Item) ([]EnrichedMovie, error) {
	movies := make([]EnrichedMovie, len(items))
	kept := make([]bool, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, item := range items {
		g.Go(func() error {
			m, ok, err := e.Enrich(gctx, item)
			if err != nil {
				return err
			}
			movies[i], kept[i] = m, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]EnrichedMovie, 0, len(items))
	for i, m := range movies {
		if kept[i] {
			out = append(out, m)
		}
	}
	return out, nil
}

// ReleaseYear returns the part of a YYYY-MM-DD date before the first dash,
// or nil when date has no dash.
func ReleaseYear(date string) *string {
	year, _, found := strings.Cut(date, "-")
	if !found || year == "" {
		return nil
	}
	return &year
}
