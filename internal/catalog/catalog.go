// Package catalog talks to the movie catalog (TMDB): text search for
// candidates and detail lookup by id.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Details when the catalog has no movie with the
// requested id.
var ErrNotFound = errors.New("catalog: movie not found")

// Candidate is the trimmed view of a search hit handed to the model.
type Candidate struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Overview string `json:"overview"`
}

// Details is a catalog movie record.
type Details struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title,omitempty"`
	Overview      string  `json:"overview"`
	PosterPath    *string `json:"poster_path"`
	BackdropPath  *string `json:"backdrop_path,omitempty"`
	ReleaseDate   string  `json:"release_date"`
	Runtime       int     `json:"runtime,omitempty"`
	VoteAverage   float64 `json:"vote_average,omitempty"`
	Popularity    float64 `json:"popularity,omitempty"`
}

// Candidate strips d down to what the model needs.
func (d Details) Candidate() Candidate {
	return Candidate{ID: d.ID, Title: d.Title, Overview: d.Overview}
}

// SearchPage is one page of search results.
type SearchPage struct {
	Page         int       `json:"page"`
	TotalPages   int       `json:"total_pages"`
	TotalResults int       `json:"total_results"`
	Results      []Details `json:"results"`
}

// Candidates returns at most limit trimmed results, in catalog order.
func (p *SearchPage) Candidates(limit int) []Candidate {
	n := len(p.Results)
	if limit >= 0 && n > limit {
		n = limit
	}
	out := make([]Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = p.Results[i].Candidate()
	}
	return out
}

// Client is the catalog capability consumed by the agent tools and the
// enrichment stage.
type Client interface {
	Search(ctx context.Context, query string, page int) (*SearchPage, error)
	Details(ctx context.Context, id int64) (*Details, error)
}

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog: %s: unexpected status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("catalog: %s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// Recorder receives catalog metrics. *telemetry.Metrics implements it.
type Recorder interface {
	CatalogRequest(operation, outcome string)
	BreakerState(name string, state int)
}

type nopRecorder struct{}

func (nopRecorder) CatalogRequest(string, string) {}
func (nopRecorder) BreakerState(string, int)      {}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
