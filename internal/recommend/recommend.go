// Package recommend is the movie recommendation domain: the oracle, the three
// agent tools and the quota policy they share, the agent that wires them into
// a run, and the enrichment stage that turns a finalized answer into
// displayable movies.
package recommend

import (
	"math"
	"strings"
)

// Tool names as the model sees them.
const (
	ToolSearch   = "searchMovies"
	ToolConsult  = "consultMovieRecommendations"
	ToolFinalize = "pickFinalAnswer"
)

// Item is one entry of a finalized answer.
type Item struct {
	ID     int64  `json:"id" validate:"gt=0"`
	Title  string `json:"title" validate:"notblank"`
	Reason string `json:"reason" validate:"min=50,max=100"`
}

// EnrichedMovie is an Item merged with catalog details. Each added field is
// nil when the catalog has nothing for it.
type EnrichedMovie struct {
	Item
	PosterURL   *string `json:"posterUrl"`
	Overview    *string `json:"overview"`
	ReleaseYear *string `json:"releaseYear"`
}

// Policy holds the per-run quotas.
type Policy struct {
	// TargetCount is the number of movies a finalized answer must hold, and
	// the minimum number of searches before finalizing.
	TargetCount int
	// SearchMultiplier scales TargetCount into the search quota and the
	// number of movies asked of the oracle.
	SearchMultiplier float64
	// MaxConsultations bounds oracle calls per run.
	MaxConsultations int
}

// DefaultPolicy returns the production quotas.
func DefaultPolicy() Policy {
	return Policy{TargetCount: 6, SearchMultiplier: 1.7, MaxConsultations: 2}
}

// MaxSearches is the number of searches a run is served. The call after the
// last served one is refused.
func (p Policy) MaxSearches() int {
	return scaled(p.TargetCount, p.SearchMultiplier)
}

// RecommendationCount is the number of movies the oracle is asked for.
func (p Policy) RecommendationCount() int {
	return scaled(p.TargetCount, p.SearchMultiplier)
}

// 1e-9 absorbs binary error so that 10*1.7 floors to 17, not 16.
func scaled(n int, k float64) int {
	return int(math.Floor(float64(n)*k + 1e-9))
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
