package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultBaseURL is the TMDB v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

const maxBodyBytes = 4 << 20

// TMDB is a Client backed by the TMDB v3 HTTP API.
type TMDB struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	recorder   Recorder
}

// Option configures a TMDB client.
type Option func(*TMDB)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(t *TMDB) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *TMDB) { t.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *TMDB) { t.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(t *TMDB) { t.recorder = r }
}

// NewTMDB creates a client authenticating with a v4 read access token.
func NewTMDB(apiKey string, opts ...Option) *TMDB {
	t := &TMDB{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Search queries /search/movie. page is 1-based; values below 1 are treated
// as 1.
func (t *TMDB) Search(ctx context.Context, query string, page int) (*SearchPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))

	var out SearchPage
	err := t.get(ctx, "search", "/search/movie?"+q.Encode(), &out)
	t.recorder.CatalogRequest("search", outcome(err))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Details fetches /movie/{id}. A 404 yields ErrNotFound.
func (t *TMDB) Details(ctx context.Context, id int64) (*Details, error) {
	var out Details
	err := t.get(ctx, "details", "/movie/"+strconv.FormatInt(id, 10), &out)
	t.recorder.CatalogRequest("details", outcome(err))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *TMDB) get(ctx context.Context, op, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", op, err)
	}
	defer resp.Body.Close()

	t.logger.Debug("catalog request",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	body := io.LimitReader(resp.Body, maxBodyBytes)
	switch {
	case resp.StatusCode == http.StatusNotFound && op == "details":
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("catalog: %s: decode response: %w", op, err)
	}
	return nil
}
