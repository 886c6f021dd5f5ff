package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucrnz/ai-movies-rec-app/internal/config"
	"github.com/lucrnz/ai-movies-rec-app/internal/events"
	"github.com/lucrnz/ai-movies-rec-app/internal/loop"
	"github.com/lucrnz/ai-movies-rec-app/internal/recommend"
	"github.com/lucrnz/ai-movies-rec-app/internal/stream"
	"github.com/lucrnz/ai-movies-rec-app/internal/telemetry"
	"github.com/lucrnz/ai-movies-rec-app/internal/tools"
	"github.com/lucrnz/ai-movies-rec-app/internal/verify"
)

// ---------- helpers ----------

func testItem(id int64) recommend.Item {
	return recommend.Item{
		ID:     id,
		Title:  fmt.Sprintf("Movie %d", id),
		Reason: fmt.Sprintf("Recommended because it explores identity and memory in a fresh way #%02d", id),
	}
}

type stubAgent struct {
	items []recommend.Item
	err   error
	runs  int
}

func (a *stubAgent) Recommend(_ context.Context, runID, criteria string, emitter events.Emitter) ([]recommend.Item, *loop.Response, error) {
	a.runs++
	params := map[string]any{"query": criteria}
	emitter.Emit(events.New(events.ToolCalled, runID).WithTool(recommend.ToolSearch, params))
	emitter.Emit(events.New(events.ToolResult, runID).WithTool(recommend.ToolSearch, params).WithResult(tools.Result{Success: true}))
	if a.err != nil {
		emitter.Emit(events.New(events.RunFailed, runID).WithData("error", a.err.Error()))
		return nil, nil, a.err
	}
	emitter.Emit(events.New(events.RunCompleted, runID).WithData("duration_ms", int64(1500)).WithData("tokens", 10))
	return a.items, &loop.Response{}, nil
}

type stubEnricher struct{ missing int64 }

func (e stubEnricher) Enrich(_ context.Context, it recommend.Item) (recommend.EnrichedMovie, bool, error) {
	if it.ID == e.missing {
		return recommend.EnrichedMovie{}, false, nil
	}
	return recommend.EnrichedMovie{Item: it}, true, nil
}

func (e stubEnricher) EnrichAll(ctx context.Context, items []recommend.Item) ([]recommend.EnrichedMovie, error) {
	var out []recommend.EnrichedMovie
	for _, it := range items {
		if m, ok, _ := e.Enrich(ctx, it); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// blockingAgent runs until its context ends.
type blockingAgent struct{}

func (blockingAgent) Recommend(ctx context.Context, _, _ string, _ events.Emitter) ([]recommend.Item, *loop.Response, error) {
	<-ctx.Done()
	return nil, nil, fmt.Errorf("loop: step 1: %w", ctx.Err())
}

type stubVerifier struct {
	ok     bool
	silent bool
}

func (v stubVerifier) Enabled() bool { return true }

func (v stubVerifier) Verify(_ context.Context, token string) verify.Result {
	if v.ok && token == "good" {
		return verify.Result{Success: true}
	}
	if v.silent {
		return verify.Result{}
	}
	return verify.Result{Error: "Validation failed: invalid-input-response"}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body %q: %v", rec.Body, err)
	}
	return body
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{Addr: "127.0.0.1:0", StreamTimeout: 5 * time.Second}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func frames(t *testing.T, body string) []stream.Event {
	t.Helper()
	var out []stream.Event
	for _, f := range strings.SplitAfter(body, "\n\n") {
		if f == "" {
			continue
		}
		e, err := stream.ParseFrame([]byte(f))
		if err != nil {
			t.Fatalf("ParseFrame(%q): %v", f, err)
		}
		out = append(out, e)
	}
	return out
}

// ---------- health & metrics ----------

func TestHealthz(t *testing.T) {
	s := New(testConfig(), &stubAgent{}, stubEnricher{}, WithVersion("1.2.3"))
	rec := get(t, s.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" || body["version"] != "1.2.3" {
		t.Errorf("body = %v", body)
	}
	if rec := get(t, s.Handler(), "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("/metrics without metrics = %d, want 404", rec.Code)
	}
}

// ---------- stream endpoint ----------

func TestRecommendStream(t *testing.T) {
	metrics := telemetry.NewMetrics()
	agent := &stubAgent{items: []recommend.Item{testItem(1), testItem(2), testItem(3)}}
	s := New(testConfig(), agent, stubEnricher{missing: 2}, WithMetrics(metrics))

	rec := get(t, s.Handler(), "/api/recommend?query=existential+sci-fi+about+identity")
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	evs := frames(t, rec.Body.String())
	var types []string
	for _, e := range evs {
		types = append(types, string(e.Type))
	}
	if got := strings.Join(types, ","); got != "progress,progress,movie,movie,done" {
		t.Fatalf("frames = %s", got)
	}
	if evs[0].Message != `Searching for "existential sci-fi about identity"...` {
		t.Errorf("first progress = %q", evs[0].Message)
	}
	if evs[2].Data.ID != 1 || evs[3].Data.ID != 3 {
		t.Errorf("movies out of order: %d, %d", evs[2].Data.ID, evs[3].Data.ID)
	}

	scrape := get(t, s.Handler(), "/metrics").Body.String()
	for _, want := range []string{
		`movierec_stream_frames_total{type="movie"} 2`,
		`movierec_agent_runs_total{status="completed"} 1`,
		`movierec_tool_calls_total{success="true",tool="searchMovies"} 1`,
	} {
		if !strings.Contains(scrape, want) {
			t.Errorf("metrics lack %s", want)
		}
	}
}

func TestRecommendStreamRejections(t *testing.T) {
	tests := []struct {
		name   string
		target string
		opts   []Option
		want   stream.Event
	}{
		{"missing query", "/api/recommend", nil, stream.Error("Query parameter is required")},
		{"missing token", "/api/recommend?query=noir", []Option{WithVerifier(stubVerifier{ok: true})},
			stream.CaptchaError("Captcha token is required")},
		{"rejected token", "/api/recommend?query=noir&turnstileToken=bad", []Option{WithVerifier(stubVerifier{})},
			stream.CaptchaError("Validation failed: invalid-input-response")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := &stubAgent{items: []recommend.Item{testItem(1)}}
			s := New(testConfig(), agent, stubEnricher{}, tt.opts...)
			evs := frames(t, get(t, s.Handler(), tt.target).Body.String())
			if len(evs) != 1 || evs[0] != tt.want {
				t.Errorf("frames = %+v, want only %+v", evs, tt.want)
			}
			if agent.runs != 0 {
				t.Error("agent ran")
			}
		})
	}
}

func TestRecommendStreamRunFailure(t *testing.T) {
	s := New(testConfig(), &stubAgent{err: errors.New("loop: step 1: 502 bad gateway")}, stubEnricher{})
	evs := frames(t, get(t, s.Handler(), "/api/recommend?query=noir").Body.String())
	last := evs[len(evs)-1]
	if last.Type != stream.TypeError || last.Message != "loop: step 1: 502 bad gateway" {
		t.Errorf("last frame = %+v", last)
	}
}

func TestRecommendStreamDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.StreamTimeout = 50 * time.Millisecond
	s := New(cfg, blockingAgent{}, stubEnricher{})

	evs := frames(t, get(t, s.Handler(), "/api/recommend?query=noir").Body.String())
	if len(evs) != 1 {
		t.Fatalf("frames = %+v, want a single terminal frame", evs)
	}
	if evs[0].Type != stream.TypeError || evs[0].Message != stream.MsgTimeout {
		t.Errorf("frame = %+v", evs[0])
	}
}

// ---------- JSON endpoint ----------

func TestRecommendJSON(t *testing.T) {
	agent := &stubAgent{items: []recommend.Item{testItem(1), testItem(2)}}
	s := New(testConfig(), agent, stubEnricher{missing: 1}, WithVerifier(stubVerifier{ok: true}))

	tests := []struct {
		target string
		status int
		code   string
		msg    string
	}{
		{"/api/recommendations", http.StatusBadRequest, "invalid_request", "Query parameter is required"},
		{"/api/recommendations?query=noir", http.StatusForbidden, "captcha_error", "Captcha token is required"},
		{"/api/recommendations?query=noir&turnstileToken=bad", http.StatusForbidden, "captcha_error", "Validation failed: invalid-input-response"},
		{"/api/recommendations?query=noir&turnstileToken=good", http.StatusOK, "", ""},
	}
	for _, tt := range tests {
		rec := get(t, s.Handler(), tt.target)
		if rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d (%s)", tt.target, rec.Code, tt.status, rec.Body)
		}
		if tt.code == "" {
			continue
		}
		body := decodeError(t, rec)
		if body.Error.Code != tt.code || body.Error.Message != tt.msg {
			t.Errorf("%s: error = %+v, want %s %q", tt.target, body.Error, tt.code, tt.msg)
		}
	}

	rec := get(t, s.Handler(), "/api/recommendations?query=noir&turnstileToken=good")
	var body struct {
		Movies []recommend.EnrichedMovie `json:"movies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Movies) != 1 || body.Movies[0].ID != 2 {
		t.Errorf("movies = %+v", body.Movies)
	}
	if agent.runs != 2 {
		t.Errorf("agent runs = %d, want 2", agent.runs)
	}
}

func TestRecommendJSONRunFailure(t *testing.T) {
	s := New(testConfig(), &stubAgent{err: errors.New("model down")}, stubEnricher{})
	rec := get(t, s.Handler(), "/api/recommendations?query=noir")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if body := decodeError(t, rec); body.Error.Code != "run_failed" || body.Error.Message != "model down" {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestRecommendJSONDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.StreamTimeout = 50 * time.Millisecond
	s := New(cfg, blockingAgent{}, stubEnricher{})

	rec := get(t, s.Handler(), "/api/recommendations?query=noir")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if body := decodeError(t, rec); body.Error.Code != "timeout" || body.Error.Message != stream.MsgTimeout {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestRecommendJSONSilentCaptchaRejection(t *testing.T) {
	s := New(testConfig(), &stubAgent{}, stubEnricher{}, WithVerifier(stubVerifier{silent: true}))
	rec := get(t, s.Handler(), "/api/recommendations?query=noir&turnstileToken=bad")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Message != "Captcha verification failed" {
		t.Errorf("message = %q", body.Error.Message)
	}
}

// ---------- middleware ----------

func TestRateLimitAndCORS(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 1
	cfg.RateWindow = time.Minute
	s := New(cfg, &stubAgent{}, stubEnricher{})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
		req.Header.Set("Origin", "https://movies.example")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	first := do()
	if first.Code != http.StatusBadRequest {
		t.Errorf("first status = %d", first.Code)
	}
	if got := first.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if second := do(); second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
	if rec := get(t, s.Handler(), "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz rate limited: %d", rec.Code)
	}
}

func TestListenAndServeShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(testConfig(), &stubAgent{}, stubEnricher{})
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
