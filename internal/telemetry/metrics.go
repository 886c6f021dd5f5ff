package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucrnz/ai-movies-rec-app/internal/events"
)

const namespace = "movierec"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	toolCallsTotal   *prometheus.CounterVec
	tokensTotal      *prometheus.CounterVec
	streamFrames     *prometheus.CounterVec
	catalogRequests  *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	enrichmentResult *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Agent runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_run_duration_seconds",
			Help:      "Wall time of agent runs.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and result.",
		}, []string{"tool", "success"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Tokens consumed by agent runs.",
		}, []string{"type"}),
		streamFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Frames written to recommendation streams by event type.",
		}, []string{"type"}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Catalog API requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
		enrichmentResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_items_total",
			Help:      "Finalized items by enrichment outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsTotal,
		m.runDuration,
		m.toolCallsTotal,
		m.tokensTotal,
		m.streamFrames,
		m.catalogRequests,
		m.breakerState,
		m.enrichmentResult,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// StreamFrame counts one frame written to a stream.
func (m *Metrics) StreamFrame(eventType string) {
	if m == nil {
		return
	}
	m.streamFrames.WithLabelValues(eventType).Inc()
}

// CatalogRequest counts one catalog call.
func (m *Metrics) CatalogRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.catalogRequests.WithLabelValues(operation, outcome).Inc()
}

// BreakerState records a breaker transition; state follows gobreaker's
// numbering.
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// Enrichment counts one enrichment outcome ("found", "not_found", "error").
func (m *Metrics) Enrichment(outcome string) {
	if m == nil {
		return
	}
	m.enrichmentResult.WithLabelValues(outcome).Inc()
}

// Emitter returns an events.Emitter that derives run and tool metrics from
// agent lifecycle events.
func (m *Metrics) Emitter() events.Emitter {
	if m == nil {
		return events.NoopEmitter{}
	}
	return events.EmitterFunc(m.observe)
}

func (m *Metrics) observe(ev *events.Event) {
	switch ev.Type {
	case events.ToolResult:
		success := ev.Result != nil && ev.Result.Success
		m.toolCallsTotal.WithLabelValues(ev.Tool, strconv.FormatBool(success)).Inc()
	case events.RunCompleted:
		m.runsTotal.WithLabelValues("completed").Inc()
		m.observeRun(ev)
	case events.RunFailed:
		m.runsTotal.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) observeRun(ev *events.Event) {
	if ms, ok := ev.Data["duration_ms"].(int64); ok {
		m.runDuration.Observe(float64(ms) / 1000)
	}
	if tokens, ok := ev.Data["tokens"].(int); ok {
		m.tokensTotal.WithLabelValues("total").Add(float64(tokens))
	}
}
