package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the runtime's own
// components, grounded on the teacher's pkg/observability/metrics.go
// (per-subsystem CounterVec/HistogramVec groups registered against a
// private *prometheus.Registry, a Handler() for the scrape endpoint),
// trimmed to the subsystems SPEC_FULL.md's components actually have:
// orchestrator turns, LLM calls, tool dispatch, memory search, and
// inbound HTTP — the teacher's agent/session/RAG-indexing subsystems
// have no equivalent component here.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	orchestratorTurns        *prometheus.CounterVec
	orchestratorTurnDuration *prometheus.HistogramVec
	orchestratorErrors       *prometheus.CounterVec

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	memorySearches    *prometheus.CounterVec
	memorySearchDur   *prometheus.HistogramVec
	memorySearchCount *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance. Returns (nil, nil) when
// metrics are disabled.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.initOrchestratorMetrics()
	m.initLLMMetrics()
	m.initToolMetrics()
	m.initMemoryMetrics()
	m.initHTTPMetrics()
	return m, nil
}

func (m *Metrics) initOrchestratorMetrics() {
	m.orchestratorTurns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "orchestrator", Name: "turns_total",
		Help: "Total number of ProcessMessage turns run", ConstLabels: m.config.ConstLabels,
	}, []string{"agent_slug"})

	m.orchestratorTurnDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "orchestrator", Name: "turn_duration_seconds",
		Help: "Duration of a full ProcessMessage turn in seconds", ConstLabels: m.config.ConstLabels,
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"agent_slug"})

	m.orchestratorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "orchestrator", Name: "errors_total",
		Help: "Total number of ProcessMessage turns that failed", ConstLabels: m.config.ConstLabels,
	}, []string{"agent_slug", "step"})

	m.registry.MustRegister(m.orchestratorTurns, m.orchestratorTurnDuration, m.orchestratorErrors)
}

func (m *Metrics) initLLMMetrics() {
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "calls_total",
		Help: "Total number of LLM adapter stream/complete calls", ConstLabels: m.config.ConstLabels,
	}, []string{"backend", "model"})

	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "call_duration_seconds",
		Help: "LLM call duration in seconds", ConstLabels: m.config.ConstLabels,
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"backend", "model"})

	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_input_total",
		Help: "Total input tokens consumed", ConstLabels: m.config.ConstLabels,
	}, []string{"backend", "model"})

	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_output_total",
		Help: "Total output tokens produced", ConstLabels: m.config.ConstLabels,
	}, []string{"backend", "model"})

	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput)
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool dispatches via the router", ConstLabels: m.config.ConstLabels,
	}, []string{"tool_name", "status"})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help: "Tool dispatch duration in seconds", ConstLabels: m.config.ConstLabels,
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	}, []string{"tool_name"})

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration)
}

func (m *Metrics) initMemoryMetrics() {
	m.memorySearches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "memory", Name: "searches_total",
		Help: "Total number of long-term memory hybrid searches", ConstLabels: m.config.ConstLabels,
	}, []string{})

	m.memorySearchDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "memory", Name: "search_duration_seconds",
		Help: "Hybrid memory search duration in seconds", ConstLabels: m.config.ConstLabels,
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{})

	m.memorySearchCount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "memory", Name: "search_results",
		Help: "Number of results returned per memory search", ConstLabels: m.config.ConstLabels,
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	}, []string{})

	m.registry.MustRegister(m.memorySearches, m.memorySearchDur, m.memorySearchCount)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "http", Name: "requests_total",
		Help: "Total number of inbound HTTP requests", ConstLabels: m.config.ConstLabels,
	}, []string{"method", "path", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "Inbound HTTP request duration in seconds", ConstLabels: m.config.ConstLabels,
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"method", "path"})

	m.registry.MustRegister(m.httpRequests, m.httpDuration)
}

// RecordOrchestratorTurn records one completed ProcessMessage turn.
func (m *Metrics) RecordOrchestratorTurn(agentSlug string, duration time.Duration, err error, failedStep string) {
	if m == nil {
		return
	}
	m.orchestratorTurns.WithLabelValues(agentSlug).Inc()
	m.orchestratorTurnDuration.WithLabelValues(agentSlug).Observe(duration.Seconds())
	if err != nil {
		m.orchestratorErrors.WithLabelValues(agentSlug, failedStep).Inc()
	}
}

// RecordLLMCall records one adapter call's duration and token usage.
func (m *Metrics) RecordLLMCall(backend, model string, duration time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(backend, model).Inc()
	m.llmCallDuration.WithLabelValues(backend, model).Observe(duration.Seconds())
	m.llmTokensInput.WithLabelValues(backend, model).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(backend, model).Add(float64(outputTokens))
}

// RecordToolCall records one router dispatch.
func (m *Metrics) RecordToolCall(toolName, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName, status).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordMemorySearch records one hybrid long-term memory search.
func (m *Metrics) RecordMemorySearch(duration time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.memorySearches.WithLabelValues().Inc()
	m.memorySearchDur.WithLabelValues().Observe(duration.Seconds())
	m.memorySearchCount.WithLabelValues().Observe(float64(resultCount))
}

// RecordHTTPRequest records one inbound HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = "unknown"
	}
	m.httpRequests.WithLabelValues(method, path, statusText).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving the Prometheus scrape
// endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
