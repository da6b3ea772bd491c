package observability

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerWithNilConfigDisablesEverything(t *testing.T) {
	m, err := NewManager(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, m.Tracer())
	assert.Nil(t, m.Metrics())
	assert.False(t, m.MetricsEnabled())
}

func TestNewManagerEnablesMetricsOnly(t *testing.T) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, m.Metrics())
	assert.True(t, m.MetricsEnabled())
	assert.Equal(t, "/metrics", m.MetricsEndpoint())
}

func TestMetricsRecordingIsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordOrchestratorTurn("default", 10*time.Millisecond, nil, "")
	m.RecordLLMCall("openai", "gpt-4o", 50*time.Millisecond, 10, 5)
	m.RecordToolCall("shell", "success", 5*time.Millisecond)
	m.RecordMemorySearch(1*time.Millisecond, 3)
	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
}

func TestMetricsHandlerServesScrapeEndpoint(t *testing.T) {
	cfg := &MetricsConfig{Enabled: true}
	metrics, err := NewMetrics(cfg)
	require.NoError(t, err)
	metrics.RecordToolCall("shell", "success", 5*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "agentflow_tool_calls_total")
}

func TestTracingConfigValidateRequiresEndpointWhenEnabled(t *testing.T) {
	cfg := TracingConfig{Enabled: true, Endpoint: ""}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestTracerStartIsNilSafe(t *testing.T) {
	var tracer *Tracer
	ctx, span := tracer.Start(context.Background(), "test")
	require.NotNil(t, ctx)
	span.End()
}
