package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Manager owns the lifecycle of tracing and metrics, grounded on the
// teacher's pkg/observability.Manager (init tracer, init metrics,
// shared Config, nil-safe accessor methods so a disabled Manager is
// just as usable as a configured one).
type Manager struct {
	config  *Config
	tracer  *Tracer
	metrics *Metrics
}

// NewManager builds a Manager from Config. A nil cfg disables both
// tracing and metrics.
func NewManager(ctx context.Context, cfg *Config) (*Manager, error) {
	if cfg == nil {
		return &Manager{}, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("observability: invalid config: %w", err)
	}

	m := &Manager{config: cfg}

	if cfg.Tracing.Enabled {
		tracer, err := NewTracer(ctx, &cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("observability: init tracing: %w", err)
		}
		m.tracer = tracer
		slog.Info("observability: tracing initialized", "endpoint", cfg.Tracing.Endpoint, "sampling_rate", cfg.Tracing.SamplingRate)
	}

	if cfg.Metrics.Enabled {
		metrics, err := NewMetrics(&cfg.Metrics)
		if err != nil {
			if m.tracer != nil {
				_ = m.tracer.Shutdown(ctx)
			}
			return nil, fmt.Errorf("observability: init metrics: %w", err)
		}
		m.metrics = metrics
		slog.Info("observability: metrics initialized", "endpoint", cfg.Metrics.Endpoint, "namespace", cfg.Metrics.Namespace)
	}

	return m, nil
}

// Tracer returns the tracer, or nil if tracing is disabled.
func (m *Manager) Tracer() *Tracer {
	if m == nil {
		return nil
	}
	return m.tracer
}

// Metrics returns the metrics collector, or nil if metrics are disabled.
func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// MetricsEnabled reports whether metrics collection is active.
func (m *Manager) MetricsEnabled() bool {
	return m != nil && m.metrics != nil
}

// MetricsEndpoint returns the configured metrics scrape path.
func (m *Manager) MetricsEndpoint() string {
	if m == nil || m.config == nil {
		return "/metrics"
	}
	return m.config.Metrics.Endpoint
}

// MetricsHandler returns the HTTP handler serving the scrape endpoint.
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil {
		return (*Metrics)(nil).Handler()
	}
	return m.metrics.Handler()
}

// Shutdown gracefully shuts down the tracer. Metrics need no explicit
// shutdown under Prometheus's pull model.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil || m.tracer == nil {
		return nil
	}
	if err := m.tracer.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability: tracer shutdown: %w", err)
	}
	slog.Info("observability: tracing shutdown complete")
	return nil
}
