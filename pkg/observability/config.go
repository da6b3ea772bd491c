// Package observability provides the runtime's tracing and metrics
// surface: an OpenTelemetry tracer exporting spans over OTLP/HTTP, and
// a Prometheus registry of counters/histograms for the pipeline's own
// components (orchestrator turns, LLM calls, tool dispatch, memory
// search, inbound HTTP). Grounded on the teacher's pkg/observability
// package (Manager lifecycle, Config/TracingConfig/MetricsConfig shape,
// SetDefaults/Validate pattern), trimmed per DESIGN.md: the teacher's
// debug in-memory span exporter (built for its own web UI) and its
// gRPC/stdout/jaeger/zipkin exporter variants are dropped — this
// runtime only ships an HTTP-only OTLP exporter, since nothing in
// SPEC_FULL.md calls for a local span inspector or a second transport.
package observability

import (
	"fmt"
	"time"
)

// Config configures the observability system.
type Config struct {
	Tracing TracingConfig
	Metrics MetricsConfig
}

// TracingConfig configures OpenTelemetry tracing over OTLP/HTTP.
type TracingConfig struct {
	Enabled        bool
	Endpoint       string // collector endpoint, e.g. "localhost:4318"
	Insecure       bool   // disable TLS for the exporter connection
	SamplingRate   float64
	ServiceName    string
	ServiceVersion string
	Timeout        time.Duration
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled     bool
	Endpoint    string // path to expose metrics on, e.g. "/metrics"
	Namespace   string // prefixes all metric names
	ConstLabels map[string]string
}

// SetDefaults applies default values to Config.
func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks the Config for errors.
func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// SetDefaults applies default values to TracingConfig.
func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "agentflow"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks TracingConfig for errors.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when tracing is enabled")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	return nil
}

// SetDefaults applies default values to MetricsConfig.
func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = "agentflow"
	}
}

// Validate checks MetricsConfig for errors.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when metrics are enabled")
	}
	return nil
}
