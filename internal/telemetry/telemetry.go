package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/shaibs3/pagecache"

// Telemetry owns the meter provider and the Prometheus registry it exports to
type Telemetry struct {
	Meter    metric.Meter
	Metrics  *Metrics
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewTelemetry wires an OpenTelemetry meter to a private Prometheus registry
func NewTelemetry(logger *zap.Logger) (*Telemetry, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	metrics, err := NewMetrics(meter)
	if err != nil {
		return nil, err
	}

	logger.Named("telemetry").Info("telemetry initialized")
	return &Telemetry{
		Meter:    meter,
		Metrics:  metrics,
		provider: provider,
		registry: registry,
		logger:   logger.Named("telemetry"),
	}, nil
}

// Handler serves the Prometheus scrape endpoint
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// Metrics groups the instruments recorded across the orchestrator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests    metric.Int64Counter
	httpDuration    metric.Float64Histogram
	renders         metric.Int64Counter
	renderDuration  metric.Float64Histogram
	storeQueries    metric.Int64Counter
	enumeratedPaths metric.Int64Histogram
	expiredPages    metric.Int64Counter
}

// NewMetrics registers all instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.httpRequests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP requests by route and status")); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram("http_request_duration_ms",
		metric.WithDescription("HTTP request latency")); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_ms: %w", err)
	}
	if m.renders, err = meter.Int64Counter("pagecache_render_total",
		metric.WithDescription("Render-and-persist attempts by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create pagecache_render_total: %w", err)
	}
	if m.renderDuration, err = meter.Float64Histogram("pagecache_render_duration_ms",
		metric.WithDescription("Renderer call latency")); err != nil {
		return nil, fmt.Errorf("failed to create pagecache_render_duration_ms: %w", err)
	}
	if m.storeQueries, err = meter.Int64Counter("pagecache_store_queries_total",
		metric.WithDescription("Store operations by op and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create pagecache_store_queries_total: %w", err)
	}
	if m.enumeratedPaths, err = meter.Int64Histogram("pagecache_enumerated_paths",
		metric.WithDescription("Paths produced per enumeration by mode")); err != nil {
		return nil, fmt.Errorf("failed to create pagecache_enumerated_paths: %w", err)
	}
	if m.expiredPages, err = meter.Int64Counter("pagecache_expired_pages_total",
		metric.WithDescription("Cache pages removed by expiry sweeps")); err != nil {
		return nil, fmt.Errorf("failed to create pagecache_expired_pages_total: %w", err)
	}
	return m, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// HTTPRequest records one served request
func (m *Metrics) HTTPRequest(ctx context.Context, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("route", route), attribute.Int("status", status))
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// Render records one render-and-persist attempt
func (m *Metrics) Render(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome(err)))
	m.renders.Add(ctx, 1, attrs)
	m.renderDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// StoreQuery records one store operation
func (m *Metrics) StoreQuery(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	m.storeQueries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	))
}

// Enumerated records the size of one enumeration
func (m *Metrics) Enumerated(ctx context.Context, mode string, n int) {
	if m == nil {
		return
	}
	m.enumeratedPaths.Record(ctx, int64(n), metric.WithAttributes(attribute.String("mode", mode)))
}

// Expired records pages removed by one sweep
func (m *Metrics) Expired(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.expiredPages.Add(ctx, int64(n))
}
