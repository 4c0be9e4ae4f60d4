// Package observe provides application-wide observability primitives for
// VoiceForge: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all VoiceForge metrics.
const meterName = "github.com/voiceforge/voiceforge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// SynthesisDuration tracks end-to-end orchestrator latency. Use with
	// attribute.String("kind", "success"|"fallback").
	SynthesisDuration metric.Float64Histogram

	// LLMDuration tracks dialogue generation latency.
	LLMDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Fallbacks counts simulated-audio results by reason.
	Fallbacks metric.Int64Counter

	// BusyRejections counts voice requests refused because one was in flight.
	BusyRejections metric.Int64Counter

	// CatalogReloads counts character catalog swaps by status.
	CatalogReloads metric.Int64Counter

	// ActiveSessions tracks the number of open client sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote TTS calls that may run into the synthesis timeout.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("voiceforge.synthesis.duration",
		metric.WithDescription("Latency of voice synthesis requests, fallbacks included."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("voiceforge.llm.duration",
		metric.WithDescription("Latency of dialogue generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("voiceforge.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voiceforge.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("voiceforge.synthesis.fallbacks",
		metric.WithDescription("Total simulated-audio results by reason."),
	); err != nil {
		return nil, err
	}
	if met.BusyRejections, err = m.Int64Counter("voiceforge.session.busy_rejections",
		metric.WithDescription("Voice requests rejected because the session was busy."),
	); err != nil {
		return nil, err
	}
	if met.CatalogReloads, err = m.Int64Counter("voiceforge.catalog.reloads",
		metric.WithDescription("Character catalog reloads by status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voiceforge.active_sessions",
		metric.WithDescription("Number of open client sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voiceforge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSynthesis records one orchestrator run. reason is empty for
// successful runs.
func (m *Metrics) RecordSynthesis(ctx context.Context, seconds float64, kind, reason string) {
	m.SynthesisDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("kind", kind)))
	if reason != "" {
		m.Fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordBusy records a rejected voice request.
func (m *Metrics) RecordBusy(ctx context.Context) {
	m.BusyRejections.Add(ctx, 1)
}

// RecordCatalogReload records a catalog swap attempt.
func (m *Metrics) RecordCatalogReload(ctx context.Context, status string) {
	m.CatalogReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
