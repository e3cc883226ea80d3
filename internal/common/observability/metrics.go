// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability bundles the otel meter and tracer used by the assistant pipeline.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerShutdown func(context.Context) error
	meter          otelmetric.Meter
	tracer         trace.Tracer
	turnCounter    otelmetric.Int64Counter
	turnDuration   otelmetric.Float64Histogram
}

// New creates the meter provider backed by the Prometheus exporter. A failed exporter
// leaves metrics disabled rather than failing startup.
func New(serviceName string) *Observability {
	o := &Observability{tracer: noop.NewTracerProvider().Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o.meterProvider = provider
	o.meter = provider.Meter(serviceName)

	o.turnCounter, _ = o.meter.Int64Counter(
		"assistant.turns",
		otelmetric.WithDescription("Number of conversation turns processed"),
	)
	o.turnDuration, _ = o.meter.Float64Histogram(
		"assistant.turn.duration",
		otelmetric.WithDescription("Conversation turn duration"),
		otelmetric.WithUnit("ms"),
	)
	return o
}

// NewNoop returns an Observability that records nothing. Used by tests and the CLI.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("noop")}
}

// Tracer returns the tracer for pipeline spans.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("noop")
	}
	return o.tracer
}

func (o *Observability) RecordTurn(ctx context.Context, exit string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("exit", exit))
	if o.turnCounter != nil {
		o.turnCounter.Add(ctx, 1, attrs)
	}
	if o.turnDuration != nil {
		o.turnDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerShutdown != nil {
		_ = o.tracerShutdown(ctx)
	}
}
