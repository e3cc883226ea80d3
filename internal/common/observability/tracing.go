// internal/common/observability/tracing.go
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EnableTracing installs a tracer provider exporting spans to a Jaeger collector.
func (o *Observability) EnableTracing(serviceName, collectorEndpoint string) error {
	if collectorEndpoint == "" {
		return fmt.Errorf("jaeger collector endpoint is empty")
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(collectorEndpoint)))
	if err != nil {
		return fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	o.tracer = tp.Tracer(serviceName)
	o.tracerShutdown = tp.Shutdown
	return nil
}
