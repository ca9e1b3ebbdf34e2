package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName identifies spans emitted by this service in the global
// tracer provider.
const tracerName = "github.com/scadaflow/ingestcore"

// InitTracer installs a tracer provider scoped to serviceName. No OTLP
// exporter is configured: the external interfaces this runtime exposes
// name a metrics port and a gRPC port, not a trace collector endpoint, so
// wiring one here would have nowhere real to send spans. An operator who
// adds a collector endpoint can attach an exporter to the returned
// provider with a one-line WithBatcher/WithSyncer change. The returned
// function must be called on shutdown.
func InitTracer(serviceName string) (func(context.Context) error, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build tracing resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartSpan opens a span named for one of poll/flush/write_batch, tagged
// with the tenant and (where applicable) connection it covers.
func StartSpan(ctx context.Context, name, tenantID string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	allAttrs := append([]attribute.KeyValue{attribute.String("tenant_id", tenantID)}, attrs...)
	return otel.Tracer(tracerName).Start(ctx, name, oteltrace.WithAttributes(allAttrs...))
}
