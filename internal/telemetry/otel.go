// Package telemetry wires OpenTelemetry tracing.
package telemetry

import (
    "context"

    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
    "go.opentelemetry.io/otel/propagation"
    "go.opentelemetry.io/otel/sdk/resource"
    sdktrace "go.opentelemetry.io/otel/sdk/trace"
    semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Setup installs a global tracer provider exporting to endpoint over OTLP/HTTP.
// Tracing is opt-in: an empty endpoint returns a no-op shutdown and leaves the
// default no-op provider in place. The returned shutdown flushes pending spans
// and should be deferred by the caller.
func Setup(ctx context.Context, serviceName, endpoint string) (shutdown func(context.Context) error, err error) {
    noop := func(context.Context) error { return nil }
    if endpoint == "" {
        return noop, nil
    }

    exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
    if err != nil {
        return noop, err
    }
    res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
    if err != nil {
        return noop, err
    }

    tp := sdktrace.NewTracerProvider(
        sdktrace.WithBatcher(exporter),
        sdktrace.WithResource(res),
        sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
    )
    otel.SetTracerProvider(tp)
    otel.SetTextMapPropagator(propagation.TraceContext{})
    return tp.Shutdown, nil
}
