// Package telemetry wraps one collector run in an OpenTelemetry trace
// span. It is purely additive: with no OTEL_EXPORTER_OTLP_ENDPOINT set
// otel's default no-op tracer provider keeps the tool's behavior
// and output identical to telemetry being absent entirely.
package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/intercc/intercc/internal/collector"

// Shutdown flushes and releases the tracer provider installed by Init.
type Shutdown func(context.Context) error

// Init installs a global TracerProvider. When OTEL_EXPORTER_OTLP_ENDPOINT
// is unset it installs nothing, leaving otel's default global provider
// (a no-op) in place instead of standing up an exporter nothing will
// ever read, and returns a Shutdown that does nothing.
func Init(ctx context.Context) (Shutdown, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", "intercc"),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartRun opens the span covering one collector.Run invocation.
func StartRun(ctx context.Context, command []string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "collector.Run")
	span.SetAttributes(attribute.StringSlice("process.command_args", command))
	return ctx, span
}
