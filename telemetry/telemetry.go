// Package telemetry installs the OTEL tracer provider and OTLP/HTTP
// exporter. It runs its own export pump independent of the
// serving goroutines (see SPEC_FULL.md §3.7), grounded on the
// envoyproxy-ai-gateway manifest's otel/otlptracehttp dependency set and on
// laya's telemetry.rs shutdown-drain shape, adapted from tokio-runtime
// lifetime management to a context.Context-scoped goroutine.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/deepzoom/iiifd/config"
)

const tracerName = "github.com/deepzoom/iiifd"

// ShutdownFunc flushes any in-flight spans and tears down the exporter.
// Callers should invoke it with a bounded context, typically from a
// SIGTERM handler (see cmd/iiifd).
type ShutdownFunc func(context.Context) error

// Init installs a global tracer provider per cfg and returns a Tracer
// plus a ShutdownFunc. When cfg.TelemetryEnabled is false, Init installs
// nothing and returns the OTEL no-op tracer and a no-op ShutdownFunc, so
// callers never need to branch on whether telemetry is active.
func Init(ctx context.Context, cfg config.Config) (trace.Tracer, ShutdownFunc, error) {
	if !cfg.TelemetryEnabled {
		return noop.NewTracerProvider().Tracer(tracerName), func(context.Context) error { return nil }, nil
	}

	exporterCtx, cancelExporter := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelExporter()

	exporter, err := otlptracehttp.New(exporterCtx, otlptracehttp.WithEndpoint(cfg.TelemetryEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: building OTLP/HTTP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "iiifd"),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: merging resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	shutdown := func(shutdownCtx context.Context) error {
		return provider.Shutdown(shutdownCtx)
	}

	return provider.Tracer(tracerName), shutdown, nil
}
