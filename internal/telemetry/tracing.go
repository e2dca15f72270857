package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope of jobwatch spans.
const TracerName = "github.com/flemzord/jobwatch"

// TracingConfig configures span export.
type TracingConfig struct {
	// Endpoint is host:port of an OTLP/HTTP collector. Empty disables export.
	Endpoint string
	Insecure bool

	ServiceVersion string
}

// Tracing owns the tracer provider for the process lifetime.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// SetupTracing builds a tracer provider exporting over OTLP/HTTP, or a
// no-op provider when no endpoint is configured. The provider is also
// installed as the global one.
func SetupTracing(ctx context.Context, cfg TracingConfig) (*Tracing, error) {
	if cfg.Endpoint == "" {
		return &Tracing{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "jobwatch"),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Tracing{provider: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns the jobwatch tracer.
func (t *Tracing) Tracer() trace.Tracer {
	return t.provider.Tracer(TracerName)
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
