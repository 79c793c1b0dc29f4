// Package observability wires distributed tracing across riptided,
// generalizing the teacher's OTelProvider (which exported both traces
// and metrics over OTLP/HTTP for a single agent) onto this service's
// pipeline and HTTP boundary. Metrics are left to the OTel metric API's
// global no-op provider: nothing here stands up a metrics exporter, so
// Meter() calls are safe but inert until one is wired in.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config selects where spans go. An empty OTLPEndpoint traces to
// stdout, which is enough to see spans locally without a collector.
type Config struct {
	ServiceName  string
	OTLPEndpoint string
	SampleRatio  float64
}

// Provider owns the process-wide TracerProvider and its exporter.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds a Provider, installing it as the global
// TracerProvider and propagator so every otelhttp middleware/transport
// in the process picks it up without being threaded through by hand.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("observability: service name must not be empty")
	}
	if cfg.SampleRatio <= 0 {
		cfg.SampleRatio = 1.0
	}

	exporter, err := newExporter(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("observability: build exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"https://opentelemetry.io/schemas/1.17.0",
		attribute.String("service.name", cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
}

// Tracer returns a named tracer from the installed provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Shutdown flushes pending spans and releases the exporter. Call it
// during graceful shutdown, after the HTTP server stops accepting new
// requests.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}
