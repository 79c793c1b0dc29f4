package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the OTel instruments an Orchestrator records against.
// They read from the global MeterProvider, so they're inert (the
// no-op implementation) until a process wires a real metric exporter,
// same as otelhttp's server spans are inert until a TracerProvider is
// installed.
type metrics struct {
	processed metric.Int64Counter
	duration  metric.Float64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter("github.com/riptide/core/pipeline")

	processed, _ := meter.Int64Counter(
		"riptide.pipeline.urls_processed",
		metric.WithDescription("URLs run through the extraction pipeline, by outcome"),
	)
	duration, _ := meter.Float64Histogram(
		"riptide.pipeline.url_duration_seconds",
		metric.WithDescription("Per-URL pipeline processing time"),
		metric.WithUnit("s"),
	)
	return &metrics{processed: processed, duration: duration}
}

func (m *metrics) recordResult(ctx context.Context, r Result) {
	outcome := "success"
	if r.Err != nil {
		outcome = "error"
	} else if r.FromCache {
		outcome = "cache_hit"
	}
	m.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("decision", string(r.Decision)),
	))
	m.duration.Record(ctx, r.ProcessingTime.Seconds(), metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
