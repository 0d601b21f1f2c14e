// internal/common/observability/observability.go
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability emits structured run/stage measurements for any tracing or
// monitoring backend scraping the prometheus endpoint.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	stageCounter  otelmetric.Int64Counter
	stageDuration otelmetric.Float64Histogram
	itemOutcomes  otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	stageCounter, _ := meter.Int64Counter(
		"pipeline.stage.transitions",
		otelmetric.WithDescription("Number of stage transitions"),
	)

	stageDuration, _ := meter.Float64Histogram(
		"pipeline.stage.duration",
		otelmetric.WithDescription("Stage execution duration"),
		otelmetric.WithUnit("ms"),
	)

	itemOutcomes, _ := meter.Int64Counter(
		"pipeline.item.outcomes",
		otelmetric.WithDescription("Per-item outcomes within a stage"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		itemOutcomes:  itemOutcomes,
	}
}

// RecordStageTransition counts a run entering a stage.
func (o *Observability) RecordStageTransition(ctx context.Context, stage string) {
	if o.stageCounter != nil {
		o.stageCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("stage", stage),
		))
	}
}

// RecordStageDuration records how long one stage invocation took.
func (o *Observability) RecordStageDuration(ctx context.Context, stage string, duration time.Duration) {
	if o.stageDuration != nil {
		o.stageDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("stage", stage),
		))
	}
}

// RecordItemOutcome counts a per-item result (scored, scoring-failed, unscored...).
func (o *Observability) RecordItemOutcome(ctx context.Context, stage, outcome string) {
	if o.itemOutcomes != nil {
		o.itemOutcomes.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
