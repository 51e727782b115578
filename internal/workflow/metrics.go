package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const outcomeOK = "ok"

type extractorMetrics struct {
	extractions metric.Int64Counter
	duration    metric.Float64Histogram
}

func newExtractorMetrics(meter metric.Meter) (*extractorMetrics, error) {
	if meter == nil {
		meter = otel.Meter("ai-workflows/backend/internal/workflow")
	}
	extractions, err := meter.Int64Counter("workflow.extractions",
		metric.WithDescription("Workflow extraction attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction counter: %w", err)
	}
	duration, err := meter.Float64Histogram("workflow.extraction.duration",
		metric.WithDescription("End-to-end extraction latency including the upstream call"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction histogram: %w", err)
	}
	return &extractorMetrics{extractions: extractions, duration: duration}, nil
}

func (m *extractorMetrics) record(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.extractions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
