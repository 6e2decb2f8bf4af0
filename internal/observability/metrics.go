package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/Avi18971911/TraceReconstructor"

// PipelineMetrics holds the counters recorded by the reconstruction pipeline.
// A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	spansConsumed  metric.Int64Counter
	spansMalformed metric.Int64Counter
	lateDropped    metric.Int64Counter
	updatesEmitted metric.Int64Counter
	windowsEvicted metric.Int64Counter
	batchesFlushed metric.Int64Counter
}

func NewPipelineMetrics(provider metric.MeterProvider) (*PipelineMetrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(instrumentationName)
	pm := &PipelineMetrics{}
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&pm.spansConsumed, "reconstructor.spans.consumed", "Spans folded into per-trace aggregates."},
		{&pm.spansMalformed, "reconstructor.spans.malformed", "Input records rejected because they could not be decoded or validated."},
		{&pm.lateDropped, "reconstructor.records.late_dropped", "Trace updates dropped because their window's grace period had elapsed."},
		{&pm.updatesEmitted, "reconstructor.updates.emitted", "Reduced trace updates forwarded downstream."},
		{&pm.windowsEvicted, "reconstructor.windows.evicted", "Closed windows released from the reducer state store."},
		{&pm.batchesFlushed, "reconstructor.batches.flushed", "Completed trace batches handed to batch sinks."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return pm, nil
}

func (pm *PipelineMetrics) SpanConsumed(ctx context.Context, partition int) {
	if pm == nil {
		return
	}
	pm.spansConsumed.Add(ctx, 1, metric.WithAttributes(attribute.Int("partition", partition)))
}

func (pm *PipelineMetrics) SpanMalformed(ctx context.Context) {
	if pm == nil {
		return
	}
	pm.spansMalformed.Add(ctx, 1)
}

func (pm *PipelineMetrics) LateRecordDropped(ctx context.Context, partition int) {
	if pm == nil {
		return
	}
	pm.lateDropped.Add(ctx, 1, metric.WithAttributes(attribute.Int("partition", partition)))
}

func (pm *PipelineMetrics) UpdatesEmitted(ctx context.Context, n int) {
	if pm == nil || n == 0 {
		return
	}
	pm.updatesEmitted.Add(ctx, int64(n))
}

func (pm *PipelineMetrics) WindowsEvicted(ctx context.Context, partition int, n int) {
	if pm == nil || n == 0 {
		return
	}
	pm.windowsEvicted.Add(ctx, int64(n), metric.WithAttributes(attribute.Int("partition", partition)))
}

func (pm *PipelineMetrics) BatchFlushed(ctx context.Context, sink string) {
	if pm == nil {
		return
	}
	pm.batchesFlushed.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
