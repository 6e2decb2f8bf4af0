package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/observability"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/event_bus"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/topology"
	"go.uber.org/zap"
)

const commitTimeout = 10 * time.Second

// SpanSource yields keyed span records. Poll blocks for at most a bounded
// timeout and may return no records.
type SpanSource interface {
	Poll(ctx context.Context) ([]model.SpanRecord, error)
	Commit(ctx context.Context) error
}

// TraceSink receives the re-emitted trace changelog.
type TraceSink interface {
	Produce(ctx context.Context, updates []model.Update[string]) error
}

type DataPipeline struct {
	topology       *topology.Topology
	source         SpanSource
	sink           TraceSink
	updatesBus     event_bus.PipelineEventBus[any, model.Update[string]]
	commitInterval time.Duration
	lastCommit     time.Time
	metrics        *observability.PipelineMetrics
	logger         *zap.Logger
}

func NewDataPipeline(
	topology *topology.Topology,
	source SpanSource,
	sink TraceSink,
	updatesBus event_bus.PipelineEventBus[any, model.Update[string]],
	commitInterval time.Duration,
	metrics *observability.PipelineMetrics,
	logger *zap.Logger,
) *DataPipeline {
	return &DataPipeline{
		topology:       topology,
		source:         source,
		sink:           sink,
		updatesBus:     updatesBus,
		commitInterval: commitInterval,
		metrics:        metrics,
		logger:         logger,
	}
}

// Run polls, processes and commits until ctx is done. A failed batch is never
// committed; its error is returned so that the process restarts and replays
// from the last committed position.
func (dp *DataPipeline) Run(ctx context.Context) error {
	dp.lastCommit = time.Now()
	for {
		if ctx.Err() != nil {
			return dp.shutdown(ctx)
		}
		records, err := dp.source.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return dp.shutdown(ctx)
			}
			return fmt.Errorf("failed to poll span source: %w", err)
		}
		if len(records) == 0 {
			continue
		}
		// a polled batch is always applied in full so that shutdown can commit it
		if err := dp.ProcessRecords(context.WithoutCancel(ctx), records); err != nil {
			dp.logger.Error("Halting pipeline after failed batch", zap.Int("records", len(records)), zap.Error(err))
			return err
		}
		if ctx.Err() == nil && time.Since(dp.lastCommit) >= dp.commitInterval {
			if err := dp.commit(ctx); err != nil {
				return err
			}
		}
	}
}

// ProcessRecords runs one polled batch through the topology and forwards
// every emitted update to the sink and the event bus.
func (dp *DataPipeline) ProcessRecords(ctx context.Context, records []model.SpanRecord) error {
	valid := make([]model.SpanRecord, 0, len(records))
	for _, record := range records {
		if record.Err != nil {
			dp.metrics.SpanMalformed(ctx)
			dp.logger.Warn("Skipping malformed span record",
				zap.String("key", record.Key),
				zap.Error(record.Err),
			)
			continue
		}
		valid = append(valid, record)
	}
	if len(valid) == 0 {
		return nil
	}

	updates, err := dp.topology.ProcessBatch(ctx, valid)
	if err != nil {
		return fmt.Errorf("failed to process span batch: %w", err)
	}
	if len(updates) == 0 {
		return nil
	}
	if err := dp.sink.Produce(ctx, updates); err != nil {
		return fmt.Errorf("failed to produce trace updates: %w", err)
	}
	for _, update := range updates {
		if err := dp.updatesBus.Publish(event_bus.TraceUpdatesTopic, update); err != nil {
			dp.logger.Error("Failed to publish trace update", zap.String("trace_id", update.Key), zap.Error(err))
		}
	}
	return nil
}

func (dp *DataPipeline) commit(ctx context.Context) error {
	if err := dp.source.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit span source: %w", err)
	}
	dp.lastCommit = time.Now()
	return nil
}

func (dp *DataPipeline) shutdown(ctx context.Context) error {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	dp.logger.Info("Committing span source before shutdown")
	return dp.commit(commitCtx)
}
