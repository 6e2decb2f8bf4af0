package service

import (
	"context"
	"fmt"
	"time"

	completionService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/completion/service"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/event_bus"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"go.uber.org/zap"
)

const shutdownFlushTimeout = 10 * time.Second

type BatcherOptions struct {
	SweepInterval time.Duration
	FlushInterval time.Duration
}

// TraceBatcher collects re-emitted trace updates, infers which traces are
// complete and ships them downstream in batches.
type TraceBatcher struct {
	tracker *completionService.CompletionTracker
	buffer  TraceWriteBuffer
	bus     event_bus.PipelineEventBus[model.Update[string], any]
	options BatcherOptions
	logger  *zap.Logger
	now     func() time.Time
}

func NewTraceBatcher(
	tracker *completionService.CompletionTracker,
	buffer TraceWriteBuffer,
	bus event_bus.PipelineEventBus[model.Update[string], any],
	options BatcherOptions,
	logger *zap.Logger,
) *TraceBatcher {
	return &TraceBatcher{
		tracker: tracker,
		buffer:  buffer,
		bus:     bus,
		options: options,
		logger:  logger,
		now:     time.Now,
	}
}

// Start subscribes the batcher to the pipeline's trace updates.
func (tb *TraceBatcher) Start() error {
	err := tb.bus.Subscribe(
		event_bus.TraceUpdatesTopic,
		func(input model.Update[string]) error {
			tb.tracker.Observe(input, tb.now())
			return nil
		},
		true,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to trace updates for TraceBatcher: %w", err)
	}
	return nil
}

// Run sweeps completed traces into the write buffer until ctx is done, then
// ships every remaining trace.
func (tb *TraceBatcher) Run(ctx context.Context) error {
	sweepTicker := time.NewTicker(tb.options.SweepInterval)
	defer sweepTicker.Stop()
	flushTicker := time.NewTicker(tb.options.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return tb.shutdown(ctx)
		case <-sweepTicker.C:
			if err := tb.buffer.WriteToBuffer(ctx, tb.tracker.Sweep(tb.now())); err != nil {
				tb.logger.Error("Failed to write completed traces", zap.Error(err))
			}
		case <-flushTicker.C:
			if err := tb.buffer.Flush(ctx); err != nil {
				tb.logger.Error("Failed to flush trace batches", zap.Error(err))
			}
		}
	}
}

func (tb *TraceBatcher) shutdown(ctx context.Context) error {
	tb.bus.WaitAsync()
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	remaining := tb.tracker.Drain()
	tb.logger.Info("Flushing remaining traces", zap.Int("traces", len(remaining)))
	if err := tb.buffer.WriteToBuffer(flushCtx, remaining); err != nil {
		return fmt.Errorf("failed to write remaining traces: %w", err)
	}
	if err := tb.buffer.Flush(flushCtx); err != nil {
		return fmt.Errorf("failed to flush remaining traces: %w", err)
	}
	return nil
}
