package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/observability"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// BatchSink receives completed trace batches.
type BatchSink interface {
	Name() string
	WriteBatch(ctx context.Context, batch model.TraceBatch) error
}

type TraceWriteBuffer interface {
	WriteToBuffer(ctx context.Context, traces []model.Trace) error
	Flush(ctx context.Context) error
}

const maxUndeliveredBatches = 256

// TraceWriteBufferImpl queues completed traces and hands them to every sink in
// batches of at most batchSize. Batches a sink rejected are kept per sink and
// redelivered, in order and under the same batch id, on the next flush.
type TraceWriteBufferImpl struct {
	writeQueue  []model.Trace
	undelivered [][]model.TraceBatch
	sinks       []BatchSink
	batchSize  int
	metrics    *observability.PipelineMetrics
	logger     *zap.Logger
	now        func() time.Time
	mu         sync.Mutex
}

func NewTraceWriteBufferImpl(
	sinks []BatchSink,
	batchSize int,
	metrics *observability.PipelineMetrics,
	logger *zap.Logger,
) *TraceWriteBufferImpl {
	if batchSize < 1 {
		batchSize = 1
	}
	return &TraceWriteBufferImpl{
		writeQueue:  []model.Trace{},
		undelivered: make([][]model.TraceBatch, len(sinks)),
		sinks:       sinks,
		batchSize:   batchSize,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// WriteToBuffer queues traces and flushes every full batch.
func (wb *TraceWriteBufferImpl) WriteToBuffer(ctx context.Context, traces []model.Trace) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.writeQueue = append(wb.writeQueue, traces...)
	var err error
	for len(wb.writeQueue) >= wb.batchSize {
		full := wb.writeQueue[:wb.batchSize]
		wb.writeQueue = wb.writeQueue[wb.batchSize:]
		err = multierr.Append(err, wb.flushToSinks(ctx, full))
	}
	return err
}

// Flush hands every queued trace to the sinks, even if the batch is not full,
// and retries batches that earlier flushes failed to deliver.
func (wb *TraceWriteBufferImpl) Flush(ctx context.Context) error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	pending := wb.writeQueue
	wb.writeQueue = []model.Trace{}
	return wb.flushToSinks(ctx, pending)
}

func (wb *TraceWriteBufferImpl) flushToSinks(ctx context.Context, traces []model.Trace) error {
	var batch *model.TraceBatch
	if len(traces) > 0 {
		batch = &model.TraceBatch{
			BatchID:   uuid.NewString(),
			CreatedAt: wb.now().UTC(),
			Traces:    append([]model.Trace(nil), traces...),
		}
		wb.logger.Debug("Flushing trace batch",
			zap.String("batch_id", batch.BatchID),
			zap.Int("traces", len(batch.Traces)),
		)
	}
	var err error
	for i, sink := range wb.sinks {
		pending := wb.undelivered[i]
		if batch != nil {
			pending = append(pending, *batch)
		}
		remaining, sinkErr := wb.deliver(ctx, sink, pending)
		wb.undelivered[i] = remaining
		err = multierr.Append(err, sinkErr)
	}
	return err
}

// deliver writes batches in order and returns the ones the sink did not accept.
func (wb *TraceWriteBufferImpl) deliver(
	ctx context.Context,
	sink BatchSink,
	batches []model.TraceBatch,
) ([]model.TraceBatch, error) {
	for i, batch := range batches {
		if err := sink.WriteBatch(ctx, batch); err != nil {
			remaining := batches[i:]
			if len(remaining) > maxUndeliveredBatches {
				wb.logger.Error("Dropping undeliverable trace batches",
					zap.String("sink", sink.Name()),
					zap.Int("dropped", len(remaining)-maxUndeliveredBatches),
				)
				remaining = remaining[len(remaining)-maxUndeliveredBatches:]
			}
			return slices.Clone(remaining), fmt.Errorf("error writing batch %s to %s: %w", batch.BatchID, sink.Name(), err)
		}
		wb.metrics.BatchFlushed(ctx, sink.Name())
	}
	return nil, nil
}
