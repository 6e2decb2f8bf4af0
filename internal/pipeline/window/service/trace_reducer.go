package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/db/state_store"
	"github.com/Avi18971911/TraceReconstructor/internal/observability"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"go.uber.org/zap"
)

type WindowOptions struct {
	Length time.Duration
	Grace  time.Duration
}

// WindowedTraceReducer merges traces sharing a signature within tumbling
// event-time windows. One reducer owns one partition of the signature space and
// is not safe for concurrent use.
type WindowedTraceReducer struct {
	store     *state_store.TraceStore
	partition int
	options   WindowOptions
	metrics   *observability.PipelineMetrics
	logger    *zap.Logger

	streamTime    time.Time
	hasStreamTime bool
	restored      bool
}

func NewWindowedTraceReducer(
	store *state_store.TraceStore,
	partition int,
	options WindowOptions,
	metrics *observability.PipelineMetrics,
	logger *zap.Logger,
) *WindowedTraceReducer {
	return &WindowedTraceReducer{
		store:     store,
		partition: partition,
		options:   options,
		metrics:   metrics,
		logger:    logger.With(zap.Int("reducer_partition", partition)),
	}
}

// Reduce folds update into its (signature, window) bucket and returns the new
// reduced value. The boolean is true when the update arrived after its
// window's grace period and was dropped.
func (wr *WindowedTraceReducer) Reduce(
	ctx context.Context,
	update model.Update[model.Signature],
) (model.Update[model.WindowedKey], bool, error) {
	if err := wr.restore(ctx); err != nil {
		return model.Update[model.WindowedKey]{}, false, err
	}

	eventTime := update.EventTime
	if !wr.hasStreamTime || eventTime.After(wr.streamTime) {
		wr.streamTime = eventTime
		wr.hasStreamTime = true
	}
	closeTime := wr.streamTime.Add(-wr.options.Grace)
	window := model.WindowFor(eventTime, wr.options.Length)

	if !window.End().After(closeTime) {
		wr.metrics.LateRecordDropped(ctx, wr.partition)
		wr.logger.Debug(
			"Dropping trace update for closed window",
			zap.String("trace_id", update.Trace.TraceID),
			zap.Time("window_end", window.End()),
			zap.Time("close_time", closeTime),
		)
		return model.Update[model.WindowedKey]{}, true, nil
	}

	key := windowKey(wr.partition, window.Start, update.Key.Digest())
	bucket, err := wr.loadBucket(ctx, key)
	if err != nil {
		return model.Update[model.WindowedKey]{}, false, err
	}
	reduced, found := bucket.find(update.Key)
	if found {
		reduced = MergeReduced(reduced, update.Trace)
	} else {
		reduced = update.Trace.Clone()
	}

	value, err := bucket.put(update.Key, reduced).encode()
	if err != nil {
		return model.Update[model.WindowedKey]{}, false, err
	}
	evict := state_store.DeleteRangeOperation(
		windowStartKey(wr.partition, minWindowStart),
		windowStartKey(wr.partition, closeTime.Add(-wr.options.Length).UnixNano()+1),
	)
	err = wr.store.Batch(
		ctx,
		state_store.PutOperation(key, value),
		state_store.PutOperation(streamTimeKey(wr.partition), encodeTime(wr.streamTime)),
		evict,
	)
	if err != nil {
		return model.Update[model.WindowedKey]{}, false, fmt.Errorf("failed to store reduced trace: %w", err)
	}
	if len(evict.Deleted) > 0 {
		wr.metrics.WindowsEvicted(ctx, wr.partition, len(evict.Deleted))
		wr.logger.Debug("Evicted closed windows", zap.Int("count", len(evict.Deleted)))
	}

	return model.Update[model.WindowedKey]{
		Key:       model.WindowedKey{Signature: update.Key, Window: window},
		Trace:     reduced.Clone(),
		EventTime: eventTime,
		Stage:     model.StageReduced,
	}, false, nil
}

func (wr *WindowedTraceReducer) loadBucket(ctx context.Context, key []byte) (reducedBucket, error) {
	value, err := wr.store.GetValue(ctx, key)
	switch {
	case errors.Is(err, state_store.ErrKeyNotFound):
		return reducedBucket{}, nil
	case err != nil:
		return reducedBucket{}, fmt.Errorf("failed to load reduced trace: %w", err)
	}
	return decodeReducedBucket(value)
}

// restore re-hydrates the partition's stream time after a restart.
func (wr *WindowedTraceReducer) restore(ctx context.Context) error {
	if wr.restored {
		return nil
	}
	op := state_store.GetOperation(streamTimeKey(wr.partition))
	if err := wr.store.Batch(ctx, op); err != nil {
		return fmt.Errorf("failed to restore stream time for partition %d: %w", wr.partition, err)
	}
	if op.Value != nil {
		wr.streamTime = decodeTime(op.Value)
		wr.hasStreamTime = true
	}
	wr.restored = true
	return nil
}

func (wr *WindowedTraceReducer) StreamTime() (time.Time, bool) {
	return wr.streamTime, wr.hasStreamTime
}
