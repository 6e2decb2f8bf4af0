package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Avi18971911/TraceReconstructor/internal/db/state_store"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/timestamp"
	"go.uber.org/zap"
)

const traceKeyPrefix = "trace/"

// TraceAggregator folds spans into one Trace per trace id. All spans of one
// trace id must be handed to the same aggregator sequentially.
type TraceAggregator struct {
	store     *state_store.TraceStore
	extractor timestamp.Extractor
	logger    *zap.Logger
}

func NewTraceAggregator(
	store *state_store.TraceStore,
	extractor timestamp.Extractor,
	logger *zap.Logger,
) *TraceAggregator {
	return &TraceAggregator{
		store:     store,
		extractor: extractor,
		logger:    logger,
	}
}

func TraceKey(traceID string) []byte {
	return []byte(traceKeyPrefix + traceID)
}

// Aggregate folds span into the stored aggregate for traceID and returns a
// snapshot of the new aggregate. Nothing is emitted when the state store fails.
func (ta *TraceAggregator) Aggregate(
	ctx context.Context,
	traceID string,
	span model.Span,
) (model.Update[string], error) {
	key := TraceKey(traceID)
	previous, err := ta.store.Get(ctx, key)
	var next model.Trace
	switch {
	case errors.Is(err, state_store.ErrKeyNotFound):
		next = NewTrace(traceID, span)
	case err != nil:
		return model.Update[string]{}, fmt.Errorf("failed to load aggregate for trace %s: %w", traceID, err)
	default:
		next = FoldSpan(previous, span)
	}

	if err := ta.store.Put(ctx, key, next); err != nil {
		return model.Update[string]{}, fmt.Errorf("failed to store aggregate for trace %s: %w", traceID, err)
	}

	return model.Update[string]{
		Key:       traceID,
		Trace:     next.Clone(),
		EventTime: ta.extractor(span),
		Stage:     model.StageAggregated,
	}, nil
}

// Lookup returns the current aggregate for traceID.
func (ta *TraceAggregator) Lookup(ctx context.Context, traceID string) (model.Trace, error) {
	return ta.store.Get(ctx, TraceKey(traceID))
}
