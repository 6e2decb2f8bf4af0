package state_store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

// TraceStore stores serialized traces in a KeyValueStore.
type TraceStore struct {
	kv KeyValueStore
}

func NewTraceStore(kv KeyValueStore) *TraceStore {
	return &TraceStore{kv: kv}
}

func (ts *TraceStore) Get(ctx context.Context, key []byte) (model.Trace, error) {
	value, err := ts.kv.Get(ctx, key)
	if err != nil {
		return model.Trace{}, err
	}
	return DecodeTrace(value)
}

// GetValue returns the stored bytes for values that are not a bare trace.
func (ts *TraceStore) GetValue(ctx context.Context, key []byte) ([]byte, error) {
	return ts.kv.Get(ctx, key)
}

func (ts *TraceStore) Put(ctx context.Context, key []byte, trace model.Trace) error {
	value, err := EncodeTrace(trace)
	if err != nil {
		return err
	}
	return ts.kv.Put(ctx, key, value)
}

func (ts *TraceStore) Batch(ctx context.Context, ops ...*Operation) error {
	return ts.kv.Batch(ctx, ops...)
}

func (ts *TraceStore) Close() error {
	return ts.kv.Close()
}

func EncodeTrace(trace model.Trace) ([]byte, error) {
	value, err := json.Marshal(trace)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace %s: %w", trace.TraceID, err)
	}
	return value, nil
}

func DecodeTrace(value []byte) (model.Trace, error) {
	var trace model.Trace
	if err := json.Unmarshal(value, &trace); err != nil {
		return model.Trace{}, fmt.Errorf("failed to unmarshal stored trace: %w", err)
	}
	return trace, nil
}
