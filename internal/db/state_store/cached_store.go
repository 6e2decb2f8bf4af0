package state_store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedStore is a write-through cache in front of a durable KeyValueStore.
// Writes always reach the durable store first; the cache only ever holds
// values that were successfully persisted. Reads never fill the cache, so a
// reader racing the key's single writer cannot put an older value back.
type CachedStore struct {
	cache   *ristretto.Cache
	backing KeyValueStore
}

const averageEntryBytes = 1 << 10

// NewRistrettoCache sizes the cache in bytes of serialized state.
func NewRistrettoCache(maxCost int64) (*ristretto.Cache, error) {
	numCounters := max(maxCost/averageEntryBytes, 1000) * 10
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create state cache: %w", err)
	}
	return cache, nil
}

func NewCachedStore(cache *ristretto.Cache, backing KeyValueStore) *CachedStore {
	return &CachedStore{cache: cache, backing: backing}
}

func (cs *CachedStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if value, found := cs.cache.Get(string(key)); found {
		typedValue, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("value not of expected type %T returned from cache when getting", value)
		}
		return bytes.Clone(typedValue), nil
	}
	return cs.backing.Get(ctx, key)
}

func (cs *CachedStore) Put(ctx context.Context, key []byte, value []byte) error {
	return cs.Batch(ctx, PutOperation(key, value))
}

func (cs *CachedStore) Delete(ctx context.Context, key []byte) error {
	return cs.Batch(ctx, DeleteOperation(key))
}

func (cs *CachedStore) Batch(ctx context.Context, ops ...*Operation) error {
	if err := cs.backing.Batch(ctx, ops...); err != nil {
		// the durable store may have rolled back; drop anything we might hold for these keys
		cs.invalidate(ops)
		return err
	}
	for _, op := range ops {
		switch op.Type {
		case Put:
			cs.set(op.Key, op.Value)
		case Delete:
			cs.cache.Del(string(op.Key))
		case DeleteRange:
			for _, k := range op.Deleted {
				cs.cache.Del(string(k))
			}
		}
	}
	return nil
}

func (cs *CachedStore) set(key []byte, value []byte) {
	cs.cache.Set(string(key), bytes.Clone(value), int64(len(value)))
	// sets of new keys are buffered; wait so a later Get never observes an older value
	cs.cache.Wait()
}

func (cs *CachedStore) invalidate(ops []*Operation) {
	for _, op := range ops {
		if op.Type != Get {
			cs.cache.Del(string(op.Key))
		}
	}
}

func (cs *CachedStore) Close() error {
	cs.cache.Close()
	err := cs.backing.Close()
	if err != nil && !errors.Is(err, ErrStoreClosed) {
		return err
	}
	return nil
}
