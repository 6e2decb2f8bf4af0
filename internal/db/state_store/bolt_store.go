package state_store

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var stateBucket = []byte("state")

type BoltStore struct {
	db     *bbolt.DB
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

func bboltOptions(timeout time.Duration) *bbolt.Options {
	return &bbolt.Options{
		Timeout:      timeout,
		FreelistType: bbolt.FreelistMapType,
	}
}

func NewBoltStore(path string, openTimeout time.Duration, logger *zap.Logger) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, bboltOptions(openTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open state store at %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize state bucket in %s: %w", path, err)
	}
	logger.Info("Opened state store", zap.String("path", path))
	return &BoltStore{db: db, logger: logger}, nil
}

func (bs *BoltStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	op := GetOperation(key)
	if err := bs.Batch(ctx, op); err != nil {
		return nil, err
	}
	if op.Value == nil {
		return nil, ErrKeyNotFound
	}
	return op.Value, nil
}

func (bs *BoltStore) Put(ctx context.Context, key []byte, value []byte) error {
	return bs.Batch(ctx, PutOperation(key, value))
}

func (bs *BoltStore) Delete(ctx context.Context, key []byte) error {
	return bs.Batch(ctx, DeleteOperation(key))
}

func (bs *BoltStore) Batch(ctx context.Context, ops ...*Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	if bs.closed {
		return ErrStoreClosed
	}

	apply := func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		if bucket == nil {
			return fmt.Errorf("state bucket missing")
		}
		for _, op := range ops {
			var err error
			switch op.Type {
			case Get:
				// values returned by bbolt are only valid inside the transaction
				if value := bucket.Get(op.Key); value != nil {
					op.Value = bytes.Clone(value)
				} else {
					op.Value = nil
				}
			case Put:
				err = bucket.Put(op.Key, op.Value)
			case Delete:
				err = bucket.Delete(op.Key)
			case DeleteRange:
				op.Deleted, err = deleteRange(bucket, op.Key, op.EndKey)
			default:
				return ErrUnknownOperation
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	if readOnly(ops) {
		return bs.db.View(apply)
	}
	return bs.db.Update(apply)
}

func deleteRange(bucket *bbolt.Bucket, from []byte, to []byte) ([][]byte, error) {
	var keys [][]byte
	c := bucket.Cursor()
	for k, _ := c.Seek(from); k != nil && bytes.Compare(k, to) < 0; k, _ = c.Next() {
		keys = append(keys, bytes.Clone(k))
	}
	for _, k := range keys {
		if err := bucket.Delete(k); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func readOnly(ops []*Operation) bool {
	for _, op := range ops {
		if op.Type != Get {
			return false
		}
	}
	return true
}

func (bs *BoltStore) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.closed {
		return nil
	}
	bs.closed = true
	return bs.db.Close()
}
