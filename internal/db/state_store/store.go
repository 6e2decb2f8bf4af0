package state_store

import (
	"context"
	"errors"
)

type OperationType int

const (
	Get OperationType = iota
	Put
	Delete
	DeleteRange
)

// Operation is one step of an atomic Batch. Get results and the keys removed by
// DeleteRange are written back into the operation.
type Operation struct {
	Type    OperationType
	Key     []byte
	Value   []byte
	EndKey  []byte
	Deleted [][]byte
}

func GetOperation(key []byte) *Operation {
	return &Operation{Type: Get, Key: key}
}

func PutOperation(key []byte, value []byte) *Operation {
	return &Operation{Type: Put, Key: key, Value: value}
}

func DeleteOperation(key []byte) *Operation {
	return &Operation{Type: Delete, Key: key}
}

// DeleteRangeOperation removes every key k with from <= k < to.
func DeleteRangeOperation(from []byte, to []byte) *Operation {
	return &Operation{Type: DeleteRange, Key: from, EndKey: to}
}

// KeyValueStore is the durable keyed state owned by exactly one operator.
// Implementations must be safe for concurrent use across disjoint keys.
type KeyValueStore interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Put(ctx context.Context, key []byte, value []byte) error
	Delete(ctx context.Context, key []byte) error
	// Batch applies the operations in order inside one transaction.
	Batch(ctx context.Context, ops ...*Operation) error
	Close() error
}

var (
	ErrKeyNotFound      = errors.New("key not found within the state store")
	ErrStoreClosed      = errors.New("state store is closed")
	ErrUnknownOperation = errors.New("unknown state store operation")
)
