// Package kvstore abstracts the namespaced key-value persistence behind the
// cache store and the quota tracker.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrStorageFull is returned by Set when a bounded store has no room left.
	ErrStorageFull = errors.New("kvstore: storage full")
)

// Store is a flat key-value store. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Iterate calls fn for every key starting with prefix. Returning an error from fn
	// stops the iteration and is returned as is.
	Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
}
