package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory keeps values in a map. A positive capacity bounds the total stored bytes,
// which mirrors the quota of browser-style storage.
type Memory struct {
	mu       sync.RWMutex
	items    map[string][]byte
	size     int
	capacity int
}

func NewMemory(capacity int) *Memory {
	return &Memory{
		items:    make(map[string][]byte),
		capacity: capacity,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSize := m.size - len(m.items[key]) + len(value)
	if m.capacity > 0 && newSize > m.capacity {
		return ErrStorageFull
	}

	m.items[key] = append([]byte(nil), value...)
	m.size = newSize

	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.size -= len(m.items[key])
	delete(m.items, key)

	return nil
}

func (m *Memory) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	// Snapshot under the lock so fn may call back into the store.
	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	values := make(map[string][]byte, len(m.items))
	for k, v := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			values[k] = append([]byte(nil), v...)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, values[k]); err != nil {
			return err
		}
	}

	return nil
}
