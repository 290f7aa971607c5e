package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by every Repository when a key is absent.
var ErrNotFound = errors.New("not found")

// Repository is the key/value boundary the workflow engine, the notification
// hub and the forwarding sink persist through.
type Repository[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Put(ctx context.Context, key string, value T) error
	List(ctx context.Context) ([]T, error)
	Delete(ctx context.Context, key string) error
}

type MemoryRepository[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewMemoryRepository[T any]() *MemoryRepository[T] {
	return &MemoryRepository[T]{items: make(map[string]T)}
}

func (m *MemoryRepository[T]) Get(_ context.Context, key string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return v, nil
}

func (m *MemoryRepository[T]) Put(_ context.Context, key string, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// List returns values ordered by key so callers see a stable order.
func (m *MemoryRepository[T]) List(_ context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.items[k])
	}
	return out, nil
}

func (m *MemoryRepository[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return ErrNotFound
	}
	delete(m.items, key)
	return nil
}
