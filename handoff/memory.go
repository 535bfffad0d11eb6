package handoff

import (
	"context"
	"sync"
)

// Memory is a Store guarded by a single mutex.
type Memory[T any] struct {
	mu      sync.Mutex
	entries map[string]T
}

// NewMemory creates an empty in-memory Store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{entries: make(map[string]T)}
}

func (m *Memory[T]) Put(_ context.Context, key string, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return ErrAlreadyWritten
	}
	m.entries[key] = v
	return nil
}

func (m *Memory[T]) Take(_ context.Context, key string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	delete(m.entries, key)
	return v, nil
}

func (m *Memory[T]) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of pending entries.
func (m *Memory[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
