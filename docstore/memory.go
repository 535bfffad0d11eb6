package docstore

import (
	"context"
	"errors"
	"sync"
)

type memEntry struct {
	partition string
	doc       Document
}

// Memory is an in-process Store.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]memEntry
	closed      bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]memEntry)}
}

var errClosed = errors.New("store is closed")

func (m *Memory) check(op, collection string) error {
	if m.closed {
		return &Error{Op: op, Collection: collection, Kind: ErrConnection, Err: errClosed}
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check("ping", "")
}

func (m *Memory) FindOne(ctx context.Context, collection string, filter Filter) (Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("find", collection); err != nil {
		return nil, false, err
	}
	for _, e := range m.collections[collection] {
		if filter.Matches(e.doc) {
			return clone(e.doc), true, nil
		}
	}
	return nil, false, nil
}

func (m *Memory) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("find", collection); err != nil {
		return nil, err
	}
	var out []Document
	for _, e := range m.collections[collection] {
		if filter.Matches(e.doc) {
			out = append(out, clone(e.doc))
		}
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, collection, partition string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("count", collection); err != nil {
		return 0, err
	}
	var n int64
	for _, e := range m.collections[collection] {
		if e.partition == partition {
			n++
		}
	}
	return n, nil
}

func (m *Memory) InsertMany(ctx context.Context, collection, partition string, docs []Document) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("insert", collection); err != nil {
		return 0, err
	}
	m.insert(collection, partition, docs)
	return len(docs), nil
}

func (m *Memory) DeleteMany(ctx context.Context, collection, partition string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete", collection); err != nil {
		return 0, err
	}
	return m.delete(collection, partition), nil
}

func (m *Memory) ReplacePartition(ctx context.Context, collection, partition string, docs []Document) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("replace", collection); err != nil {
		return 0, err
	}
	m.delete(collection, partition)
	m.insert(collection, partition, docs)
	return len(docs), nil
}

// Close marks the store closed; later calls fail with ErrConnection.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) insert(collection, partition string, docs []Document) {
	for _, d := range docs {
		m.collections[collection] = append(m.collections[collection], memEntry{partition: partition, doc: clone(d)})
	}
}

func (m *Memory) delete(collection, partition string) int64 {
	entries := m.collections[collection]
	kept := entries[:0]
	var removed int64
	for _, e := range entries {
		if e.partition == partition {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.collections[collection] = kept
	return removed
}
