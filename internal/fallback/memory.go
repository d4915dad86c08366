package fallback

import (
	"context"
	"sync"
	"time"
)

// MemoryKV keeps entries in process memory. State is lost on restart, so it
// is meant for development and tests.
type MemoryKV struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

var _ KV = (*MemoryKV)(nil)

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string][]byte)}
}

// Load returns copies of every entry in collection.
func (m *MemoryKV) Load(_ context.Context, collection string) (map[string][]byte, error) {
	defer observe(m.Driver(), "load", time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	entries := m.data[collection]
	out := make(map[string][]byte, len(entries))
	for id, v := range entries {
		out[id] = append([]byte(nil), v...)
	}
	return out, nil
}

// Get returns copies of the requested entries.
func (m *MemoryKV) Get(_ context.Context, collection string, ids ...string) (map[string][]byte, error) {
	defer observe(m.Driver(), "get", time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	entries := m.data[collection]
	out := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if v, ok := entries[id]; ok {
			out[id] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// Put stores copies of entries.
func (m *MemoryKV) Put(_ context.Context, collection string, entries map[string][]byte) error {
	defer observe(m.Driver(), "put", time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	current, ok := m.data[collection]
	if !ok {
		current = make(map[string][]byte, len(entries))
		m.data[collection] = current
	}
	for id, v := range entries {
		current[id] = append([]byte(nil), v...)
	}
	return nil
}

// Delete removes ids. The collection stays written even when it empties.
func (m *MemoryKV) Delete(_ context.Context, collection string, ids ...string) error {
	defer observe(m.Driver(), "delete", time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, id := range ids {
		delete(m.data[collection], id)
	}
	return nil
}

// Written reports whether collection was ever Put.
func (m *MemoryKV) Written(_ context.Context, collection string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.data[collection]
	return ok, nil
}

// Ping fails only after Close.
func (m *MemoryKV) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Driver returns "memory".
func (m *MemoryKV) Driver() string { return "memory" }

// Close drops all data.
func (m *MemoryKV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
