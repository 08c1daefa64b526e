package tracker

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs tests and runs without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	meta    Meta
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		meta:    Meta{MaxEntries: DefaultMaxEntries},
	}
}

func (m *MemoryStore) Get(_ context.Context, fp string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[fp]
	if !ok {
		return nil, nil
	}
	cp := *e
	cp.Metadata = maps.Clone(e.Metadata)
	return &cp, nil
}

func (m *MemoryStore) Upsert(_ context.Context, fp string, ts time.Time, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[fp]
	if !ok {
		e = &Entry{Fingerprint: fp}
		m.entries[fp] = e
	}
	e.Count++
	e.Timestamp = ts
	if len(metadata) > 0 {
		e.Metadata = maps.Clone(metadata)
	}
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryStore) Compact(_ context.Context, cutoff time.Time, maxEntries int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.entries)
	for fp, e := range m.entries {
		if !e.Timestamp.After(cutoff) {
			delete(m.entries, fp)
		}
	}

	if maxEntries > 0 && len(m.entries) > maxEntries {
		kept := slices.SortedFunc(maps.Values(m.entries), func(a, b *Entry) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
		for _, e := range kept[maxEntries:] {
			delete(m.entries, e.Fingerprint)
		}
	}

	return before - len(m.entries), nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	return nil
}

func (m *MemoryStore) Meta(_ context.Context) (Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta, nil
}

func (m *MemoryStore) SetMeta(_ context.Context, meta Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
	return nil
}
