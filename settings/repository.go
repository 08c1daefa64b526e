package settings

import (
	"context"
	"slices"
	"sync"
)

// Repository stores the settings document.
type Repository interface {
	// LoadSettings returns the stored document, nil when nothing was saved.
	LoadSettings(ctx context.Context) ([]byte, error)
	SaveSettings(ctx context.Context, doc []byte) error
}

// MemoryRepository keeps the document in memory.
type MemoryRepository struct {
	mu  sync.Mutex
	doc []byte
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) LoadSettings(context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.doc), nil
}

func (r *MemoryRepository) SaveSettings(_ context.Context, doc []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = slices.Clone(doc)
	return nil
}
