package tracker

import (
	"context"
	"time"
)

const (
	// DefaultMaxAge is the retention window for sent fingerprints.
	DefaultMaxAge = 30 * 24 * time.Hour
	// DefaultMaxEntries caps the number of tracked fingerprints.
	DefaultMaxEntries = 10000
	// DefaultCompactionInterval is how often RunCompaction compacts the store.
	DefaultCompactionInterval = 24 * time.Hour
)

// Entry is one previously sent fingerprint.
type Entry struct {
	Fingerprint string            `json:"fingerprint"`
	Timestamp   time.Time         `json:"timestamp"`
	Count       int               `json:"count"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Meta holds the bookkeeping fields stored next to the entries.
type Meta struct {
	LastCleared time.Time `json:"lastCleared"`
	MaxEntries  int       `json:"maxEntries"`
}

// Store persists tracking entries. Implementations must make Upsert increment
// the count of an existing fingerprint instead of adding a second row.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, error)
	Upsert(ctx context.Context, fingerprint string, ts time.Time, metadata map[string]string) error
	Count(ctx context.Context) (int, error)
	// Compact removes entries with a timestamp at or before cutoff, then keeps
	// only the newest maxEntries. It returns the number of removed entries.
	Compact(ctx context.Context, cutoff time.Time, maxEntries int) (int, error)
	Clear(ctx context.Context) error
	Meta(ctx context.Context) (Meta, error)
	SetMeta(ctx context.Context, meta Meta) error
}
