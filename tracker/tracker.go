package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxAge sets the retention window used by scheduled compaction.
func WithMaxAge(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.maxAge = d
		}
	}
}

// WithMaxEntries sets the size cap used by scheduled compaction.
func WithMaxEntries(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxEntries.Store(int64(n))
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker is a bounded, time-decaying set of fingerprints that were already sent.
// Store failures never reach the caller: they are logged and the operation
// degrades to a no-op.
type Tracker struct {
	store      Store
	logger     zerolog.Logger
	now        func() time.Time
	maxAge     time.Duration
	maxEntries atomic.Int64
}

// New creates a Tracker over store.
func New(store Store, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		logger: logger.With().Str("component", "tracker").Logger(),
		now:    time.Now,
		maxAge: DefaultMaxAge,
	}
	t.maxEntries.Store(DefaultMaxEntries)

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// SetMaxEntries changes the cap used by scheduled compaction.
func (t *Tracker) SetMaxEntries(n int) {
	if n > 0 {
		t.maxEntries.Store(int64(n))
	}
}

// MaxEntries returns the cap used by scheduled compaction.
func (t *Tracker) MaxEntries() int {
	return int(t.maxEntries.Load())
}

func (t *Tracker) fail(op, fp string, err error) {
	terr := &TrackingError{Op: op, Fingerprint: fp, Err: err}
	t.logger.Warn().Err(terr).Msg("Duplicate tracking degraded")
}

// Has reports whether fp was sent before.
func (t *Tracker) Has(ctx context.Context, fp string) bool {
	if fp == "" {
		return false
	}
	entry, err := t.store.Get(ctx, fp)
	if err != nil {
		t.fail("lookup", fp, err)
		return false
	}
	return entry != nil
}

// Get returns the entry for fp, or nil.
func (t *Tracker) Get(ctx context.Context, fp string) *Entry {
	entry, err := t.store.Get(ctx, fp)
	if err != nil {
		t.fail("lookup", fp, err)
		return nil
	}
	return entry
}

// Record marks fp as sent, incrementing its count and refreshing its timestamp.
func (t *Tracker) Record(ctx context.Context, fp string, metadata map[string]string) {
	if fp == "" {
		return
	}
	if err := t.store.Upsert(ctx, fp, t.now(), metadata); err != nil {
		t.fail("record", fp, err)
		return
	}
	t.logger.Debug().Str("fingerprint", fp).Msg("Recorded sent fingerprint")
}

// Count returns the number of tracked fingerprints.
func (t *Tracker) Count(ctx context.Context) int {
	n, err := t.store.Count(ctx)
	if err != nil {
		t.fail("count", "", err)
		return 0
	}
	return n
}

// Meta returns the tracker bookkeeping, zero valued on failure.
func (t *Tracker) Meta(ctx context.Context) Meta {
	meta, err := t.store.Meta(ctx)
	if err != nil {
		t.fail("meta", "", err)
		return Meta{MaxEntries: t.MaxEntries()}
	}
	if meta.MaxEntries == 0 {
		meta.MaxEntries = t.MaxEntries()
	}
	return meta
}

// Compact drops entries older than maxAge and then keeps only the newest
// maxEntries. It is idempotent.
func (t *Tracker) Compact(ctx context.Context, maxAge time.Duration, maxEntries int) int {
	if maxAge <= 0 {
		maxAge = t.maxAge
	}
	if maxEntries <= 0 {
		maxEntries = t.MaxEntries()
	}

	now := t.now()
	removed, err := t.store.Compact(ctx, now.Add(-maxAge), maxEntries)
	if err != nil {
		t.fail("compact", "", err)
		return 0
	}

	if err := t.store.SetMeta(ctx, Meta{LastCleared: now, MaxEntries: maxEntries}); err != nil {
		t.fail("compact", "", err)
	}

	t.logger.Info().
		Int("removed", removed).
		Dur("max_age", maxAge).
		Int("max_entries", maxEntries).
		Msg("Compacted duplicate tracking")

	return removed
}

// ClearAll forgets every fingerprint and resets the cap to the default.
func (t *Tracker) ClearAll(ctx context.Context) {
	if err := t.store.Clear(ctx); err != nil {
		t.fail("clear", "", err)
		return
	}
	if err := t.store.SetMeta(ctx, Meta{LastCleared: t.now(), MaxEntries: DefaultMaxEntries}); err != nil {
		t.fail("clear", "", err)
	}
	t.logger.Info().Msg("Cleared duplicate tracking")
}

// RunCompaction compacts once immediately and then on every interval until ctx
// is done.
func (t *Tracker) RunCompaction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCompactionInterval
	}

	t.Compact(ctx, t.maxAge, 0)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Compact(ctx, t.maxAge, 0)
		}
	}
}
