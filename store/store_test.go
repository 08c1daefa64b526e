package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/torrentsnag/tracker"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "torrentsnag.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertIncrementsCount(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, db.Upsert(ctx, "abc", base.Add(time.Duration(i)*time.Minute), map[string]string{"handler": "deluge"}))
	}

	entry, err := db.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 3, entry.Count)
	assert.Equal(t, base.Add(2*time.Minute), entry.Timestamp)
	assert.Equal(t, "deluge", entry.Metadata["handler"])

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetMissing(t *testing.T) {
	db := openTestDB(t)
	entry, err := db.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCompact(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Upsert(ctx, "expired", now.Add(-40*24*time.Hour), nil))
	for i := range 10 {
		require.NoError(t, db.Upsert(ctx, fmt.Sprintf("fp-%d", i), now.Add(-time.Duration(10-i)*time.Hour), nil))
	}

	removed, err := db.Compact(ctx, now.Add(-30*24*time.Hour), 4)
	require.NoError(t, err)
	assert.Equal(t, 7, removed)

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for i := 6; i < 10; i++ {
		entry, err := db.Get(ctx, fmt.Sprintf("fp-%d", i))
		require.NoError(t, err)
		assert.NotNil(t, entry)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	meta, err := db.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, tracker.DefaultMaxEntries, meta.MaxEntries)
	assert.True(t, meta.LastCleared.IsZero() || meta.LastCleared.Unix() <= 0)

	cleared := time.Date(2025, 2, 2, 2, 2, 2, 0, time.UTC)
	require.NoError(t, db.SetMeta(ctx, tracker.Meta{LastCleared: cleared, MaxEntries: 2500}))

	meta, err = db.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2500, meta.MaxEntries)
	assert.Equal(t, cleared, meta.LastCleared)
}

func TestTrackerOverSQLite(t *testing.T) {
	ctx := context.Background()
	tr := tracker.New(openTestDB(t), zerolog.Nop())

	tr.Record(ctx, "aabbccddeeff00112233445566778899aabbccdd", nil)
	tr.Record(ctx, "aabbccddeeff00112233445566778899aabbccdd", nil)

	assert.True(t, tr.Has(ctx, "aabbccddeeff00112233445566778899aabbccdd"))
	assert.Equal(t, 1, tr.Count(ctx))

	tr.ClearAll(ctx)
	assert.Equal(t, 0, tr.Count(ctx))
}

func TestClosedDBReportsUnavailable(t *testing.T) {
	var db *DB
	_, err := db.Get(context.Background(), "x")
	assert.ErrorIs(t, err, tracker.ErrStoreUnavailable)
}

func TestSettingsDocument(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	doc, err := db.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, db.SaveSettings(ctx, []byte(`{"selectedHandler":"deluge"}`)))
	require.NoError(t, db.SaveSettings(ctx, []byte(`{"selectedHandler":"transmission"}`)))

	doc, err = db.LoadSettings(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"selectedHandler":"transmission"}`, string(doc))
}
