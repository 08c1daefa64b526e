package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/s0up4200/torrentsnag/tracker"
)

var _ tracker.Store = (*DB)(nil)

const (
	metaLastCleared = "last_cleared"
	metaMaxEntries  = "max_entries"
)

func (d *DB) Get(ctx context.Context, fp string) (*tracker.Entry, error) {
	if d == nil || d.sql == nil {
		return nil, tracker.ErrStoreUnavailable
	}

	var (
		ts       int64
		count    int
		metadata sql.NullString
	)
	err := d.sql.QueryRowContext(ctx,
		"SELECT timestamp, count, metadata FROM sent_hashes WHERE fingerprint = ?", fp,
	).Scan(&ts, &count, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry := &tracker.Entry{
		Fingerprint: fp,
		Timestamp:   time.UnixMilli(ts).UTC(),
		Count:       count,
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			d.logger.Debug().Err(err).Str("fingerprint", fp).Msg("Ignoring unreadable tracking metadata")
		}
	}
	return entry, nil
}

func (d *DB) Upsert(ctx context.Context, fp string, ts time.Time, metadata map[string]string) error {
	if d == nil || d.sql == nil {
		return tracker.ErrStoreUnavailable
	}

	var md any
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		md = string(raw)
	}

	_, err := d.sql.ExecContext(ctx, `
INSERT INTO sent_hashes(fingerprint, timestamp, count, metadata) VALUES(?, ?, 1, ?)
ON CONFLICT(fingerprint) DO UPDATE SET
  timestamp = excluded.timestamp,
  count     = sent_hashes.count + 1,
  metadata  = COALESCE(excluded.metadata, sent_hashes.metadata)`,
		fp, ts.UnixMilli(), md)
	return err
}

func (d *DB) Count(ctx context.Context) (int, error) {
	if d == nil || d.sql == nil {
		return 0, tracker.ErrStoreUnavailable
	}
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM sent_hashes").Scan(&n)
	return n, err
}

func (d *DB) Compact(ctx context.Context, cutoff time.Time, maxEntries int) (removed int, err error) {
	if d == nil || d.sql == nil {
		return 0, tracker.ErrStoreUnavailable
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM sent_hashes WHERE timestamp <= ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	removed = int(n)

	if maxEntries > 0 {
		res, err = tx.ExecContext(ctx, `
DELETE FROM sent_hashes WHERE fingerprint NOT IN (
  SELECT fingerprint FROM sent_hashes ORDER BY timestamp DESC, fingerprint LIMIT ?
)`, maxEntries)
		if err != nil {
			return 0, err
		}
		n, _ = res.RowsAffected()
		removed += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}

func (d *DB) Clear(ctx context.Context) error {
	if d == nil || d.sql == nil {
		return tracker.ErrStoreUnavailable
	}
	_, err := d.sql.ExecContext(ctx, "DELETE FROM sent_hashes")
	return err
}

func (d *DB) Meta(ctx context.Context) (tracker.Meta, error) {
	if d == nil || d.sql == nil {
		return tracker.Meta{}, tracker.ErrStoreUnavailable
	}

	rows, err := d.sql.QueryContext(ctx, "SELECT key, value FROM tracker_meta")
	if err != nil {
		return tracker.Meta{}, err
	}
	defer rows.Close()

	meta := tracker.Meta{MaxEntries: tracker.DefaultMaxEntries}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return tracker.Meta{}, err
		}
		switch key {
		case metaLastCleared:
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
				meta.LastCleared = time.UnixMilli(ms).UTC()
			}
		case metaMaxEntries:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				meta.MaxEntries = n
			}
		}
	}
	return meta, rows.Err()
}

func (d *DB) SetMeta(ctx context.Context, meta tracker.Meta) (err error) {
	if d == nil || d.sql == nil {
		return tracker.ErrStoreUnavailable
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsert = "INSERT INTO tracker_meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value"
	if _, err = tx.ExecContext(ctx, upsert, metaLastCleared, strconv.FormatInt(meta.LastCleared.UnixMilli(), 10)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, upsert, metaMaxEntries, strconv.Itoa(meta.MaxEntries)); err != nil {
		return err
	}
	return tx.Commit()
}
