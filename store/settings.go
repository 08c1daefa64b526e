package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LoadSettings returns the stored settings document, or nil when none was saved.
func (d *DB) LoadSettings(ctx context.Context) ([]byte, error) {
	var doc string
	err := d.sql.QueryRowContext(ctx, "SELECT document FROM settings WHERE id = 1").Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

// SaveSettings replaces the stored settings document.
func (d *DB) SaveSettings(ctx context.Context, doc []byte) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO settings(id, document, updated_at) VALUES(1, ?, ?)
ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(doc), time.Now().UnixMilli())
	return err
}
