package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sent_hashes (
  fingerprint TEXT PRIMARY KEY,
  timestamp   INTEGER NOT NULL,
  count       INTEGER NOT NULL DEFAULT 1 CHECK (count >= 1),
  metadata    TEXT
);
CREATE INDEX IF NOT EXISTS idx_sent_hashes_timestamp ON sent_hashes(timestamp);
CREATE TABLE IF NOT EXISTS tracker_meta (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
  id         INTEGER PRIMARY KEY CHECK (id = 1),
  document   TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`

// DB is the SQLite database holding duplicate tracking and settings.
type DB struct {
	sql    *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string, logger zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Opened database")

	return &DB{sql: db, logger: logger}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}
