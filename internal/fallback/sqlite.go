package fallback

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fallback_entries (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS fallback_collections (
	collection TEXT PRIMARY KEY
)`

// sqliteMaxParams keeps IN lists well below SQLite's bound-parameter limit.
const sqliteMaxParams = 500

// SQLiteKV persists collections in a local SQLite file, one row per entity,
// so fallback state survives restarts of the control plane.
type SQLiteKV struct {
	db *sql.DB
}

var _ KV = (*SQLiteKV)(nil)

// OpenSQLite opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory database, useful in tests.
func OpenSQLite(ctx context.Context, path string) (*SQLiteKV, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create fallback schema: %w", err)
	}

	return &SQLiteKV{db: db}, nil
}

// Load reads every row of collection.
func (s *SQLiteKV) Load(ctx context.Context, collection string) (map[string][]byte, error) {
	defer observe(s.Driver(), "load", time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT id, value FROM fallback_entries WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to load %q from sqlite: %w", collection, err)
	}
	out := make(map[string][]byte)
	if err := scanEntries(rows, out); err != nil {
		return nil, fmt.Errorf("failed to load %q from sqlite: %w", collection, err)
	}
	return out, nil
}

// Get reads the requested rows, chunking the IN list.
func (s *SQLiteKV) Get(ctx context.Context, collection string, ids ...string) (map[string][]byte, error) {
	defer observe(s.Driver(), "get", time.Now())

	out := make(map[string][]byte, len(ids))
	for start := 0; start < len(ids); start += sqliteMaxParams {
		chunk := ids[start:min(start+sqliteMaxParams, len(ids))]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, collection)
		for _, id := range chunk {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx,
			`SELECT id, value FROM fallback_entries WHERE collection = ? AND id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q from sqlite: %w", collection, err)
		}
		if err := scanEntries(rows, out); err != nil {
			return nil, fmt.Errorf("failed to read %q from sqlite: %w", collection, err)
		}
	}
	return out, nil
}

func scanEntries(rows *sql.Rows, out map[string][]byte) error {
	defer rows.Close()
	for rows.Next() {
		var (
			id    string
			value []byte
		)
		if err := rows.Scan(&id, &value); err != nil {
			return err
		}
		out[id] = value
	}
	return rows.Err()
}

// Put upserts rows in a single transaction.
func (s *SQLiteKV) Put(ctx context.Context, collection string, entries map[string][]byte) error {
	defer observe(s.Driver(), "put", time.Now())

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fallback_collections (collection) VALUES (?) ON CONFLICT(collection) DO NOTHING`,
			collection,
		); err != nil {
			return fmt.Errorf("failed to write %q to sqlite: %w", collection, err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO fallback_entries (collection, id, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(collection, id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		)
		if err != nil {
			return fmt.Errorf("failed to prepare write to sqlite: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC().UnixMilli()
		for id, v := range entries {
			if _, err := stmt.ExecContext(ctx, collection, id, v, now); err != nil {
				return fmt.Errorf("failed to write %q/%q to sqlite: %w", collection, id, err)
			}
		}
		return nil
	})
}

// Delete removes rows in a single transaction.
func (s *SQLiteKV) Delete(ctx context.Context, collection string, ids ...string) error {
	defer observe(s.Driver(), "delete", time.Now())

	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM fallback_entries WHERE collection = ? AND id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare delete in sqlite: %w", err)
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, collection, id); err != nil {
				return fmt.Errorf("failed to delete %q/%q from sqlite: %w", collection, id, err)
			}
		}
		return nil
	})
}

// Written reports whether collection has a marker row.
func (s *SQLiteKV) Written(ctx context.Context, collection string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fallback_collections WHERE collection = ?`, collection,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check %q in sqlite: %w", collection, err)
	}
	return n > 0, nil
}

func (s *SQLiteKV) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin sqlite transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sqlite transaction: %w", err)
	}
	return nil
}

// Ping verifies the database handle.
func (s *SQLiteKV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns "sqlite".
func (s *SQLiteKV) Driver() string { return "sqlite" }

// Close releases the database handle.
func (s *SQLiteKV) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
