// Package sqlite stores state snapshots in a SQLite database through the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-assign/pkg/state"
)

const timeFormat = time.RFC3339Nano

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	snapshot    TEXT NOT NULL,
	snapshot_id TEXT NOT NULL DEFAULT '',
	etag        TEXT NOT NULL DEFAULT '',
	updated_at  TEXT NOT NULL DEFAULT '',
	extra       TEXT NOT NULL DEFAULT ''
)`

// Store is a state.Store backed by one SQLite table. Snapshots are encoded as
// YAML text.
type Store[T any] struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open[T any](path string) (*Store[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store[T]{db: db}, nil
}

// Close closes the underlying database.
func (s *Store[T]) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load implements state.Store.
func (s *Store[T]) Load(ctx context.Context, ref state.Ref) (T, state.Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, state.Meta{}, false, err
	}

	var raw, snapshotID, etag, updatedAt, extra string
	err = s.db.QueryRowContext(ctx,
		`SELECT snapshot, snapshot_id, etag, updated_at, extra FROM snapshots WHERE id = ?`, key,
	).Scan(&raw, &snapshotID, &etag, &updatedAt, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, state.Meta{}, false, nil
	}
	if err != nil {
		return zero, state.Meta{}, false, fmt.Errorf("query %s: %w", key, err)
	}

	var snapshot T
	if err := yaml.Unmarshal([]byte(raw), &snapshot); err != nil {
		return zero, state.Meta{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	meta := state.Meta{SnapshotID: snapshotID, ETag: etag}
	if updatedAt != "" {
		if meta.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
			return zero, state.Meta{}, false, fmt.Errorf("parse updated_at for %s: %w", key, err)
		}
	}
	if extra != "" {
		if err := yaml.Unmarshal([]byte(extra), &meta.Extra); err != nil {
			return zero, state.Meta{}, false, fmt.Errorf("decode extra for %s: %w", key, err)
		}
	}
	return snapshot, meta, true, nil
}

// Save implements state.Store with an upsert.
func (s *Store[T]) Save(ctx context.Context, ref state.Ref, snapshot T, meta state.Meta) (state.Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	raw, err := yaml.Marshal(snapshot)
	if err != nil {
		return state.Meta{}, fmt.Errorf("encode %s: %w", key, err)
	}
	var extra []byte
	if len(meta.Extra) > 0 {
		if extra, err = yaml.Marshal(meta.Extra); err != nil {
			return state.Meta{}, fmt.Errorf("encode extra for %s: %w", key, err)
		}
	}
	var updatedAt string
	if !meta.UpdatedAt.IsZero() {
		updatedAt = meta.UpdatedAt.UTC().Format(timeFormat)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots (id, snapshot, snapshot_id, etag, updated_at, extra)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	snapshot = excluded.snapshot,
	snapshot_id = excluded.snapshot_id,
	etag = excluded.etag,
	updated_at = excluded.updated_at,
	extra = excluded.extra`,
		key, string(raw), meta.SnapshotID, meta.ETag, updatedAt, string(extra),
	)
	if err != nil {
		return state.Meta{}, fmt.Errorf("upsert %s: %w", key, err)
	}
	return meta, nil
}

var _ state.Store[struct{}] = (*Store[struct{}])(nil)
