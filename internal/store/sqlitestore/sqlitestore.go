// Package sqlitestore implements store.Store over an embedded
// modernc.org/sqlite database: one table, keyed by (kind, id), body
// stored as a JSON blob. This is the Run Store's "embedded KV"
// acceptable implementation for single-machine deployments that want
// transactional semantics without running a separate database
// process.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/proberun/probe/internal/store"
)

// Store is a sqlite-backed store.Store.
type Store struct {
	db *sql.DB
}

// New opens (creating if absent) the sqlite database at path and
// ensures the records table exists.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY under the Run
	// Store's single-writer-per-kind contract; readers still proceed
	// via database/sql's connection pool for SELECTs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			kind TEXT NOT NULL,
			id   TEXT NOT NULL,
			body TEXT NOT NULL,
			PRIMARY KEY (kind, id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, kind store.Kind, record store.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal %s/%s: %w", kind, record.RecordID(), err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (kind, id, body) VALUES (?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET body = excluded.body
	`, string(kind), record.RecordID(), string(body))
	if err != nil {
		return fmt.Errorf("sqlitestore: put %s/%s: %w", kind, record.RecordID(), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind store.Kind, id string, into store.Record) (bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE kind = ? AND id = ?`, string(kind), id).Scan(&body)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, nil // unreadable -> treat as absent, per Run Store failure semantics
	}
	if err := json.Unmarshal([]byte(body), into); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, kind store.Kind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM records WHERE kind = ?`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan %s: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Delete(ctx context.Context, kind store.Kind, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

var _ store.Store = (*Store)(nil)
