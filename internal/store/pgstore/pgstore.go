// Package pgstore implements store.Store against PostgreSQL via pgx's
// connection pool, for deployments that already run a shared
// database and want the Run Store to live alongside their other
// application state instead of on local disk.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proberun/probe/internal/store"
)

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, pings it, and ensures the records table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS probe_records (
			kind TEXT NOT NULL,
			id   TEXT NOT NULL,
			body JSONB NOT NULL,
			PRIMARY KEY (kind, id)
		)
	`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: create schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Put(ctx context.Context, kind store.Kind, record store.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("pgstore: marshal %s/%s: %w", kind, record.RecordID(), err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO probe_records (kind, id, body) VALUES ($1, $2, $3)
		ON CONFLICT (kind, id) DO UPDATE SET body = excluded.body
	`, string(kind), record.RecordID(), body)
	if err != nil {
		return fmt.Errorf("pgstore: put %s/%s: %w", kind, record.RecordID(), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind store.Kind, id string, into store.Record) (bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM probe_records WHERE kind = $1 AND id = $2`, string(kind), id).Scan(&body)
	if err != nil {
		return false, nil // not found or unreadable -> absent, per Run Store failure semantics
	}
	if err := json.Unmarshal(body, into); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, kind store.Kind) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM probe_records WHERE kind = $1`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("pgstore: list %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgstore: scan %s: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Delete(ctx context.Context, kind store.Kind, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM probe_records WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return fmt.Errorf("pgstore: delete %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ store.Store = (*Store)(nil)
