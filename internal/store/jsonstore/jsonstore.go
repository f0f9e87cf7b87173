// Package jsonstore implements store.Store as one JSON file per kind,
// written by append-to-temp-then-rename so a crash mid-write never
// corrupts the previous durable state. A gofrs/flock file lock
// serializes writers across processes; an in-process mutex serializes
// writers across goroutines within this process.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/store"
)

// Store persists each store.Kind as <dir>/<kind>.json, a flat object
// mapping record ID to its marshaled payload.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[store.Kind]*flock.Flock
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: create dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger, locks: make(map[store.Kind]*flock.Flock)}, nil
}

func (s *Store) path(kind store.Kind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

func (s *Store) flockFor(kind store.Kind) *flock.Flock {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fl, ok := s.locks[kind]; ok {
		return fl
	}
	fl := flock.New(s.path(kind) + ".lock")
	s.locks[kind] = fl
	return fl
}

// load reads the current kind file into a map. A missing or
// unparseable file is treated as empty, per the Run Store's failure
// semantics — not a fatal error.
func (s *Store) load(kind store.Kind) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.path(kind))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("jsonstore: unreadable kind file, treating as empty", zap.String("kind", string(kind)), zap.Error(err))
		}
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("jsonstore: corrupt kind file, treating as empty", zap.String("kind", string(kind)), zap.Error(err))
		return make(map[string]json.RawMessage)
	}
	return out
}

// save atomically replaces the kind file: write to a temp file in the
// same directory, fsync, then rename over the target.
func (s *Store) save(kind store.Kind, records map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: marshal %s: %w", kind, err)
	}

	target := s.path(kind)
	tmp, err := os.CreateTemp(s.dir, "."+string(kind)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("jsonstore: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonstore: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonstore: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("jsonstore: rename into place: %w", err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, kind store.Kind, record store.Record) error {
	fl := s.flockFor(kind)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("jsonstore: acquire lock for %s: %w", kind, err)
	}
	defer fl.Unlock()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("jsonstore: marshal record %s/%s: %w", kind, record.RecordID(), err)
	}

	records := s.load(kind)
	records[record.RecordID()] = payload
	return s.save(kind, records)
}

func (s *Store) Get(ctx context.Context, kind store.Kind, id string, into store.Record) (bool, error) {
	records := s.load(kind)
	raw, ok := records[id]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		s.logger.Warn("jsonstore: corrupt record, treating as absent", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, kind store.Kind) ([]string, error) {
	records := s.load(kind)
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Delete(ctx context.Context, kind store.Kind, id string) error {
	fl := s.flockFor(kind)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("jsonstore: acquire lock for %s: %w", kind, err)
	}
	defer fl.Unlock()

	records := s.load(kind)
	if _, ok := records[id]; !ok {
		return nil
	}
	delete(records, id)
	return s.save(kind, records)
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
