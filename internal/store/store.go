// Package store defines the Run Store contract: crash-safe,
// process-wide persistence for runs, plans, monitors, and test
// suites, per a single-writer-per-kind / lock-free-reader model.
package store

import "context"

// Kind identifies a record family. A Store serializes writes per kind
// through one writer; readers never block on that writer.
type Kind string

const (
	KindRun     Kind = "runs"
	KindPlan    Kind = "test_plans"
	KindMonitor Kind = "monitors"
	KindSuite   Kind = "test_suites"
	KindFlake   Kind = "flake"
)

// Record is anything a Store can persist: a stable ID plus whatever
// payload the caller marshals.
type Record interface {
	RecordID() string
}

// Store is the Run Store's operation set. Implementations must make
// Put durable across a process crash and make Put+Get appear atomic
// to concurrent readers: a reader never observes a partially written
// record.
//
// Failure semantics: an unreadable file/row on Get/List is treated as
// "not found" and logged, never returned as a fatal error. A failed
// Put is always fatal to the caller — per the error handling design,
// ErrPersistenceFailed aborts the run.
type Store interface {
	// Put durably writes record under kind, replacing any existing
	// record with the same ID.
	Put(ctx context.Context, kind Kind, record Record) error

	// Get returns the record with the given ID, or ok=false if absent
	// or unreadable.
	Get(ctx context.Context, kind Kind, id string, into Record) (ok bool, err error)

	// List returns every record ID currently stored under kind.
	List(ctx context.Context, kind Kind) ([]string, error)

	// Delete removes the record with the given ID. Deleting an absent
	// ID is not an error.
	Delete(ctx context.Context, kind Kind, id string) error

	// Close releases any resources (open files, connection pools)
	// held by the store.
	Close() error
}
