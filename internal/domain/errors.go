package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds per the error handling design. Components wrap
// one of these with fmt.Errorf("...: %w", ErrX) so callers can
// classify failures with errors.Is without string matching.
var (
	// ErrNavigationFailed means a target URL was unreachable. Fatal
	// only when it is the run's base URL; recoverable per-URL inside
	// the Explorer.
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrSelectorNotFound means every selector in a preference list
	// failed to resolve within its timeout. Ends a scenario as failed.
	ErrSelectorNotFound = errors.New("selector not found")

	// ErrAssertionFailed means a step's predicate evaluated false.
	// Ends a scenario as failed.
	ErrAssertionFailed = errors.New("assertion failed")

	// ErrTimeout covers both scenario-level and step-level timeouts.
	ErrTimeout = errors.New("timeout")

	// ErrDependencySkipped marks a scenario skipped because its
	// depends_on scenario did not pass.
	ErrDependencySkipped = errors.New("dependency skipped")

	// ErrProviderUnavailable means an enrichment provider could not be
	// reached or returned unusable output; the deterministic plan is
	// used instead.
	ErrProviderUnavailable = errors.New("enrichment provider unavailable")

	// ErrPersistenceFailed is fatal: the run store could not durably
	// record a write and the orchestrator must abort the run.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrCancelled means the run's context deadline elapsed or was
	// cancelled; the run is marked failed with partial artifacts
	// retained.
	ErrCancelled = errors.New("run cancelled")
)

// SelectorError carries the full attempted selector list alongside
// ErrSelectorNotFound, per the source's "structured SelectorNotFound
// carrying the attempted list" design note.
type SelectorError struct {
	Attempted []string
	Target    string
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("selector not found for target %q (tried %v): %v", e.Target, e.Attempted, ErrSelectorNotFound)
}

func (e *SelectorError) Unwrap() error { return ErrSelectorNotFound }

// NewSelectorError builds a SelectorError for the given target and
// attempted selector list.
func NewSelectorError(target string, attempted []string) *SelectorError {
	return &SelectorError{Attempted: attempted, Target: target}
}
