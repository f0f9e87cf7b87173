package httpapi

import (
	"sync"

	"github.com/proberun/probe/internal/domain"
)

// ProgressStore is an in-memory mirror of every in-flight run's live
// Progress, keyed by run ID. It satisfies orchestrator.ProgressPublisher
// so the Orchestrator can push updates the HTTP layer serves without
// either package depending on the other.
type ProgressStore struct {
	mu   sync.RWMutex
	byID map[string]*domain.Progress
}

// NewProgressStore constructs an empty ProgressStore.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{byID: make(map[string]*domain.Progress)}
}

// Publish records the latest Progress snapshot for runID.
func (s *ProgressStore) Publish(runID string, p *domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[runID] = p
	return nil
}

// Get returns the most recent Progress for runID, or ok=false if the
// run has never published one.
func (s *ProgressStore) Get(runID string) (*domain.Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[runID]
	return p, ok
}

// Delete removes a run's progress, called once its record is deleted.
func (s *ProgressStore) Delete(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, runID)
}
