// Package orchestrator compiles the run's stage graph once at startup
// and drives a single run_id through it: bootstrap, analyze, prd, the
// three parallel plan stages, the join barrier, and the execute/
// fix_tests retry cycle, ending in report.
package orchestrator

import (
	"sync"

	"github.com/proberun/probe/internal/artifacts"
	"github.com/proberun/probe/internal/domain"
)

// State is the shared value threaded through every stage. Stages never
// mutate it directly — each returns a StateDelta that the runtime
// merges under Reduce.
type State struct {
	Run       *domain.Run
	AppMap    *domain.AppMap
	Plan      *domain.Plan
	Artifacts *artifacts.RunArtifacts

	PRD            string
	FrontendPlan   string
	BackendPlan    string
	SecurityPlan   string

	Progress *domain.Progress

	StepsCompleted []string
	ErrorLog       []string
	Retries        int
	ExitCode       int
}

// StateDelta is what a single stage contributes. List fields are
// concatenated into State on merge; scalar fields overwrite when
// non-zero (last writer wins among stages that actually ran).
type StateDelta struct {
	AppMap    *domain.AppMap
	Plan      *domain.Plan
	Artifacts *artifacts.RunArtifacts

	PRD          string
	FrontendPlan string
	BackendPlan  string
	SecurityPlan string

	Progress *domain.Progress

	StepsCompleted []string
	ErrorLog       []string
	ExitCode       *int
}

// reducer merges StateDeltas into State one at a time under a mutex,
// so concurrent plan stages (frontend/backend/security) can each
// report back without racing.
type reducer struct {
	mu    sync.Mutex
	state *State
}

func newReducer(s *State) *reducer { return &reducer{state: s} }

func (r *reducer) merge(d StateDelta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.state
	if d.AppMap != nil {
		s.AppMap = d.AppMap
	}
	if d.Plan != nil {
		s.Plan = d.Plan
	}
	if d.Artifacts != nil {
		s.Artifacts = d.Artifacts
	}
	if d.PRD != "" {
		s.PRD = d.PRD
	}
	if d.FrontendPlan != "" {
		s.FrontendPlan = d.FrontendPlan
	}
	if d.BackendPlan != "" {
		s.BackendPlan = d.BackendPlan
	}
	if d.SecurityPlan != "" {
		s.SecurityPlan = d.SecurityPlan
	}
	if d.Progress != nil {
		s.Progress = d.Progress
	}
	s.StepsCompleted = append(s.StepsCompleted, d.StepsCompleted...)
	s.ErrorLog = append(s.ErrorLog, d.ErrorLog...)
	if d.ExitCode != nil {
		s.ExitCode = *d.ExitCode
	}
}

func intPtr(v int) *int { return &v }
