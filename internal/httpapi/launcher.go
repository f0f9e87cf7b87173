package httpapi

import (
	"context"

	"github.com/proberun/probe/internal/domain"
)

// RunLauncher starts a run's full bootstrap→report pipeline in the
// background and returns immediately; callers poll GET /run/{id} or
// GET /run/{id}/progress for completion. Built by cmd/probe, which
// owns wiring a fresh browserdriver.Context/Explorer/Planner/
// Orchestrator per run.
type RunLauncher interface {
	Launch(ctx context.Context, run *domain.Run, maxPages int) error
}
