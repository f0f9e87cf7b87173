package httpapi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/artifacts"
	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/store"
)

// Handler implements the route bodies the Router registers. It never
// touches the wire format directly beyond JSON (de)serialization;
// everything else is a call into store.Store, artifacts.Manager, or a
// RunLauncher.
type Handler struct {
	store     store.Store
	artifacts *artifacts.Manager
	progress  *ProgressStore
	launcher  RunLauncher
	maxPages  int
	logger    *zap.Logger
}

// NewHandler wires a Handler over its dependencies. logger defaults
// to a no-op logger when nil.
func NewHandler(st store.Store, am *artifacts.Manager, progress *ProgressStore, launcher RunLauncher, maxPages int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, artifacts: am, progress: progress, launcher: launcher, maxPages: maxPages, logger: logger}
}

type createRunRequest struct {
	TargetURL   string             `json:"target_url,omitempty"`
	ProjectPath string             `json:"project_path,omitempty"`
	Credentials *domain.Credentials `json:"test_credentials,omitempty"`
	Metadata    domain.Metadata    `json:"metadata,omitempty"`
}

type createRunResponse struct {
	RunID  string          `json:"run_id"`
	Status domain.RunStatus `json:"status"`
}

// CreateRun handles POST /run.
func (h *Handler) CreateRun(ctx context.Context, c *app.RequestContext) {
	var req createRunRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, errorBody(fmt.Errorf("decoding request: %w", err)))
		return
	}
	if req.TargetURL == "" && req.ProjectPath == "" {
		c.JSON(consts.StatusBadRequest, errorBody(fmt.Errorf("one of target_url or project_path is required")))
		return
	}

	runID := uuid.NewString()
	projectPath := filepath.Join(h.artifacts.BaseDir(), runID)
	run := domain.NewRun(runID, domain.Target{URL: req.TargetURL, LocalPath: req.ProjectPath}, req.Credentials, req.Metadata, projectPath)

	if err := h.store.Put(ctx, store.KindRun, run); err != nil {
		c.JSON(consts.StatusInternalServerError, errorBody(fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)))
		return
	}

	if err := h.launcher.Launch(context.Background(), run, h.maxPages); err != nil {
		h.logger.Error("launching run", zap.String("run_id", runID), zap.Error(err))
		c.JSON(consts.StatusInternalServerError, errorBody(err))
		return
	}

	c.JSON(consts.StatusAccepted, createRunResponse{RunID: run.RunID, Status: run.Status})
}

// GetRun handles GET /run/{id}.
func (h *Handler) GetRun(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	var run domain.Run
	ok, err := h.store.Get(ctx, store.KindRun, id, &run)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, errorBody(err))
		return
	}
	if !ok {
		c.JSON(consts.StatusNotFound, errorBody(fmt.Errorf("run %s not found", id)))
		return
	}
	c.JSON(consts.StatusOK, &run)
}

// GetProgress handles GET /run/{id}/progress.
func (h *Handler) GetProgress(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	p, ok := h.progress.Get(id)
	if !ok {
		c.JSON(consts.StatusNotFound, errorBody(fmt.Errorf("no progress recorded for run %s", id)))
		return
	}
	c.JSON(consts.StatusOK, p)
}

// artifactNames is the closed set spec §6 recognizes for
// GET /run/{id}/artifacts/{name}, each a path relative to a run's
// testsprite_tests directory.
var artifactNames = map[string]string{
	"config":             "config.json",
	"code_summary":       "code_summary.json",
	"prd":                "standard_prd.json",
	"frontend_plan":      "frontend_test_plan.json",
	"backend_plan":       "backend_test_plan.json",
	"security_test_plan": "security_test_plan.json",
	"test_credentials":   "test_credentials.json",
	"execution_progress": "execution_progress.json",
	"report":             filepath.Join("reports", "report.md"),
}

// GetArtifact handles GET /run/{id}/artifacts/{name}.
func (h *Handler) GetArtifact(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	name := c.Param("name")
	relPath, ok := artifactNames[name]
	if !ok {
		c.JSON(consts.StatusBadRequest, errorBody(fmt.Errorf("unrecognized artifact name %q", name)))
		return
	}
	h.serveRunFile(c, id, relPath)
}

// GetScreenshot handles GET /run/{id}/screenshot/{filename}.
func (h *Handler) GetScreenshot(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	filename := c.Param("filename")
	h.serveRunFile(c, id, filepath.Join("generated_tests", "screenshots", filename))
}

// GetReport handles GET /run/{id}/report.
func (h *Handler) GetReport(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	h.serveRunFile(c, id, artifactNames["report"])
}

// GetTestArtifact handles GET /run/{id}/test/{scenario_id}/{kind},
// kind one of "video" or "code".
func (h *Handler) GetTestArtifact(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	scenarioID := c.Param("scenario_id")
	kind := c.Param("kind")

	switch kind {
	case "video":
		h.serveRunVideo(ctx, c, id, scenarioID)
	case "code":
		h.serveRunFile(c, id, filepath.Join("generated_tests", fmt.Sprintf("test_%s.py", scenarioID)))
	default:
		c.JSON(consts.StatusBadRequest, errorBody(fmt.Errorf("unrecognized test artifact kind %q", kind)))
	}
}

// serveRunVideo globs scenarioID's video directory, since the executor
// doesn't control the recording's filename.
func (h *Handler) serveRunVideo(ctx context.Context, c *app.RequestContext, runID, scenarioID string) {
	run, ok := h.lookupRun(ctx, c, runID)
	if !ok {
		return
	}
	ra := &artifacts.RunArtifacts{RunDir: filepath.Join(run.ProjectPath, "testsprite_tests")}
	path, err := h.artifacts.LocateVideo(ra, scenarioID)
	if err != nil {
		c.JSON(consts.StatusNotFound, errorBody(fmt.Errorf("video not found: %w", err)))
		return
	}
	c.File(path)
}

func (h *Handler) lookupRun(ctx context.Context, c *app.RequestContext, runID string) (domain.Run, bool) {
	var run domain.Run
	ok, err := h.store.Get(ctx, store.KindRun, runID, &run)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, errorBody(err))
		return run, false
	}
	if !ok {
		c.JSON(consts.StatusNotFound, errorBody(fmt.Errorf("run %s not found", runID)))
		return run, false
	}
	return run, true
}

func (h *Handler) serveRunFile(c *app.RequestContext, runID, relPath string) {
	run, ok := h.lookupRun(context.Background(), c, runID)
	if !ok {
		return
	}

	path := filepath.Join(run.ProjectPath, "testsprite_tests", relPath)
	if _, err := os.Stat(path); err != nil {
		c.JSON(consts.StatusNotFound, errorBody(fmt.Errorf("artifact not found: %w", err)))
		return
	}
	c.File(path)
}

// DeleteRun handles DELETE /run/{id}.
func (h *Handler) DeleteRun(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")

	var run domain.Run
	if ok, err := h.store.Get(ctx, store.KindRun, id, &run); err == nil && ok && run.ProjectPath != "" {
		_ = os.RemoveAll(run.ProjectPath)
	}

	if err := h.store.Delete(ctx, store.KindRun, id); err != nil {
		c.JSON(consts.StatusInternalServerError, errorBody(err))
		return
	}
	h.progress.Delete(id)
	c.Status(consts.StatusNoContent)
}

// ListRuns handles GET /runs.
func (h *Handler) ListRuns(ctx context.Context, c *app.RequestContext) {
	ids, err := h.store.List(ctx, store.KindRun)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, errorBody(err))
		return
	}
	c.JSON(consts.StatusOK, map[string]any{"run_ids": ids})
}

// DeleteRuns handles DELETE /runs: bulk-removes every run record and
// its artifact subtree.
func (h *Handler) DeleteRuns(ctx context.Context, c *app.RequestContext) {
	ids, err := h.store.List(ctx, store.KindRun)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, errorBody(err))
		return
	}
	for _, id := range ids {
		var run domain.Run
		if ok, err := h.store.Get(ctx, store.KindRun, id, &run); err == nil && ok && run.ProjectPath != "" {
			_ = os.RemoveAll(run.ProjectPath)
		}
		if err := h.store.Delete(ctx, store.KindRun, id); err != nil {
			h.logger.Warn("deleting run during bulk delete", zap.String("run_id", id), zap.Error(err))
		}
		h.progress.Delete(id)
	}
	c.JSON(consts.StatusOK, map[string]any{"deleted": len(ids)})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
