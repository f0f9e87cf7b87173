package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/explorer"
	"github.com/proberun/probe/internal/httpapi"
	"github.com/proberun/probe/internal/orchestrator"
	"github.com/proberun/probe/internal/planner"
)

var httpAddr string

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	progressStore := httpapi.NewProgressStore()
	launcher := &orchestratorLauncher{app: a, progress: progressStore}

	handler := httpapi.NewHandler(a.runStore, a.artifacts, progressStore, launcher, a.cfg.MaxPages, a.logger)
	router := httpapi.NewRouter(handler)

	if a.cfg.JWTKey != "" {
		auth, err := httpapi.NewJWTAuth([]byte(a.cfg.JWTKey), a.cfg.JWTKey, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("building JWT auth: %w", err)
		}
		router.SetAuth(auth)
	}

	addr := a.cfg.HTTPAddr
	if httpAddr != "" {
		addr = httpAddr
	}

	a.logger.Info("starting probe HTTP API", zap.String("addr", addr))
	engine := router.Build(addr)
	return engine.Run()
}

// orchestratorLauncher is the production httpapi.RunLauncher: it
// opens a fresh browser context and builds a one-shot Orchestrator
// per run, running it in the background.
type orchestratorLauncher struct {
	app      *app
	progress *httpapi.ProgressStore
}

func (l *orchestratorLauncher) Launch(ctx context.Context, run *domain.Run, maxPages int) error {
	driver := l.app.newDriver(true)
	if err := driver.Launch(ctx, ""); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	browserCtx, err := driver.NewContext(ctx, 1280, 800, false)
	if err != nil {
		driver.Close()
		return fmt.Errorf("opening browser context: %w", err)
	}

	orch := orchestrator.New(orchestrator.Dependencies{
		RunStore:    l.app.runStore,
		BrowserCtx:  browserCtx,
		Explorer:    explorer.New(browserCtx, l.app.logger),
		Planner:     planner.New(),
		Enricher:    l.app.enricher,
		Artifacts:   l.app.artifacts,
		Logger:      l.app.logger,
		MaxRetries:  l.app.cfg.MaxRetries,
		ProgressPub: l.progress,
	})

	go func() {
		defer browserCtx.Close()
		defer driver.Close()
		if err := orch.Run(context.Background(), run, maxPages); err != nil {
			l.app.logger.Error("run failed", zap.String("run_id", run.RunID), zap.Error(err))
		}
		if l.app.notifier != nil {
			progress, _ := l.progress.Get(run.RunID)
			if nErr := l.app.notifier.NotifyCompletion(run, progress); nErr != nil {
				l.app.logger.Warn("notify completion", zap.Error(nErr))
			}
		}
	}()
	return nil
}
