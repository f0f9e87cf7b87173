package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/explorer"
	"github.com/proberun/probe/internal/httpapi"
	"github.com/proberun/probe/internal/orchestrator"
	"github.com/proberun/probe/internal/planner"
	"github.com/proberun/probe/internal/store"
	"github.com/proberun/probe/internal/tui"

	"github.com/google/uuid"
)

var (
	username string
	password string
	noTUI    bool
)

var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Discover, plan, and execute a full test run against a target",
	Long: `run drives one target through the complete bootstrap -> analyze ->
prd -> join_plans -> execute -> report stage graph, identically to a
run submitted through POST /run, and renders its live progress in the
terminal until the run reaches a terminal status.

Example:
  probe run https://staging.example.com --username admin --password secret`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	target := domain.Target{URL: args[0]}
	var creds *domain.Credentials
	if username != "" || password != "" {
		creds = &domain.Credentials{Username: username, Password: password}
	}

	runID := uuid.NewString()
	projectPath := fmt.Sprintf("%s/%s", a.cfg.ArtifactsRoot, runID)
	run := domain.NewRun(runID, target, creds, domain.Metadata{}, projectPath)
	run.MaxRetries = a.cfg.MaxRetries
	if err := a.runStore.Put(ctx, store.KindRun, run); err != nil {
		return fmt.Errorf("persisting run: %w", err)
	}

	progressPub := httpapi.NewProgressStore()
	driver := a.newDriver(headless)
	if err := driver.Launch(ctx, ""); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	defer driver.Close()

	browserCtx, err := driver.NewContext(ctx, 1280, 800, false)
	if err != nil {
		return fmt.Errorf("opening browser context: %w", err)
	}
	defer browserCtx.Close()

	orch := orchestrator.New(orchestrator.Dependencies{
		RunStore:    a.runStore,
		BrowserCtx:  browserCtx,
		Explorer:    explorer.New(browserCtx, a.logger),
		Planner:     planner.New(),
		Enricher:    a.enricher,
		Artifacts:   a.artifacts,
		Logger:      a.logger,
		MaxRetries:  a.cfg.MaxRetries,
		ProgressPub: progressPub,
	})

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx, run, a.cfg.MaxPages) }()

	if noTUI || !tui.SupportsColor() {
		err := <-done
		printPlainOutcome(run, progressPub)
		return err
	}

	poller := func() (*domain.Progress, error) {
		p, _ := progressPub.Get(runID)
		return p, nil
	}
	model := tui.New(runID, poller)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("rendering progress: %w", err)
	}
	if runErr := <-done; runErr != nil {
		return runErr
	}

	if a.notifier != nil {
		progress, _ := progressPub.Get(runID)
		if nErr := a.notifier.NotifyCompletion(run, progress); nErr != nil {
			a.logger.Warn("notify completion", zap.Error(nErr))
		}
	}
	return nil
}

func printPlainOutcome(run *domain.Run, pub *httpapi.ProgressStore) {
	progress, _ := pub.Get(run.RunID)
	fmt.Fprintf(os.Stdout, "run %s: %s\n", run.RunID, run.Status)
	if progress == nil {
		return
	}
	for id, r := range progress.Results {
		fmt.Fprintf(os.Stdout, "  %-12s %-8s %s\n", id, r.Status, r.Message)
	}
}
