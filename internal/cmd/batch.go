package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/proberun/probe/internal/batch"
	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/explorer"
	"github.com/proberun/probe/internal/httpapi"
	"github.com/proberun/probe/internal/orchestrator"
	"github.com/proberun/probe/internal/planner"
)

var (
	batchTags       []string
	batchStopOnFail bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [glob]",
	Short: "Run every target spec matching a glob through a full run, in parallel",
	Long: `batch discovers target spec YAML files matching glob (doublestar
"**" patterns expand recursively), runs each through the full
bootstrap -> report pipeline with the configured parallelism, and
prints an aggregate summary: pass/fail counts, flake rate, and any
targets newly quarantined by the flake detector.

A target spec file looks like:
  name: staging-storefront
  url: https://staging.example.com
  username: admin
  password: secret
  tags: [smoke, storefront]

Example:
  probe batch "targets/**/*.yaml" --tags smoke --stop-on-fail`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := batch.DefaultConfig()
	cfg.Pattern = args[0]
	cfg.FilterTags = batchTags
	cfg.StopOnFail = batchStopOnFail
	cfg.OutputDir = a.cfg.ArtifactsRoot
	cfg.Parallel = 4

	runner, err := batch.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("building batch runner: %w", err)
	}
	runner.SetTargetRunner(newTargetRunner(a))

	result, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("running batch: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Summary)
}

// newTargetRunner drives one target spec through the real pipeline: a
// fresh browser context, Explorer, Planner, and Orchestrator, exactly
// as "probe run" does for a single target.
func newTargetRunner(a *app) batch.TargetRunner {
	return func(ctx context.Context, spec batch.TargetSpec) (batch.ScenarioResult, error) {
		driver := a.newDriver(true)
		if err := driver.Launch(ctx, ""); err != nil {
			return batch.ScenarioResult{}, fmt.Errorf("launching browser: %w", err)
		}
		defer driver.Close()

		browserCtx, err := driver.NewContext(ctx, 1280, 800, false)
		if err != nil {
			return batch.ScenarioResult{}, fmt.Errorf("opening browser context: %w", err)
		}
		defer browserCtx.Close()

		var creds *domain.Credentials
		if spec.Username != "" || spec.Password != "" {
			creds = &domain.Credentials{Username: spec.Username, Password: spec.Password}
		}

		runID := fmt.Sprintf("batch-%s", spec.Name)
		projectPath := filepath.Join(a.cfg.ArtifactsRoot, runID)
		run := domain.NewRun(runID, domain.Target{URL: spec.URL, LocalPath: spec.LocalPath}, creds, domain.Metadata{Name: spec.Name}, projectPath)
		run.MaxRetries = a.cfg.MaxRetries

		progressPub := httpapi.NewProgressStore()
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

		runErr := orch.Run(ctx, run, a.cfg.MaxPages)
		progress, _ := progressPub.Get(runID)

		result := batch.ScenarioResult{Observations: make(map[string]int)}
		switch {
		case runErr != nil:
			result.Status = batch.StatusError
			result.Error = runErr.Error()
		case run.Status == domain.RunCompleted:
			result.Status = batch.StatusPassed
			if progress != nil {
				for _, r := range progress.Results {
					if r.Status == domain.ScenarioFailed {
						result.Status = batch.StatusFailed
						break
					}
				}
			}
		default:
			result.Status = batch.StatusFailed
		}
		if progress != nil {
			result.SuccessCriteriaTotal = progress.Total
			for _, r := range progress.Results {
				if r.Status == domain.ScenarioPassed {
					result.SuccessCriteriaMet++
				}
			}
		}
		return result, nil
	}
}
