package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/proberun/probe/internal/artifacts"
	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/executor"
	"github.com/proberun/probe/internal/explorer"
	"github.com/proberun/probe/internal/planner"
	"github.com/proberun/probe/internal/store"
)

// RunDeadline bounds an entire run per the concurrency model's
// top-level cancellation policy.
const RunDeadline = 30 * time.Minute

// Enricher rewrites failing scenarios (fix_tests) or extends a
// deterministic plan with richer prose (prd, *_plan stages). Its
// absence is not an error: every stage that calls it degrades to a
// no-op plan/delta on ErrProviderUnavailable.
type Enricher interface {
	GeneratePRD(ctx context.Context, appMap *domain.AppMap) (string, error)
	GeneratePlanNarrative(ctx context.Context, focus string, appMap *domain.AppMap) (string, error)
	FixFailingScenarios(ctx context.Context, plan *domain.Plan, results map[string]*domain.ScenarioResult) (*domain.Plan, error)
}

// Dependencies the orchestrator wires stages against. BrowserCtx is
// one context per run, reused across the explore and execute stages
// per the resource policy.
type Dependencies struct {
	RunStore    store.Store
	BrowserCtx  browserdriver.Context
	Explorer    *explorer.Explorer
	Planner     *planner.Planner
	Enricher    Enricher // nil disables LLM enrichment
	Artifacts   *artifacts.Manager
	Logger      *zap.Logger
	MaxRetries  int
	ProgressPub ProgressPublisher
}

// ProgressPublisher is how the orchestrator exposes live Progress to
// the HTTP layer and to execution_progress.json.
type ProgressPublisher interface {
	Publish(runID string, p *domain.Progress) error
}

// Orchestrator drives exactly one Run through the compiled stage DAG.
// At most one Orchestrator runs per run_id; Deps.RunStore enforces the
// single-writer contract across kinds.
type Orchestrator struct {
	deps Dependencies
	exec *executor.Executor
}

// New builds an Orchestrator bound to deps. A single Executor is
// constructed over deps.BrowserCtx and reused across every scenario in
// the run, per the one-context-per-run resource policy.
func New(deps Dependencies) *Orchestrator {
	if deps.MaxRetries <= 0 {
		deps.MaxRetries = domain.DefaultMaxRetries
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	var exec *executor.Executor
	if deps.BrowserCtx != nil {
		exec = executor.New(deps.BrowserCtx, deps.Logger)
	}
	return &Orchestrator{deps: deps, exec: exec}
}

// Run executes the full stage graph for run, mutating and persisting
// it as stages complete. It never returns a panic-originated error;
// every stage failure is caught, logged into run.ErrorLog, and merged
// as an empty delta, except PersistenceFailed and context
// cancellation, which are fatal per the error handling design.
func (o *Orchestrator) Run(ctx context.Context, run *domain.Run, maxPages int) error {
	ctx, cancel := context.WithTimeout(ctx, RunDeadline)
	defer cancel()

	state := &State{Run: run, StepsCompleted: []string{}, ErrorLog: []string{}}
	red := newReducer(state)

	run.Status = domain.RunRunning
	if err := o.persist(ctx, run); err != nil {
		return err
	}

	stages := []struct {
		name string
		run  func(context.Context, *reducer) error
	}{
		{"bootstrap", o.bootstrap},
		{"analyze", func(c context.Context, r *reducer) error { return o.analyze(c, r, maxPages) }},
		{"prd", o.prd},
	}
	for _, s := range stages {
		if err := o.runStage(ctx, run, red, s.name, s.run); err != nil {
			return o.fail(ctx, run, err)
		}
		if ctx.Err() != nil {
			return o.fail(ctx, run, ctx.Err())
		}
	}

	if err := o.joinPlans(ctx, run, red); err != nil {
		return o.fail(ctx, run, err)
	}

	if err := o.executeWithRetry(ctx, run, red); err != nil {
		return o.fail(ctx, run, err)
	}

	if err := o.runStage(ctx, run, red, "report", o.report); err != nil {
		return o.fail(ctx, run, err)
	}

	run.Status = domain.RunCompleted
	now := time.Now()
	run.CompletedAt = &now
	run.StepsCompleted = state.StepsCompleted
	run.ErrorLog = state.ErrorLog
	return o.persist(ctx, run)
}

// runStage invokes one stage, catching any error as a structural
// empty delta merged with the error recorded, per the "stage that
// raises is caught at the runtime boundary" failure semantics. name is
// always recorded regardless of outcome, since a degraded stage still
// ran to completion.
func (o *Orchestrator) runStage(ctx context.Context, run *domain.Run, red *reducer, name string, stage func(context.Context, *reducer) error) error {
	if err := stage(ctx, red); err != nil {
		if isFatal(err) {
			return err
		}
		red.merge(StateDelta{ErrorLog: []string{err.Error()}})
		o.deps.Logger.Warn("stage failed, continuing", zap.String("stage", name), zap.Error(err))
	}
	red.merge(StateDelta{StepsCompleted: []string{name}})
	run.RecordStep(name)
	return nil
}

func isFatal(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}

// runConfig is the snapshot of a run's inputs written to config.json at
// bootstrap, before discovery has produced anything else.
type runConfig struct {
	RunID      string    `json:"run_id"`
	TargetURL  string    `json:"target_url,omitempty"`
	LocalPath  string    `json:"local_path,omitempty"`
	MaxRetries int       `json:"max_retries"`
	CreatedAt  time.Time `json:"created_at"`
}

func (o *Orchestrator) bootstrap(ctx context.Context, red *reducer) error {
	run := red.state.Run
	if o.deps.Artifacts == nil {
		return nil
	}

	ra, err := o.deps.Artifacts.InitRun(run.RunID, run.ProjectPath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	red.merge(StateDelta{Artifacts: ra})

	cfg := runConfig{
		RunID:      run.RunID,
		TargetURL:  run.Target.URL,
		LocalPath:  run.Target.LocalPath,
		MaxRetries: run.MaxRetries,
		CreatedAt:  run.CreatedAt,
	}
	if err := o.deps.Artifacts.WriteJSON(ra, artifacts.ArtifactConfig, o.deps.Artifacts.ConfigPath(ra), cfg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	if run.Credentials != nil {
		if err := o.deps.Artifacts.WriteJSON(ra, artifacts.ArtifactCredentials, o.deps.Artifacts.CredentialsPath(ra), run.Credentials); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
		}
	}

	return nil
}

func (o *Orchestrator) analyze(ctx context.Context, red *reducer, maxPages int) error {
	run := red.state.Run
	appMap, err := o.deps.Explorer.Explore(ctx, run.Target.URL, maxPages)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	plan := o.deps.Planner.Plan(appMap, run.Credentials)
	progress := domain.NewProgress(plan.TotalScenarios)
	red.merge(StateDelta{AppMap: appMap, Plan: plan, Progress: progress})
	return nil
}

func (o *Orchestrator) prd(ctx context.Context, red *reducer) error {
	if o.deps.Enricher == nil {
		return nil
	}
	prd, err := o.deps.Enricher.GeneratePRD(ctx, red.state.AppMap)
	if err != nil {
		red.merge(StateDelta{ErrorLog: []string{fmt.Sprintf("prd: %v", err)}})
		return nil
	}
	red.merge(StateDelta{PRD: prd})
	return nil
}

// joinPlans runs frontend_plan, backend_plan, and security_plan
// concurrently; join_plans is the barrier that waits for all three
// (or their individual failure — a single plan stage failing does not
// abort the run).
func (o *Orchestrator) joinPlans(ctx context.Context, run *domain.Run, red *reducer) error {
	g, gctx := errgroup.WithContext(ctx)

	focuses := []struct {
		name  string
		apply func(string)
	}{
		{"frontend", func(s string) { red.merge(StateDelta{FrontendPlan: s}) }},
		{"backend", func(s string) { red.merge(StateDelta{BackendPlan: s}) }},
		{"security", func(s string) { red.merge(StateDelta{SecurityPlan: s}) }},
	}

	for _, f := range focuses {
		f := f
		g.Go(func() error {
			if o.deps.Enricher == nil {
				f.apply("")
				return nil
			}
			narrative, err := o.deps.Enricher.GeneratePlanNarrative(gctx, f.name, red.state.AppMap)
			if err != nil {
				red.merge(StateDelta{ErrorLog: []string{fmt.Sprintf("%s_plan: %v", f.name, err)}})
				return nil
			}
			f.apply(narrative)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	red.merge(StateDelta{StepsCompleted: []string{"join_plans"}})
	run.RecordStep("join_plans")
	return nil
}

// executeWithRetry runs the execute stage, then loops through
// fix_tests -> execute while the composite exit code is non-zero and
// retries remain. This is the DAG's only cycle. With no enrichment
// provider configured, fix_tests degrades to a no-op rewrite (the plan
// is unchanged) but still increments retries and re-enters execute, so
// the retry bound holds exactly regardless of whether enrichment is
// configured.
func (o *Orchestrator) executeWithRetry(ctx context.Context, run *domain.Run, red *reducer) error {
	for {
		if err := o.execute(ctx, run, red); err != nil {
			return err
		}
		if red.state.ExitCode == 0 || red.state.Retries >= o.deps.MaxRetries {
			return nil
		}

		if o.deps.Enricher != nil {
			fixed, err := o.deps.Enricher.FixFailingScenarios(ctx, red.state.Plan, red.state.Progress.Results)
			if err != nil {
				red.merge(StateDelta{ErrorLog: []string{fmt.Sprintf("fix_tests: %v", err)}})
			} else {
				red.state.Plan = fixed
			}
		}

		red.state.Retries++
		run.Retries = red.state.Retries
		red.merge(StateDelta{StepsCompleted: []string{"fix_tests"}})
		run.RecordStep("fix_tests")
	}
}

func (o *Orchestrator) execute(ctx context.Context, run *domain.Run, red *reducer) error {
	plan := red.state.Plan
	progress := red.state.Progress
	if plan == nil || progress == nil {
		red.merge(StateDelta{ExitCode: intPtr(1), StepsCompleted: []string{"execute"}})
		return nil
	}

	statuses := make(map[string]domain.ScenarioStatus)
	exitCode := 0

	runCtx := executor.RunContext{
		BaseURL:     run.Target.URL,
		Credentials: run.Credentials,
		Artifacts:   red.state.Artifacts,
		ArtifactMgr: o.deps.Artifacts,
	}

	for _, scenario := range plan.AllScenarios() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		scenario := scenario
		depStatus := statuses[scenario.DependsOn]

		sink := &progressSink{
			progress:  progress,
			publisher: o.deps.ProgressPub,
			runID:     run.RunID,
			artifacts: o.deps.Artifacts,
			ra:        red.state.Artifacts,
		}
		result := o.runScenario(ctx, &scenario, runCtx, depStatus, sink)

		statuses[scenario.ID] = result.Status
		progress.Results[scenario.ID] = &domain.ScenarioResult{
			Status: result.Status, Name: scenario.Name, Message: result.Message,
			Screenshot: result.Screenshot, Video: result.Video,
		}
		progress.MarkCompleted(scenario.ID)
		if result.Status == domain.ScenarioFailed {
			exitCode = 1
		}
	}

	red.merge(StateDelta{Progress: progress, ExitCode: intPtr(exitCode), StepsCompleted: []string{"execute"}})
	return nil
}

func (o *Orchestrator) runScenario(ctx context.Context, scenario *domain.Scenario, runCtx executor.RunContext, depStatus domain.ScenarioStatus, sink *progressSink) executor.Result {
	if o.exec == nil {
		return executor.Result{Status: domain.ScenarioSkipped, Message: "no browsing context configured for this run"}
	}
	return o.exec.Execute(ctx, scenario, runCtx, depStatus, sink)
}

// codeSummary is the code_summary.json artifact: a digest of what the
// analyze stage discovered, independent of how it was later tested.
type codeSummary struct {
	BaseURL        string         `json:"base_url"`
	TotalPages     int            `json:"total_pages"`
	TotalScenarios int            `json:"total_scenarios"`
	Modules        map[string]int `json:"modules"` // module name -> scenario count
}

func (o *Orchestrator) report(ctx context.Context, red *reducer) error {
	run := red.state.Run
	state := red.state

	if o.deps.Artifacts == nil || state.Artifacts == nil {
		return nil
	}
	am := o.deps.Artifacts
	ra := state.Artifacts

	if state.AppMap != nil && state.Plan != nil {
		modules := make(map[string]int, len(state.Plan.Modules))
		for name, mp := range state.Plan.Modules {
			modules[string(name)] = len(mp.Scenarios)
		}
		summary := codeSummary{
			BaseURL:        state.AppMap.BaseURL,
			TotalPages:     state.AppMap.TotalPages,
			TotalScenarios: state.Plan.TotalScenarios,
			Modules:        modules,
		}
		if err := am.WriteJSON(ra, artifacts.ArtifactCodeSummary, am.CodeSummaryPath(ra), summary); err != nil {
			red.merge(StateDelta{ErrorLog: []string{fmt.Sprintf("report: %v", err)}})
		}
	}

	writeNarrative := func(t artifacts.ArtifactType, path, narrative string) {
		if narrative == "" {
			return
		}
		if err := am.WriteJSON(ra, t, path, map[string]string{"narrative": narrative}); err != nil {
			red.merge(StateDelta{ErrorLog: []string{fmt.Sprintf("report: %v", err)}})
		}
	}
	writeNarrative(artifacts.ArtifactPRD, am.PRDPath(ra), state.PRD)
	writeNarrative(artifacts.ArtifactFrontendPlan, am.FrontendPlanPath(ra), state.FrontendPlan)
	writeNarrative(artifacts.ArtifactBackendPlan, am.BackendPlanPath(ra), state.BackendPlan)
	writeNarrative(artifacts.ArtifactSecurityPlan, am.SecurityPlanPath(ra), state.SecurityPlan)

	if state.Progress != nil {
		if err := am.WriteJSON(ra, artifacts.ArtifactExecutionProgress, am.ExecutionProgressPath(ra), state.Progress); err != nil {
			red.merge(StateDelta{ErrorLog: []string{fmt.Sprintf("report: %v", err)}})
		}
	}

	reportMD := renderReport(run, state)
	if err := am.WriteText(ra, artifacts.ArtifactReport, am.ReportPath(ra), reportMD); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	var htmlBuf strings.Builder
	if err := goldmark.Convert([]byte(reportMD), &htmlBuf); err != nil {
		red.merge(StateDelta{ErrorLog: []string{fmt.Sprintf("report: rendering html: %v", err)}})
	} else if err := am.WriteText(ra, artifacts.ArtifactReport, am.ReportHTMLPath(ra), htmlBuf.String()); err != nil {
		red.merge(StateDelta{ErrorLog: []string{fmt.Sprintf("report: writing html: %v", err)}})
	}

	if err := am.FinalizeRun(ra); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	run.ReportPath = am.ReportPath(ra)
	return nil
}

// renderReport builds the Markdown summary written to report.md: one
// line of front matter per scenario result, grouped by status.
func renderReport(run *domain.Run, state *State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", run.RunID)
	if state.AppMap != nil {
		fmt.Fprintf(&b, "Target: %s (%d pages discovered)\n\n", state.AppMap.BaseURL, state.AppMap.TotalPages)
	}

	if state.Progress == nil || len(state.Progress.Results) == 0 {
		b.WriteString("No scenarios were executed.\n")
		return b.String()
	}

	passed, failed, skipped := 0, 0, 0
	for _, r := range state.Progress.Results {
		switch r.Status {
		case domain.ScenarioPassed:
			passed++
		case domain.ScenarioFailed:
			failed++
		case domain.ScenarioSkipped:
			skipped++
		}
	}
	fmt.Fprintf(&b, "## Summary\n\n%d passed, %d failed, %d skipped (%d total)\n\n",
		passed, failed, skipped, len(state.Progress.Results))

	b.WriteString("## Scenarios\n\n")
	b.WriteString("| Scenario | Status | Message |\n|---|---|---|\n")
	for _, scenario := range state.Plan.AllScenarios() {
		r, ok := state.Progress.Results[scenario.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", scenario.Name, r.Status, strings.ReplaceAll(r.Message, "|", "\\|"))
	}

	return b.String()
}

func (o *Orchestrator) fail(ctx context.Context, run *domain.Run, cause error) error {
	run.Status = domain.RunFailed
	run.RecordError(cause.Error())
	now := time.Now()
	run.CompletedAt = &now
	if err := o.persist(ctx, run); err != nil {
		return fmt.Errorf("%w: %v (original: %v)", domain.ErrPersistenceFailed, err, cause)
	}
	return fmt.Errorf("%w: %v", domain.ErrCancelled, cause)
}

func (o *Orchestrator) persist(ctx context.Context, run *domain.Run) error {
	if o.deps.RunStore == nil {
		return nil
	}
	if err := o.deps.RunStore.Put(ctx, store.KindRun, run); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}

// progressSink adapts domain.Progress + a ProgressPublisher to the
// executor.ProgressSink contract. When artifacts/ra are set, every
// publish also mirrors Progress to execution_progress.json, so the
// on-disk file and the HTTP progress endpoint never disagree.
type progressSink struct {
	progress  *domain.Progress
	publisher ProgressPublisher
	runID     string
	artifacts *artifacts.Manager
	ra        *artifacts.RunArtifacts
}

func (s *progressSink) SetRunning(scenarioID string) {
	s.progress.CurrentTest = scenarioID
	s.progress.Status = domain.RunRunning
	s.publish()
}

func (s *progressSink) SetScreenshot(path string) {
	if path == "" {
		return
	}
	s.progress.CurrentScreenshot = path
	s.publish()
}

func (s *progressSink) Complete(scenarioID string, result executor.Result) {
	s.progress.Results[scenarioID] = &domain.ScenarioResult{
		Status: result.Status, Message: result.Message, Screenshot: result.Screenshot, Video: result.Video,
	}
	s.progress.MarkCompleted(scenarioID)
	s.publish()
}

func (s *progressSink) publish() {
	if s.publisher != nil {
		_ = s.publisher.Publish(s.runID, s.progress)
	}
	if s.artifacts != nil && s.ra != nil {
		_ = s.artifacts.WriteJSON(s.ra, artifacts.ArtifactExecutionProgress, s.artifacts.ExecutionProgressPath(s.ra), s.progress)
	}
}
