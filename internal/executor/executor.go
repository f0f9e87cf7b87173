// Package executor drives a single Scenario to completion: it walks
// the step list against a browserdriver.Page (or, for dual-mode
// request-only scenarios, a plain HTTP client), captures artifacts,
// and publishes Progress transitions as it goes. It never panics
// outward — every failure mode terminates the scenario with a typed
// Result instead.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/artifacts"
	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/domain"
)

// Timeout budgets from the scenario execution contract.
const (
	ScenarioTimeout    = 60 * time.Second
	NavigateTimeout    = 15 * time.Second
	SelectorTimeout    = browserdriver.DefaultSelectorTimeout
	WaitLoadTimeout    = 10 * time.Second
	fixedWaitDuration  = 2 * time.Second
	httpRequestTimeout = 10 * time.Second
)

// Result is the terminal outcome of executing one scenario.
type Result struct {
	Status     domain.ScenarioStatus
	Message    string
	Screenshot string
	Video      string
}

// ProgressSink receives the live transitions an Executor makes while
// running a scenario. The orchestrator implements this over
// domain.Progress + the run store.
type ProgressSink interface {
	SetRunning(scenarioID string)
	SetScreenshot(path string)
	Complete(scenarioID string, result Result)
}

// RunContext carries everything a scenario needs to run that isn't
// part of the scenario itself: the target base URL, credentials, and
// where to put artifacts.
type RunContext struct {
	BaseURL     string
	Credentials *domain.Credentials
	Artifacts   *artifacts.RunArtifacts
	ArtifactMgr *artifacts.Manager
}

// Executor runs scenarios one at a time against a single browsing
// context, per the one-page-per-scenario resource policy.
type Executor struct {
	browserCtx browserdriver.Context
	httpClient *resty.Client
	logger     *zap.Logger
}

// New builds an Executor bound to a single run's browsing context.
func New(browserCtx browserdriver.Context, logger *zap.Logger) *Executor {
	return &Executor{
		browserCtx: browserCtx,
		httpClient: resty.New().SetTimeout(httpRequestTimeout),
		logger:     logger,
	}
}

// Execute runs scenario to completion, publishing transitions to sink
// as it goes. depsOK must already reflect whether scenario's
// depends_on (if any) was satisfied; Execute itself only emits the
// skipped result, it does not consult the plan graph.
func (e *Executor) Execute(ctx context.Context, scenario *domain.Scenario, runCtx RunContext, depStatus domain.ScenarioStatus, sink ProgressSink) Result {
	if scenario.DependsOn != "" && depStatus != "" && depStatus != domain.ScenarioPassed {
		result := Result{Status: domain.ScenarioSkipped, Message: fmt.Sprintf("dependency %s %s", scenario.DependsOn, depStatus)}
		sink.Complete(scenario.ID, result)
		return result
	}

	sink.SetRunning(scenario.ID)

	ctx, cancel := context.WithTimeout(ctx, ScenarioTimeout)
	defer cancel()

	result := e.run(ctx, scenario, runCtx, sink)

	if ctx.Err() == context.DeadlineExceeded && result.Status != domain.ScenarioPassed {
		result = Result{Status: domain.ScenarioFailed, Message: "timeout"}
	}

	sink.Complete(scenario.ID, result)
	return result
}

func (e *Executor) run(ctx context.Context, scenario *domain.Scenario, runCtx RunContext, sink ProgressSink) Result {
	if isRequestOnly(scenario) {
		return e.runHTTP(ctx, scenario, runCtx)
	}
	return e.runBrowser(ctx, scenario, runCtx, sink)
}

// isRequestOnly reports whether a scenario's first non-assert step is
// a pure HTTP call with no fill/click anywhere — the dual-mode
// decision is made once, at scenario start.
func isRequestOnly(scenario *domain.Scenario) bool {
	sawNavigate := false
	for _, step := range scenario.Steps {
		switch step.Action {
		case domain.StepFill, domain.StepClick:
			return false
		case domain.StepNavigate:
			sawNavigate = true
		}
	}
	return sawNavigate
}

func (e *Executor) runHTTP(ctx context.Context, scenario *domain.Scenario, runCtx RunContext) Result {
	var target string
	for _, step := range scenario.Steps {
		if step.Action == domain.StepNavigate {
			target = resolveURL(step.Target, runCtx.BaseURL)
			break
		}
	}
	if target == "" {
		return Result{Status: domain.ScenarioFailed, Message: "request-only scenario had no navigate step"}
	}

	resp, err := e.httpClient.R().SetContext(ctx).Get(target)
	if err != nil {
		return Result{Status: domain.ScenarioFailed, Message: err.Error()}
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return Result{Status: domain.ScenarioFailed, Message: fmt.Sprintf("http status %d", resp.StatusCode())}
	}
	return Result{Status: domain.ScenarioPassed, Message: "ok"}
}

func (e *Executor) runBrowser(ctx context.Context, scenario *domain.Scenario, runCtx RunContext, sink ProgressSink) Result {
	page, err := e.browserCtx.NewPage(ctx)
	if err != nil {
		return Result{Status: domain.ScenarioFailed, Message: fmt.Sprintf("open page: %v", err)}
	}
	defer page.Close()

	startShot := e.screenshot(ctx, page, runCtx, scenario.ID, artifacts.PhaseStart)

	for _, step := range scenario.Steps {
		if ctx.Err() != nil {
			break
		}
		if err := e.runStep(ctx, page, step, runCtx); err != nil {
			errShot := e.screenshot(ctx, page, runCtx, scenario.ID, artifacts.PhaseError)
			sink.SetScreenshot(errShot)
			return Result{Status: statusFor(err), Message: messageFor(err), Screenshot: firstNonEmptyStr(errShot, startShot)}
		}
	}

	finalShot := e.screenshot(ctx, page, runCtx, scenario.ID, artifacts.PhaseFinal)
	sink.SetScreenshot(finalShot)
	video := e.locateVideo(runCtx, scenario.ID)
	return Result{Status: domain.ScenarioPassed, Screenshot: firstNonEmptyStr(finalShot, startShot), Video: video}
}

func (e *Executor) runStep(ctx context.Context, page browserdriver.Page, step domain.Step, runCtx RunContext) error {
	switch step.Action {
	case domain.StepNavigate:
		navCtx, cancel := context.WithTimeout(ctx, NavigateTimeout)
		defer cancel()
		url := resolveURL(step.Target, runCtx.BaseURL)
		if err := page.Goto(navCtx, url, NavigateTimeout); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrNavigationFailed, url, err)
		}
		return nil

	case domain.StepFill:
		value, err := substitutePlaceholders(step.Value, runCtx.Credentials)
		if err != nil {
			return err
		}
		selCtx, cancel := context.WithTimeout(ctx, SelectorTimeout*time.Duration(len(browserdriver.SplitSelectorList(step.Target))+1))
		defer cancel()
		if err := page.Fill(selCtx, step.Target, value); err != nil {
			return wrapSelectorErr(err, step.Target)
		}
		return nil

	case domain.StepClick:
		selCtx, cancel := context.WithTimeout(ctx, SelectorTimeout*time.Duration(len(browserdriver.SplitSelectorList(step.Target))+1))
		defer cancel()
		if err := page.Click(selCtx, step.Target); err != nil {
			return wrapSelectorErr(err, step.Target)
		}
		return nil

	case domain.StepWait:
		if step.Target == "navigation" {
			waitCtx, cancel := context.WithTimeout(ctx, WaitLoadTimeout)
			defer cancel()
			if err := page.WaitLoadState(waitCtx, "networkidle", WaitLoadTimeout); err != nil {
				return fmt.Errorf("%w: wait_load_state: %v", domain.ErrTimeout, err)
			}
			return nil
		}
		select {
		case <-time.After(fixedWaitDuration):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case domain.StepAssert:
		ok, err := evaluateAssertion(ctx, page, step.Target)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrAssertionFailed, step.Target, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAssertionFailed, step.Target)
		}
		return nil

	default:
		return fmt.Errorf("unknown step action %q", step.Action)
	}
}

func wrapSelectorErr(err error, target string) error {
	var selErr *domain.SelectorError
	if errors.As(err, &selErr) {
		return err
	}
	return domain.NewSelectorError(target, browserdriver.SplitSelectorList(target))
}

func statusFor(err error) domain.ScenarioStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ScenarioFailed
	}
	return domain.ScenarioFailed
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrAssertionFailed):
		return strings.TrimPrefix(err.Error(), domain.ErrAssertionFailed.Error()+": ")
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	default:
		return err.Error()
	}
}

func resolveURL(target, baseURL string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(target, "/")
}

func substitutePlaceholders(value string, creds *domain.Credentials) (string, error) {
	needsUser := strings.Contains(value, "{{username}}")
	needsPass := strings.Contains(value, "{{password}}")
	if !needsUser && !needsPass {
		return value, nil
	}
	if creds == nil {
		return "", fmt.Errorf("%w: credentials required but absent", domain.ErrDependencySkipped)
	}
	out := value
	if needsUser {
		out = strings.ReplaceAll(out, "{{username}}", creds.Username)
	}
	if needsPass {
		out = strings.ReplaceAll(out, "{{password}}", creds.Password)
	}
	return out, nil
}

func (e *Executor) screenshot(ctx context.Context, page browserdriver.Page, runCtx RunContext, scenarioID string, phase artifacts.ScreenshotPhase) string {
	if runCtx.Artifacts == nil || runCtx.ArtifactMgr == nil {
		return ""
	}
	path := runCtx.ArtifactMgr.ScreenshotPath(runCtx.Artifacts, scenarioID, phase)
	if err := page.Screenshot(ctx, path); err != nil {
		e.logger.Warn("screenshot failed", zap.String("scenario_id", scenarioID), zap.String("phase", string(phase)), zap.Error(err))
		return ""
	}
	if _, err := runCtx.ArtifactMgr.RecordScreenshot(runCtx.Artifacts, scenarioID, phase); err != nil {
		e.logger.Warn("record screenshot failed", zap.String("scenario_id", scenarioID), zap.Error(err))
	}
	return path
}

func (e *Executor) locateVideo(runCtx RunContext, scenarioID string) string {
	if runCtx.Artifacts == nil || runCtx.ArtifactMgr == nil {
		return ""
	}
	path, err := runCtx.ArtifactMgr.RecordVideo(runCtx.Artifacts, scenarioID)
	if err != nil {
		return ""
	}
	return path
}

func firstNonEmptyStr(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
