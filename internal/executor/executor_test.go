package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/domain"
)

type fakeSink struct {
	running []string
	results map[string]Result
}

func newFakeSink() *fakeSink { return &fakeSink{results: make(map[string]Result)} }

func (s *fakeSink) SetRunning(id string)        { s.running = append(s.running, id) }
func (s *fakeSink) SetScreenshot(path string)    {}
func (s *fakeSink) Complete(id string, r Result) { s.results[id] = r }

func TestExecuteHappyPathPasses(t *testing.T) {
	ctx := &browserdriver.FakeContext{}
	exec := New(ctx, zap.NewNop())

	scenario := &domain.Scenario{
		ID: "auth_001", Module: domain.ModuleAuth, Status: domain.ScenarioPending,
		Steps: []domain.Step{
			{Action: domain.StepNavigate, Target: "/login"},
			{Action: domain.StepAssert, Target: domain.AssertPageLoaded},
		},
	}

	sink := newFakeSink()
	result := exec.Execute(context.Background(), scenario, RunContext{BaseURL: "https://example.test"}, "", sink)

	require.Equal(t, domain.ScenarioPassed, result.Status)
	assert.Contains(t, sink.running, "auth_001")
}

func TestExecuteSelectorNotFoundFails(t *testing.T) {
	ctx := &browserdriver.FakeContext{}
	exec := New(ctx, zap.NewNop())

	scenario := &domain.Scenario{
		ID: "auth_002", Module: domain.ModuleAuth, Status: domain.ScenarioPending,
		Steps: []domain.Step{
			{Action: domain.StepNavigate, Target: "/login"},
			{Action: domain.StepClick, Target: "button.missing"},
		},
	}

	sink := newFakeSink()
	result := exec.Execute(context.Background(), scenario, RunContext{BaseURL: "https://example.test"}, "", sink)

	assert.Equal(t, domain.ScenarioFailed, result.Status)
}

func TestExecuteSkipsWhenDependencyFailed(t *testing.T) {
	ctx := &browserdriver.FakeContext{}
	exec := New(ctx, zap.NewNop())

	scenario := &domain.Scenario{
		ID: "dash_002", Module: domain.ModuleDashboard, DependsOn: "auth_001", Status: domain.ScenarioPending,
		Steps: []domain.Step{{Action: domain.StepNavigate, Target: "/dashboard"}},
	}

	sink := newFakeSink()
	result := exec.Execute(context.Background(), scenario, RunContext{BaseURL: "https://example.test"}, domain.ScenarioFailed, sink)

	require.Equal(t, domain.ScenarioSkipped, result.Status)
	assert.Contains(t, result.Message, "auth_001")
	assert.Empty(t, sink.running, "skipped scenarios never transition through running")
}

func TestExecuteHTTPDualModeAvoidsBrowser(t *testing.T) {
	ctx := &browserdriver.FakeContext{}
	exec := New(ctx, zap.NewNop())

	scenario := &domain.Scenario{
		ID: "gen_001", Module: domain.ModuleGeneral, Status: domain.ScenarioPending,
		Steps: []domain.Step{
			{Action: domain.StepNavigate, Target: "https://example.test/healthz"},
		},
	}

	sink := newFakeSink()
	exec.Execute(context.Background(), scenario, RunContext{BaseURL: "https://example.test"}, "", sink)

	assert.Empty(t, ctx.Pages, "request-only scenarios must not open a browser page")
}

func TestIsRequestOnlyRequiresNoFillOrClick(t *testing.T) {
	assert.True(t, isRequestOnly(&domain.Scenario{Steps: []domain.Step{
		{Action: domain.StepNavigate, Target: "/api/health"},
		{Action: domain.StepAssert, Target: domain.AssertPageLoaded},
	}}))

	assert.False(t, isRequestOnly(&domain.Scenario{Steps: []domain.Step{
		{Action: domain.StepNavigate, Target: "/login"},
		{Action: domain.StepFill, Target: "#email"},
	}}))
}

func TestResolveURLAbsoluteVsRelative(t *testing.T) {
	assert.Equal(t, "https://other.test/x", resolveURL("https://other.test/x", "https://example.test"))
	assert.Equal(t, "https://example.test/login", resolveURL("/login", "https://example.test"))
}
