package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/artifacts"
	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/explorer"
	"github.com/proberun/probe/internal/planner"
)

type recordingPublisher struct {
	calls int
}

func (p *recordingPublisher) Publish(runID string, prog *domain.Progress) error {
	p.calls++
	return nil
}

func TestOrchestratorRunCompletesWithoutEnricher(t *testing.T) {
	driver := &browserdriver.FakeDriver{}
	require.NoError(t, driver.Launch(context.Background(), ""))
	browserCtx, err := driver.NewContext(context.Background(), 1280, 720, false)
	require.NoError(t, err)

	exp := explorer.New(browserCtx, zap.NewNop())
	pl := planner.New()
	pub := &recordingPublisher{}

	orch := New(Dependencies{
		BrowserCtx:  browserCtx,
		Explorer:    exp,
		Planner:     pl,
		Logger:      zap.NewNop(),
		ProgressPub: pub,
	})

	run := domain.NewRun("run-1", domain.Target{URL: "https://example.test"}, nil, domain.Metadata{}, "/tmp/run-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = orch.Run(ctx, run, 5)
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Contains(t, run.StepsCompleted, "bootstrap")
	assert.Contains(t, run.StepsCompleted, "analyze")
	assert.Contains(t, run.StepsCompleted, "join_plans")
	assert.Contains(t, run.StepsCompleted, "execute")
	assert.Contains(t, run.StepsCompleted, "report")
	assert.NotNil(t, run.CompletedAt)
}

func TestOrchestratorWritesArtifactTree(t *testing.T) {
	driver := &browserdriver.FakeDriver{}
	require.NoError(t, driver.Launch(context.Background(), ""))
	browserCtx, err := driver.NewContext(context.Background(), 1280, 720, false)
	require.NoError(t, err)

	am, err := artifacts.NewManager(t.TempDir())
	require.NoError(t, err)

	orch := New(Dependencies{
		BrowserCtx: browserCtx,
		Explorer:   explorer.New(browserCtx, zap.NewNop()),
		Planner:    planner.New(),
		Artifacts:  am,
		Logger:     zap.NewNop(),
	})

	projectPath := filepath.Join(am.BaseDir(), "run-3")
	run := domain.NewRun("run-3", domain.Target{URL: "https://example.test"}, &domain.Credentials{Username: "a", Password: "b"}, domain.Metadata{}, projectPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, orch.Run(ctx, run, 5))

	runDir := filepath.Join(projectPath, "testsprite_tests")
	for _, relPath := range []string{
		"config.json",
		"test_credentials.json",
		"code_summary.json",
		"execution_progress.json",
		filepath.Join("reports", "report.md"),
		filepath.Join("reports", "report.html"),
		"manifest.json",
	} {
		if _, statErr := os.Stat(filepath.Join(runDir, relPath)); statErr != nil {
			t.Errorf("expected artifact %s to exist: %v", relPath, statErr)
		}
	}

	assert.Equal(t, filepath.Join(runDir, "reports", "report.md"), run.ReportPath)
}

func TestOrchestratorStageFailureDoesNotAbortRun(t *testing.T) {
	driver := &browserdriver.FakeDriver{}
	require.NoError(t, driver.Launch(context.Background(), ""))
	browserCtx, err := driver.NewContext(context.Background(), 1280, 720, false)
	require.NoError(t, err)

	exp := explorer.New(browserCtx, zap.NewNop())
	pl := planner.New()

	orch := New(Dependencies{
		BrowserCtx: browserCtx,
		Explorer:   exp,
		Planner:    pl,
		Logger:     zap.NewNop(),
	})

	// Unreachable-looking base URL: the Explorer's FakeContext always
	// opens a page, but with no seeded elements the app map degrades
	// to a single bare page rather than erroring.
	run := domain.NewRun("run-2", domain.Target{URL: "https://example.test"}, nil, domain.Metadata{}, "/tmp/run-2")

	err = orch.Run(context.Background(), run, 1)
	require.NoError(t, err)
	assert.True(t, run.Status.Terminal())
}
