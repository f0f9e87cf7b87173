package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proberun/probe/internal/domain"
)

func TestNewWithoutTokenIsNoOp(t *testing.T) {
	n, err := New(Config{})
	require.NoError(t, err)
	require.NotNil(t, n)

	run := domain.NewRun("run-1", domain.Target{URL: "https://example.test"}, nil, domain.Metadata{}, "/tmp/run-1")
	assert.NoError(t, n.NotifyCompletion(run, nil))
}

func TestFormatCompletionCountsPassAndFail(t *testing.T) {
	run := domain.NewRun("run-1", domain.Target{URL: "https://example.test"}, nil, domain.Metadata{}, "/tmp/run-1")
	run.Status = domain.RunCompleted

	progress := domain.NewProgress(2)
	progress.Results["auth_001"] = &domain.ScenarioResult{Status: domain.ScenarioPassed}
	progress.Results["auth_002"] = &domain.ScenarioResult{Status: domain.ScenarioFailed}

	text := FormatCompletion(run, progress)
	assert.Contains(t, text, "Passed: 1")
	assert.Contains(t, text, "Failed: 1")
	assert.Contains(t, text, "run\\-1")
}

func TestFormatCompletionUsesFailedBadge(t *testing.T) {
	run := domain.NewRun("run-2", domain.Target{LocalPath: "/srv/app"}, nil, domain.Metadata{}, "/tmp/run-2")
	run.Status = domain.RunFailed
	run.RecordError("boom")

	text := FormatCompletion(run, nil)
	assert.Contains(t, text, "❌")
	assert.Contains(t, text, "Errors: 1")
}
