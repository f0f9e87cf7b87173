package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proberun/probe/internal/domain"
)

func TestModelQuitsWhenRunTerminal(t *testing.T) {
	progress := domain.NewProgress(1)
	progress.Status = domain.RunCompleted
	progress.Results["auth_001"] = &domain.ScenarioResult{Status: domain.ScenarioPassed, Name: "Login"}

	m := New("run-1", func() (*domain.Progress, error) { return progress, nil })

	updated, cmd := m.Update(progressMsg{progress: progress})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	_ = updated
}

func TestModelKeepsPollingWhileRunning(t *testing.T) {
	progress := domain.NewProgress(2)
	progress.Status = domain.RunRunning

	m := New("run-1", func() (*domain.Progress, error) { return progress, nil })
	updated, cmd := m.Update(progressMsg{progress: progress})
	assert.Nil(t, cmd)
	mm := updated.(Model)
	assert.Equal(t, progress, mm.current)
}

func TestRenderResultsListsEachScenario(t *testing.T) {
	progress := domain.NewProgress(2)
	progress.Results["auth_001"] = &domain.ScenarioResult{Status: domain.ScenarioPassed, Name: "Login"}
	progress.Results["auth_002"] = &domain.ScenarioResult{Status: domain.ScenarioFailed, Name: "Bad login", Message: "selector not found"}

	out := renderResults(progress)
	assert.Contains(t, out, "auth_001")
	assert.Contains(t, out, "auth_002")
	assert.Contains(t, out, "selector not found")
}

func TestBadgeForKnownStatuses(t *testing.T) {
	assert.Contains(t, badgeFor("passed"), "passed")
	assert.Contains(t, badgeFor("failed"), "failed")
	assert.Contains(t, badgeFor("unknown"), "pending")
}
