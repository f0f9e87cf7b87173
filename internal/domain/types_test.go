package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusTerminal(t *testing.T) {
	assert.True(t, RunCompleted.Terminal())
	assert.True(t, RunFailed.Terminal())
	assert.False(t, RunPending.Terminal())
	assert.False(t, RunRunning.Terminal())
}

func TestNewRunDefaults(t *testing.T) {
	r := NewRun("run_1", Target{URL: "https://example.com"}, nil, Metadata{Name: "smoke"}, "/scratch/run_1")
	require.Equal(t, RunPending, r.Status)
	assert.Equal(t, DefaultMaxRetries, r.MaxRetries)
	assert.Empty(t, r.StepsCompleted)
	assert.Empty(t, r.ErrorLog)
}

func TestRunRecordStepAndError(t *testing.T) {
	r := NewRun("run_1", Target{URL: "https://example.com"}, nil, Metadata{}, "/scratch/run_1")
	r.RecordStep("bootstrap")
	r.RecordStep("analyze")
	r.RecordError("security_plan: boom")
	assert.Equal(t, []string{"bootstrap", "analyze"}, r.StepsCompleted)
	assert.Equal(t, []string{"security_plan: boom"}, r.ErrorLog)
}

func TestPlanAllScenariosOrder(t *testing.T) {
	p := &Plan{
		Modules: map[ModuleName]*ModulePlan{
			ModuleGeneral: {Name: ModuleGeneral, Scenarios: []Scenario{{ID: "gen_001"}}},
			ModuleAuth:    {Name: ModuleAuth, Scenarios: []Scenario{{ID: "auth_001"}, {ID: "auth_002"}}},
		},
	}
	all := p.AllScenarios()
	require.Len(t, all, 3)
	assert.Equal(t, "auth_001", all[0].ID)
	assert.Equal(t, "auth_002", all[1].ID)
	assert.Equal(t, "gen_001", all[2].ID)
}

func TestProgressMarkCompletedDedupes(t *testing.T) {
	p := NewProgress(3)
	p.MarkCompleted("auth_001")
	p.MarkCompleted("auth_002")
	p.MarkCompleted("auth_001")
	assert.Equal(t, []string{"auth_001", "auth_002"}, p.Completed)
}

func TestSelectorErrorUnwrap(t *testing.T) {
	err := NewSelectorError("#login", []string{"#login", "[name='login']"})
	assert.ErrorIs(t, err, ErrSelectorNotFound)
}
