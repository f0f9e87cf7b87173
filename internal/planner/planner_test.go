package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proberun/probe/internal/domain"
)

func loginOnlyAppMap() *domain.AppMap {
	loginPage := domain.Page{
		URL: "https://example.test/login", Path: "/login", Title: "Login", Type: domain.PageLogin,
		Forms: []domain.Form{{
			ID:       "login-form",
			Selector: "#login-form",
			Fields: []domain.Field{
				{Type: "email", Name: "email", Selector: "input[name='email']"},
				{Type: "password", Name: "password", Selector: "input[name='password']"},
			},
			SubmitSelector: "button[type='submit']",
		}},
		RequiresAuth: false,
	}
	return &domain.AppMap{
		BaseURL:    "https://example.test",
		TotalPages: 1,
		Pages:      []domain.Page{loginPage},
		Modules: map[domain.ModuleName]*domain.AppModule{
			domain.ModuleAuth: {Name: domain.ModuleAuth, Pages: []domain.Page{loginPage}},
		},
		AuthPages: []string{"/login"},
	}
}

func TestPlanLoginOnlyProducesFourOrderedAuthScenarios(t *testing.T) {
	p := New()
	plan := p.Plan(loginOnlyAppMap(), nil)

	require.NotNil(t, plan.Modules[domain.ModuleAuth])
	scenarios := plan.Modules[domain.ModuleAuth].Scenarios
	require.Len(t, scenarios, 4)

	wantIDs := []string{"auth_001", "auth_002", "auth_003", "auth_004"}
	wantTypes := []domain.ScenarioType{
		domain.ScenarioHappyPath, domain.ScenarioErrorPath, domain.ScenarioEdgeCase, domain.ScenarioSecurity,
	}
	for i, sc := range scenarios {
		assert.Equal(t, wantIDs[i], sc.ID)
		assert.Equal(t, wantTypes[i], sc.Type)
		assert.Equal(t, domain.ModuleAuth, sc.Module)
	}
	assert.Equal(t, 4, plan.TotalScenarios)
}

func TestPlanIsDeterministicAcrossRuns(t *testing.T) {
	appMap := loginOnlyAppMap()
	first := New().Plan(appMap, nil)
	second := New().Plan(appMap, nil)

	assert.Equal(t, first.AllScenarios(), second.AllScenarios())
}

func TestPlanSubstitutesCredentials(t *testing.T) {
	p := New()
	creds := &domain.Credentials{Username: "alice@corp.test", Password: "s3cret!"}
	plan := p.Plan(loginOnlyAppMap(), creds)

	validLogin := plan.Modules[domain.ModuleAuth].Scenarios[0]
	var sawUsername, sawPassword bool
	for _, step := range validLogin.Steps {
		if step.Action != domain.StepFill {
			continue
		}
		if step.Value == creds.Username {
			sawUsername = true
		}
		if step.Value == creds.Password {
			sawPassword = true
		}
	}
	assert.True(t, sawUsername, "expected placeholder email to be substituted with real username")
	assert.True(t, sawPassword, "expected placeholder password to be substituted with real password")
}

func TestPlanSkipsModulesWithNoPages(t *testing.T) {
	appMap := loginOnlyAppMap()
	plan := New().Plan(appMap, nil)

	_, hasDashboard := plan.Modules[domain.ModuleDashboard]
	_, hasCRUD := plan.Modules[domain.ModuleCRUD]
	assert.False(t, hasDashboard)
	assert.False(t, hasCRUD)
}

func TestGeneralScenariosViewAndSubmit(t *testing.T) {
	page := domain.Page{
		URL: "https://example.test/about", Path: "/about", Title: "About", Type: domain.PageGeneral,
		Forms: []domain.Form{{
			ID: "newsletter-form",
			Fields: []domain.Field{
				{Name: "email", Type: "email"},
			},
		}},
		RequiresAuth: true,
	}
	mod := &domain.AppModule{Name: domain.ModuleGeneral, Pages: []domain.Page{page}}

	p := New()
	scenarios := p.generalScenarios(domain.ModuleGeneral, mod)

	require.Len(t, scenarios, 2)
	assert.Equal(t, "gen_001", scenarios[0].ID)
	assert.Equal(t, "View About", scenarios[0].Name)
	assert.Equal(t, "auth_001", scenarios[0].DependsOn)

	assert.Equal(t, "gen_002", scenarios[1].ID)
	assert.Equal(t, "Submit newsletter-form", scenarios[1].Name)
	assert.Equal(t, domain.PriorityMedium, scenarios[1].Priority)
}
