// Package planner implements the deterministic, template-driven
// scenario generator: app map in, typed scenario catalog out. An
// optional enrichment.Provider may extend the deterministic plan;
// see internal/planner/enrichment.
package planner

import (
	"fmt"
	"strings"

	"github.com/proberun/probe/internal/domain"
)

const (
	placeholderEmail    = "testuser@example.com"
	placeholderPassword = "TestPassword123!"
)

// Planner converts an AppMap into a Plan using the fixed per-module
// template rules.
type Planner struct {
	counters map[string]int
}

// New returns a ready-to-use Planner.
func New() *Planner {
	return &Planner{counters: make(map[string]int)}
}

// Plan generates the full scenario catalog for appMap. If creds is
// non-nil, placeholder credential values in generated fill steps are
// substituted with the real values.
func (p *Planner) Plan(appMap *domain.AppMap, creds *domain.Credentials) *domain.Plan {
	p.counters = make(map[string]int)

	plan := &domain.Plan{
		BaseURL: appMap.BaseURL,
		Modules: make(map[domain.ModuleName]*domain.ModulePlan),
	}

	order := []domain.ModuleName{domain.ModuleAuth, domain.ModuleDashboard, domain.ModuleProfile, domain.ModuleCRUD, domain.ModuleGeneral}
	for _, name := range order {
		mod, ok := appMap.Modules[name]
		if !ok {
			continue
		}
		var scenarios []domain.Scenario
		switch name {
		case domain.ModuleAuth:
			scenarios = p.authScenarios(mod)
		case domain.ModuleDashboard:
			scenarios = p.dashboardScenarios(mod)
		case domain.ModuleProfile:
			scenarios = p.profileScenarios(mod)
		case domain.ModuleCRUD:
			scenarios = p.crudScenarios(mod)
		default:
			scenarios = p.generalScenarios(name, mod)
		}
		if len(scenarios) == 0 {
			continue
		}
		requiresAuth := false
		for _, pg := range mod.Pages {
			if pg.RequiresAuth {
				requiresAuth = true
				break
			}
		}
		if creds != nil {
			for i := range scenarios {
				substituteCredentials(&scenarios[i], creds)
			}
		}
		plan.Modules[name] = &domain.ModulePlan{Name: name, RequiresAuth: requiresAuth, Scenarios: scenarios}
		plan.TotalScenarios += len(scenarios)
	}

	return plan
}

func (p *Planner) nextID(prefix string) string {
	p.counters[prefix]++
	return fmt.Sprintf("%s_%03d", prefix, p.counters[prefix])
}

// formSelectors holds the best selector this planner could find in
// the app map for each well-known field role.
type formSelectors struct {
	email, username, password, name, confirmPassword, submit string
}

func extractFormSelectors(page domain.Page) formSelectors {
	var s formSelectors
	for _, form := range page.Forms {
		for _, f := range form.Fields {
			fieldName := strings.ToLower(f.Name)
			fieldType := strings.ToLower(f.Type)
			if f.Selector == "" {
				continue
			}
			switch {
			case strings.Contains(fieldName, "email") || fieldType == "email":
				s.email = f.Selector
			case strings.Contains(fieldName, "user") || strings.Contains(fieldName, "login"):
				s.username = f.Selector
			case strings.Contains(fieldName, "pass") || fieldType == "password":
				if strings.Contains(fieldName, "confirm") || strings.Contains(fieldName, "repeat") {
					s.confirmPassword = f.Selector
				} else if s.password == "" {
					s.password = f.Selector
				}
			case strings.Contains(fieldName, "name") && !strings.Contains(fieldName, "user"):
				s.name = f.Selector
			}
		}
		if form.SubmitSelector != "" {
			s.submit = form.SubmitSelector
		}
	}
	return s
}

func substituteCredentials(s *domain.Scenario, creds *domain.Credentials) {
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Action != domain.StepFill {
			continue
		}
		switch step.Value {
		case placeholderEmail:
			if creds.Username != "" {
				step.Value = creds.Username
			}
		case placeholderPassword:
			if creds.Password != "" {
				step.Value = creds.Password
			}
		}
	}
}
