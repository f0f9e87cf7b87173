package planner

import (
	"fmt"

	"github.com/proberun/probe/internal/domain"
)

func (p *Planner) dashboardScenarios(mod *domain.AppModule) []domain.Scenario {
	var out []domain.Scenario

	dependsOn := ""
	if mod.RequiresAuthAny() {
		dependsOn = "auth_001"
	}

	for _, page := range mod.Pages {
		switch page.Type {
		case domain.PageDashboard:
			out = append(out, domain.Scenario{
				ID: p.nextID("dash"), Name: "View Dashboard", Description: "Verify dashboard loads with correct elements",
				Module: domain.ModuleDashboard, Type: domain.ScenarioHappyPath, Priority: domain.PriorityHigh,
				DependsOn: dependsOn, Status: domain.ScenarioPending,
				Steps: []domain.Step{
					navigate(page.URL, "Go to dashboard"),
					assertStep(domain.AssertPageLoaded, "Verify page loads"),
					assertStep(domain.AssertKeyElementsVisible, "Verify dashboard elements visible"),
				},
			})

			for _, btn := range page.Buttons {
				if btn.Action == "cancel" || btn.Action == "close" {
					continue
				}
				out = append(out, domain.Scenario{
					ID:          p.nextID("dash"),
					Name:        fmt.Sprintf("Click %s", btn.Text),
					Description: fmt.Sprintf("Test clicking '%s' button on dashboard", btn.Text),
					Module:      domain.ModuleDashboard, Type: domain.ScenarioHappyPath, Priority: domain.PriorityMedium,
					DependsOn: dependsOn, Status: domain.ScenarioPending,
					Steps: []domain.Step{
						navigate(page.URL, "Go to dashboard"),
						click(fmt.Sprintf("button:has-text('%s')", btn.Text), fmt.Sprintf("Click %s", btn.Text)),
						assertStep(domain.AssertActionResult, "Verify action completed"),
					},
				})
			}

		case domain.PageLanding:
			out = append(out, domain.Scenario{
				ID: p.nextID("dash"), Name: "View Landing Page", Description: "Verify landing page loads correctly",
				Module: domain.ModuleDashboard, Type: domain.ScenarioHappyPath, Priority: domain.PriorityHigh,
				Status: domain.ScenarioPending,
				Steps: []domain.Step{
					navigate(page.URL, "Go to landing page"),
					assertStep(domain.AssertPageLoaded, "Verify page loads"),
					assertStep(domain.AssertCTAButtonsVisible, "Verify CTA buttons visible"),
				},
			})

			for _, link := range page.NavLinks {
				if link == "" {
					continue
				}
				out = append(out, domain.Scenario{
					ID:          p.nextID("dash"),
					Name:        fmt.Sprintf("Navigate to %s", link),
					Description: fmt.Sprintf("Test navigation link '%s'", link),
					Module:      domain.ModuleDashboard, Type: domain.ScenarioHappyPath, Priority: domain.PriorityLow,
					Status: domain.ScenarioPending,
					Steps: []domain.Step{
						navigate(page.URL, "Go to landing page"),
						click(fmt.Sprintf("a[href='%s']", link), fmt.Sprintf("Click %s link", link)),
						assertStep(domain.AssertNavigationSuccess, "Verify navigation works"),
					},
				})
			}
		}
	}

	return out
}
