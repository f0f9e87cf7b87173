package planner

import (
	"fmt"

	"github.com/proberun/probe/internal/domain"
)

func (p *Planner) generalScenarios(name domain.ModuleName, mod *domain.AppModule) []domain.Scenario {
	var out []domain.Scenario

	for _, page := range mod.Pages {
		dependsOn := ""
		if page.RequiresAuth {
			dependsOn = "auth_001"
		}

		title := page.Title
		if title == "" {
			title = page.Path
		}
		out = append(out, domain.Scenario{
			ID: p.nextID("gen"), Name: fmt.Sprintf("View %s", title), Description: fmt.Sprintf("Test loading %s", page.URL),
			Module: name, Type: domain.ScenarioHappyPath, Priority: domain.PriorityLow,
			DependsOn: dependsOn, Status: domain.ScenarioPending,
			Steps: []domain.Step{
				navigate(page.URL, "Navigate to page"),
				assertStep(domain.AssertPageLoaded, "Verify page loads without errors"),
			},
		})

		for _, form := range page.Forms {
			steps := []domain.Step{navigate(page.URL, "Go to page")}
			for _, f := range form.Fields {
				if f.Name == "" {
					continue
				}
				steps = append(steps, fill(fmt.Sprintf("[name='%s']", f.Name), "test", fmt.Sprintf("Fill %s", f.Name)))
			}
			steps = append(steps,
				click("button[type='submit']", "Submit form"),
				assertStep(domain.AssertFormSubmitted, "Verify form processes"),
			)
			out = append(out, domain.Scenario{
				ID: p.nextID("gen"), Name: fmt.Sprintf("Submit %s", form.ID),
				Description: fmt.Sprintf("Test form submission on %s", page.Path),
				Module:      name, Type: domain.ScenarioHappyPath, Priority: domain.PriorityMedium,
				DependsOn: dependsOn, Status: domain.ScenarioPending, Steps: steps,
			})
		}
	}

	return out
}
