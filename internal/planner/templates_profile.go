package planner

import (
	"fmt"

	"github.com/proberun/probe/internal/domain"
)

func (p *Planner) profileScenarios(mod *domain.AppModule) []domain.Scenario {
	var out []domain.Scenario

	for _, page := range mod.Pages {
		dependsOn := ""
		if page.RequiresAuth {
			dependsOn = "auth_001"
		}

		switch page.Type {
		case domain.PageSettings:
			out = append(out, domain.Scenario{
				ID: p.nextID("profile"), Name: "View Settings", Description: "Verify settings page loads",
				Module: domain.ModuleProfile, Type: domain.ScenarioHappyPath, Priority: domain.PriorityMedium,
				DependsOn: dependsOn, Status: domain.ScenarioPending,
				Steps: []domain.Step{
					navigate(page.URL, "Go to settings"),
					assertStep(domain.AssertPageLoaded, "Verify page loads"),
				},
			})

			for _, form := range page.Forms {
				steps := []domain.Step{navigate(page.URL, "Go to settings")}
				for _, f := range form.Fields {
					if f.Name == "" {
						continue
					}
					steps = append(steps, fill(fmt.Sprintf("[name='%s']", f.Name), "test_value", fmt.Sprintf("Fill %s", f.Name)))
				}
				submitText := form.SubmitText
				if submitText == "" {
					submitText = "Save"
				}
				steps = append(steps,
					click(fmt.Sprintf("#%s button[type='submit'], button:has-text('%s')", form.ID, submitText), "Submit form"),
					assertStep(domain.AssertSaveSuccess, "Verify save successful"),
				)
				out = append(out, domain.Scenario{
					ID: p.nextID("profile"), Name: fmt.Sprintf("Update %s", form.ID),
					Description: fmt.Sprintf("Test updating settings via %s", form.ID),
					Module:      domain.ModuleProfile, Type: domain.ScenarioHappyPath, Priority: domain.PriorityMedium,
					DependsOn: dependsOn, Status: domain.ScenarioPending, Steps: steps,
				})
			}

		case domain.PageProfile:
			out = append(out, domain.Scenario{
				ID: p.nextID("profile"), Name: "View Profile", Description: "Verify profile page loads",
				Module: domain.ModuleProfile, Type: domain.ScenarioHappyPath, Priority: domain.PriorityMedium,
				DependsOn: dependsOn, Status: domain.ScenarioPending,
				Steps: []domain.Step{
					navigate(page.URL, "Go to profile"),
					assertStep(domain.AssertPageLoaded, "Verify page loads"),
					assertStep(domain.AssertUserInfoVisible, "Verify user info displayed"),
				},
			})
		}
	}

	return out
}
