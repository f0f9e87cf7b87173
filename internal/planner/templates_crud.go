package planner

import (
	"fmt"

	"github.com/proberun/probe/internal/domain"
)

func (p *Planner) crudScenarios(mod *domain.AppModule) []domain.Scenario {
	var out []domain.Scenario

	for _, page := range mod.Pages {
		dependsOn := ""
		if page.RequiresAuth {
			dependsOn = "auth_001"
		}

		switch page.Type {
		case domain.PageCreate:
			steps := []domain.Step{navigate(page.URL, "Go to create page")}
			for _, form := range page.Forms {
				for _, f := range form.Fields {
					if f.Name == "" {
						continue
					}
					steps = append(steps, fill(fmt.Sprintf("[name='%s']", f.Name), fmt.Sprintf("Test %s", f.Name), fmt.Sprintf("Fill %s", f.Name)))
				}
			}
			steps = append(steps,
				click("button[type='submit']", "Submit form"),
				assertStep(domain.AssertCreateSuccess, "Verify item created"),
			)
			out = append(out, domain.Scenario{
				ID: p.nextID("crud"), Name: "Create New Item", Description: "Test creating a new item",
				Module: domain.ModuleCRUD, Type: domain.ScenarioHappyPath, Priority: domain.PriorityHigh,
				DependsOn: dependsOn, Status: domain.ScenarioPending, Steps: steps,
			})

			out = append(out, domain.Scenario{
				ID: p.nextID("crud"), Name: "Create with Empty Form", Description: "Test submitting empty create form",
				Module: domain.ModuleCRUD, Type: domain.ScenarioEdgeCase, Priority: domain.PriorityMedium,
				DependsOn: dependsOn, Status: domain.ScenarioPending,
				Steps: []domain.Step{
					navigate(page.URL, "Go to create page"),
					click("button[type='submit']", "Submit empty form"),
					assertStep(domain.AssertValidationError, "Verify validation errors shown"),
				},
			})

		case domain.PageList:
			out = append(out, domain.Scenario{
				ID: p.nextID("crud"), Name: "View List", Description: "Test viewing list of items",
				Module: domain.ModuleCRUD, Type: domain.ScenarioHappyPath, Priority: domain.PriorityHigh,
				DependsOn: dependsOn, Status: domain.ScenarioPending,
				Steps: []domain.Step{
					navigate(page.URL, "Go to list page"),
					assertStep(domain.AssertListVisible, "Verify list is displayed"),
				},
			})

		case domain.PageEdit:
			out = append(out, domain.Scenario{
				ID: p.nextID("crud"), Name: "Edit Item", Description: "Test editing an existing item",
				Module: domain.ModuleCRUD, Type: domain.ScenarioHappyPath, Priority: domain.PriorityHigh,
				DependsOn: dependsOn, Status: domain.ScenarioPending,
				Steps: []domain.Step{
					navigate(page.URL, "Go to edit page"),
					assertStep(domain.AssertFormPrefilled, "Verify form has existing data"),
					fill("input:first-of-type", "Updated Value", "Modify a field"),
					click("button[type='submit']", "Submit changes"),
					assertStep(domain.AssertUpdateSuccess, "Verify update successful"),
				},
			})
		}
	}

	return out
}
