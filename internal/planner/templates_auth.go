package planner

import "github.com/proberun/probe/internal/domain"

const sqlInjectionPayload = `' OR '1'='1`

func (p *Planner) authScenarios(mod *domain.AppModule) []domain.Scenario {
	var out []domain.Scenario

	for _, page := range mod.Pages {
		sel := extractFormSelectors(page)
		emailSel := firstNonEmpty(sel.email, sel.username, "input[type='email'], input[name='email'], input[name='username'], #Email")
		passSel := firstNonEmpty(sel.password, "input[type='password'], input[name='password'], #Password")
		submitSel := firstNonEmpty(sel.submit, "button[type='submit'], input[type='submit'], .login-button, .btn-login")

		switch page.Type {
		case domain.PageLogin:
			out = append(out,
				domain.Scenario{
					ID: p.nextID("auth"), Name: "Valid Login", Description: "Test login with valid credentials",
					Module: domain.ModuleAuth, Type: domain.ScenarioHappyPath, Priority: domain.PriorityHigh,
					Status: domain.ScenarioPending,
					Steps: []domain.Step{
						navigate(page.URL, "Go to login page"),
						fill(emailSel, placeholderEmail, "Enter email/username"),
						fill(passSel, placeholderPassword, "Enter password"),
						click(submitSel, "Click login button"),
						wait("navigation", "Wait for redirect"),
						assertStep(domain.AssertURLChanged, "Verify redirected to dashboard"),
					},
				},
				domain.Scenario{
					ID: p.nextID("auth"), Name: "Invalid Password", Description: "Test login with wrong password shows error",
					Module: domain.ModuleAuth, Type: domain.ScenarioErrorPath, Priority: domain.PriorityHigh,
					Status: domain.ScenarioPending,
					Steps: []domain.Step{
						navigate(page.URL, "Go to login page"),
						fill(emailSel, placeholderEmail, "Enter email"),
						fill(passSel, "wrongpassword", "Enter wrong password"),
						click(submitSel, "Click login"),
						assertStep(domain.AssertErrorMessageVisible, "Verify error message shown"),
					},
				},
				domain.Scenario{
					ID: p.nextID("auth"), Name: "Empty Form Submission", Description: "Test submitting empty login form",
					Module: domain.ModuleAuth, Type: domain.ScenarioEdgeCase, Priority: domain.PriorityMedium,
					Status: domain.ScenarioPending,
					Steps: []domain.Step{
						navigate(page.URL, "Go to login page"),
						click(submitSel, "Click login without filling form"),
						assertStep(domain.AssertValidationError, "Verify validation error shown"),
					},
				},
				domain.Scenario{
					ID: p.nextID("auth"), Name: "SQL Injection Test", Description: "Test login form against SQL injection",
					Module: domain.ModuleAuth, Type: domain.ScenarioSecurity, Priority: domain.PriorityHigh,
					Status: domain.ScenarioPending,
					Steps: []domain.Step{
						navigate(page.URL, "Go to login page"),
						fill(emailSel, sqlInjectionPayload, "Enter SQL injection payload"),
						fill(passSel, sqlInjectionPayload, "Enter SQL injection in password"),
						click(submitSel, "Submit"),
						assertStep(domain.AssertNoUnauthorized, "Verify no unauthorized access"),
					},
				},
			)

		case domain.PageRegister:
			nameSel := firstNonEmpty(sel.name, "input[name='name'], input[name='fullname'], input[name='FirstName'], #FirstName")
			confirmSel := firstNonEmpty(sel.confirmPassword, "input[name='ConfirmPassword'], input[name='confirm_password'], #ConfirmPassword")

			out = append(out, domain.Scenario{
				ID: p.nextID("auth"), Name: "Valid Registration", Description: "Test registration with valid data",
				Module: domain.ModuleAuth, Type: domain.ScenarioHappyPath, Priority: domain.PriorityHigh,
				Status: domain.ScenarioPending,
				Steps: []domain.Step{
					navigate(page.URL, "Go to register page"),
					fill(nameSel, "Test User", "Enter name"),
					fill(emailSel, "newuser@example.com", "Enter email"),
					fill(passSel, "SecurePass123!", "Enter password"),
					fill(confirmSel, "SecurePass123!", "Confirm password"),
					click(submitSel, "Submit registration"),
					assertStep(domain.AssertSuccessOrRedirect, "Verify registration success"),
				},
			})
		}
	}

	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func navigate(target, desc string) domain.Step {
	return domain.Step{Action: domain.StepNavigate, Target: target, Description: desc}
}

func fill(target, value, desc string) domain.Step {
	return domain.Step{Action: domain.StepFill, Target: target, Value: value, Description: desc}
}

func click(target, desc string) domain.Step {
	return domain.Step{Action: domain.StepClick, Target: target, Description: desc}
}

func wait(target, desc string) domain.Step {
	return domain.Step{Action: domain.StepWait, Target: target, Description: desc}
}

func assertStep(target, desc string) domain.Step {
	return domain.Step{Action: domain.StepAssert, Target: target, Description: desc}
}
