package explorer

import (
	"context"
	"fmt"
	"strings"

	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/domain"
)

func attr(ctx context.Context, el browserdriver.Element, name string) string {
	v, ok, err := el.Attribute(ctx, name)
	if err != nil || !ok {
		return ""
	}
	return v
}

func (e *Explorer) extractForms(ctx context.Context, page browserdriver.Page) ([]domain.Form, error) {
	formEls, err := page.QueryAll(ctx, "form")
	if err != nil {
		return nil, fmt.Errorf("explorer: extract forms: %w", err)
	}

	var forms []domain.Form
	for i, formEl := range formEls {
		formID := attr(ctx, formEl, "id")
		formAction := attr(ctx, formEl, "action")
		formMethod := attr(ctx, formEl, "method")
		if formMethod == "" {
			formMethod = "get"
		}
		formClass := attr(ctx, formEl, "class")

		formSelector := buildFormSelector(i, formID, formAction, formClass)

		fieldEls, _ := page.QueryAll(ctx, formSelector+" input, "+formSelector+" select, "+formSelector+" textarea")
		var fields []domain.Field
		for _, inpEl := range fieldEls {
			inpType := attr(ctx, inpEl, "type")
			if inpType == "" {
				inpType = "text"
			}
			if inpType == "hidden" || inpType == "submit" {
				continue
			}
			inpName := attr(ctx, inpEl, "name")
			inpID := attr(ctx, inpEl, "id")
			inpPlaceholder := attr(ctx, inpEl, "placeholder")
			_, required, _ := inpEl.Attribute(ctx, "required")
			inpClass := attr(ctx, inpEl, "class")

			fields = append(fields, domain.Field{
				Type:        inpType,
				Name:        inpName,
				ID:          inpID,
				Placeholder: inpPlaceholder,
				Required:    required,
				Selector:    buildInputSelector(inpID, inpName, inpType, inpClass),
			})
		}

		submitText, submitSelector := e.extractSubmit(ctx, page, formSelector)

		forms = append(forms, domain.Form{
			ID:             formID,
			Selector:       formSelector,
			Action:         formAction,
			Method:         strings.ToUpper(formMethod),
			Fields:         fields,
			SubmitText:     submitText,
			SubmitSelector: submitSelector,
		})
	}

	return forms, nil
}

func buildFormSelector(index int, id, action, class string) string {
	if action != "" {
		return fmt.Sprintf("form[action='%s']", action)
	}
	if id != "" {
		return "#" + id
	}
	if class != "" {
		return "form." + strings.Fields(class)[0]
	}
	return fmt.Sprintf("form:nth-of-type(%d)", index+1)
}

func buildInputSelector(id, name, typ, class string) string {
	var selectors []string
	if id != "" {
		selectors = append(selectors, "#"+id)
	}
	if name != "" {
		selectors = append(selectors, fmt.Sprintf("input[name='%s']", name), fmt.Sprintf("[name='%s']", name))
	}
	if typ != "" && class != "" {
		selectors = append(selectors, fmt.Sprintf("input[type='%s'].%s", typ, strings.Fields(class)[0]))
	}
	if typ != "" {
		selectors = append(selectors, fmt.Sprintf("input[type='%s']", typ))
	}
	if len(selectors) == 0 {
		return "input"
	}
	if len(selectors) > 3 {
		selectors = selectors[:3]
	}
	return strings.Join(selectors, ", ")
}

func (e *Explorer) extractSubmit(ctx context.Context, page browserdriver.Page, formSelector string) (text, selector string) {
	css := "button[type='submit'], input[type='submit'], .btn-submit, .submit-button, button, input[type='button']"
	els, _ := page.QueryAll(ctx, formSelector+" "+strings.ReplaceAll(css, ", ", ", "+formSelector+" "))
	if len(els) == 0 {
		return "Submit", ""
	}
	btn := els[0]

	submitText, _ := btn.Text(ctx)
	if submitText == "" {
		submitText = attr(ctx, btn, "value")
	}
	if submitText == "" {
		submitText = "Submit"
	}

	btnID := attr(ctx, btn, "id")
	btnClass := attr(ctx, btn, "class")
	btnType := attr(ctx, btn, "type")
	tag, _ := btn.Eval(ctx, `() => this.tagName.toLowerCase()`)
	if tag == "" {
		tag = "button"
	}

	switch {
	case btnID != "":
		selector = "#" + btnID
	case btnClass != "":
		classes := strings.Fields(btnClass)
		specific := ""
		for _, cls := range classes {
			lower := strings.ToLower(cls)
			if strings.Contains(lower, "submit") || strings.Contains(lower, "login") ||
				strings.Contains(lower, "register") || strings.Contains(lower, "signup") {
				specific = cls
				break
			}
		}
		if specific == "" {
			specific = classes[0]
		}
		selector = tag + "." + specific
	case btnType == "submit":
		selector = fmt.Sprintf("%s %s[type='submit']", formSelector, tag)
	default:
		selector = fmt.Sprintf("%s button, %s input[type='submit']", formSelector, formSelector)
	}

	return strings.TrimSpace(submitText), selector
}

func (e *Explorer) extractButtons(ctx context.Context, page browserdriver.Page) ([]domain.Button, error) {
	els, err := page.QueryAll(ctx, "button, [role='button'], a.btn, a.button, .btn, input[type='button']")
	if err != nil {
		return nil, fmt.Errorf("explorer: extract buttons: %w", err)
	}

	seen := make(map[string]bool)
	var buttons []domain.Button
	for _, el := range els {
		text, _ := el.Text(ctx)
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true

		id := attr(ctx, el, "id")
		class := attr(ctx, el, "class")
		onclick := attr(ctx, el, "onclick")

		selector := "button"
		if id != "" {
			selector = "#" + id
		} else if class != "" {
			selector = "." + strings.Fields(class)[0]
		}

		buttons = append(buttons, domain.Button{
			Text:     text,
			Selector: selector,
			Action:   classifyButtonAction(e.caser, text, onclick),
		})
	}
	return buttons, nil
}

func classifyButtonAction(caser interface{ String(string) string }, text, onclick string) string {
	lower := caser.String(text)
	switch {
	case containsAny(lower, "submit", "save", "create", "add", "post"):
		return "submit"
	case containsAny(lower, "delete", "remove", "trash"):
		return "delete"
	case containsAny(lower, "edit", "update", "modify"):
		return "edit"
	case containsAny(lower, "cancel", "close", "back"):
		return "cancel"
	case containsAny(lower, "login", "sign in", "signin"):
		return "login"
	case containsAny(lower, "logout", "sign out", "signout"):
		return "logout"
	case containsAny(lower, "search", "find"):
		return "search"
	case containsAny(lower, "download", "export"):
		return "download"
	case containsAny(lower, "upload", "import"):
		return "upload"
	default:
		return "click"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (e *Explorer) extractStandaloneInputs(ctx context.Context, page browserdriver.Page) ([]domain.Field, error) {
	els, err := page.QueryAll(ctx, "input:not(form input), textarea:not(form textarea)")
	if err != nil {
		return nil, fmt.Errorf("explorer: extract standalone inputs: %w", err)
	}

	var fields []domain.Field
	for _, el := range els {
		typ := attr(ctx, el, "type")
		if typ == "" {
			typ = "text"
		}
		if typ == "hidden" {
			continue
		}
		name := attr(ctx, el, "name")
		if name == "" {
			name = attr(ctx, el, "id")
		}
		fields = append(fields, domain.Field{
			Type:        typ,
			Name:        name,
			Placeholder: attr(ctx, el, "placeholder"),
		})
	}
	return fields, nil
}

func (e *Explorer) extractNavLinks(ctx context.Context, page browserdriver.Page) ([]string, error) {
	els, err := page.QueryAll(ctx, "nav a, header a, .sidebar a, .nav a, [role='navigation'] a")
	if err != nil {
		return nil, fmt.Errorf("explorer: extract nav links: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	for _, el := range els {
		href := attr(ctx, el, "href")
		if href == "" || seen[href] || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			continue
		}
		seen[href] = true
		links = append(links, href)
	}
	return links, nil
}

func (e *Explorer) extractModals(ctx context.Context, page browserdriver.Page) ([]domain.Modal, error) {
	els, err := page.QueryAll(ctx, "[role='dialog'], .modal, [data-modal], [aria-modal='true']")
	if err != nil {
		return nil, fmt.Errorf("explorer: extract modals: %w", err)
	}

	var modals []domain.Modal
	for i, el := range els {
		id := attr(ctx, el, "id")
		if id == "" {
			id = fmt.Sprintf("modal_%d", i)
		}
		modals = append(modals, domain.Modal{Selector: "#" + id})
	}
	return modals, nil
}

func (e *Explorer) extractLinks(ctx context.Context, page browserdriver.Page) ([]string, error) {
	els, err := page.QueryAll(ctx, "a[href]")
	if err != nil {
		return nil, fmt.Errorf("explorer: extract links: %w", err)
	}

	var links []string
	for _, el := range els {
		href := attr(ctx, el, "href")
		if href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
			links = append(links, href)
		}
	}
	return links, nil
}

func detectPageType(path, title string, forms []domain.Form) domain.PageType {
	path = strings.ToLower(path)
	titleLower := strings.ToLower(title)

	switch {
	case containsAny(path, "/login", "/signin", "/sign-in", "/auth"):
		return domain.PageLogin
	case containsAny(path, "/register", "/signup", "/sign-up"):
		return domain.PageRegister
	case containsAny(path, "/forgot", "/reset", "/password"):
		return domain.PagePasswordReset
	case containsAny(path, "/dashboard", "/home", "/overview"):
		return domain.PageDashboard
	case path == "/" || path == "":
		return domain.PageLanding
	case containsAny(path, "/settings", "/preferences", "/config"):
		return domain.PageSettings
	case containsAny(path, "/profile", "/account", "/user"):
		return domain.PageProfile
	case containsAny(path, "/create", "/new", "/add"):
		return domain.PageCreate
	case containsAny(path, "/edit", "/update", "/modify"):
		return domain.PageEdit
	case containsAny(path, "/list", "/all", "/index"):
		return domain.PageList
	case containsAny(path, "/view", "/detail", "/show"):
		return domain.PageDetail
	}

	var fieldNames []string
	for _, form := range forms {
		for _, f := range form.Fields {
			fieldNames = append(fieldNames, strings.ToLower(f.Name))
		}
	}
	if containsAny(strings.Join(fieldNames, " "), "email", "password", "username") {
		if strings.Contains(titleLower, "register") || strings.Contains(titleLower, "sign up") {
			return domain.PageRegister
		}
		return domain.PageLogin
	}

	return domain.PageGeneral
}

func requiresAuth(path string) bool {
	path = strings.ToLower(path)
	publicPaths := []string{"/login", "/signin", "/register", "/signup", "/forgot", "/reset", "/about", "/contact", "/pricing"}
	if containsAny(path, publicPaths...) || path == "/" {
		return false
	}
	authPaths := []string{"/dashboard", "/settings", "/profile", "/account", "/admin", "/create", "/edit"}
	return containsAny(path, authPaths...)
}
