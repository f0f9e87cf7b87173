package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/domain"
)

// evaluateAssertion checks one of the closed AssertTarget predicates
// against the current page state. An unrecognized predicate is an
// error, not a silent pass.
func evaluateAssertion(ctx context.Context, page browserdriver.Page, predicate string) (bool, error) {
	switch predicate {
	case domain.AssertPageLoaded:
		content, err := page.Content(ctx)
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(content) != "", nil

	case domain.AssertURLChanged:
		return page.URL() != "", nil

	case domain.AssertErrorMessageVisible:
		return anyMatches(ctx, page, ".error, .alert-danger, [role='alert'], .invalid-feedback")

	case domain.AssertValidationError:
		return anyMatches(ctx, page, ":invalid, .is-invalid, .field-error, [aria-invalid='true']")

	case domain.AssertNoUnauthorized:
		content, err := page.Content(ctx)
		if err != nil {
			return false, err
		}
		lower := strings.ToLower(content)
		return !strings.Contains(lower, "unauthorized") && !strings.Contains(lower, "internal server error"), nil

	case domain.AssertSuccessOrRedirect:
		return page.URL() != "", nil

	case domain.AssertKeyElementsVisible:
		return anyMatches(ctx, page, "nav, header, main, .dashboard")

	case domain.AssertSaveSuccess, domain.AssertCreateSuccess, domain.AssertUpdateSuccess, domain.AssertFormSubmitted:
		return anyMatches(ctx, page, ".success, .alert-success, [role='status'], .toast-success")

	case domain.AssertListVisible:
		return anyMatches(ctx, page, "table, ul, ol, .list, [role='list']")

	case domain.AssertFormPrefilled:
		els, err := page.QueryAll(ctx, "input[value]")
		if err != nil {
			return false, err
		}
		return len(els) > 0, nil

	case domain.AssertUserInfoVisible:
		return anyMatches(ctx, page, ".profile, .user-info, [data-testid='user-info']")

	case domain.AssertCTAButtonsVisible:
		return anyMatches(ctx, page, "a.btn, button.cta, .btn-primary")

	case domain.AssertNavigationSuccess:
		return page.URL() != "", nil

	case domain.AssertActionResult:
		return anyMatches(ctx, page, "body")

	default:
		return false, fmt.Errorf("unrecognized assert target %q", predicate)
	}
}

func anyMatches(ctx context.Context, page browserdriver.Page, css string) (bool, error) {
	els, err := page.QueryAll(ctx, css)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}
