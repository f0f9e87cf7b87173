// Package explorer implements the bounded same-origin crawler that
// produces an AppMap: the discovered pages, forms, buttons, and
// navigation of a target application.
package explorer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/domain"
)

// navigationTimeout is the per-URL goto bound; unreachable URLs are
// logged and skipped, per the Explorer's partial-result contract.
const navigationTimeout = 15 * time.Second

// settleDelay gives client-side JS time to finish rendering after
// network-idle before extraction, mirroring the source's fixed
// post-navigation pause.
const settleDelay = 1 * time.Second

// Explorer crawls a target starting at a base URL, staying within its
// origin, and returns the resulting AppMap.
type Explorer struct {
	ctx    browserdriver.Context
	logger *zap.Logger
	caser  cases.Caser
}

// New returns an Explorer that opens pages within ctx (a single
// browsing context for the whole crawl, per the concurrency model's
// "one page object is sufficient" guidance).
func New(browserCtx browserdriver.Context, logger *zap.Logger) *Explorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explorer{ctx: browserCtx, logger: logger, caser: newLowerCaser()}
}

func newLowerCaser() cases.Caser {
	return cases.Lower(language.English)
}

// Explore crawls baseURL breadth-first, visiting at most maxPages
// same-origin pages, and returns the assembled AppMap.
func (e *Explorer) Explore(ctx context.Context, baseURL string, maxPages int) (*domain.AppMap, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("explorer: parse base url: %w: %w", domain.ErrNavigationFailed, err)
	}
	domainHost := base.Host

	appMap := &domain.AppMap{
		BaseURL: base.String(),
		Modules: make(map[domain.ModuleName]*domain.AppModule),
	}

	if maxPages <= 0 {
		return appMap, nil
	}

	page, err := e.ctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("explorer: open page: %w", err)
	}
	defer page.Close()

	visited := make(map[string]bool)
	queue := []string{base.String()}
	reachedBase := false

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] || len(visited) >= maxPages {
			continue
		}
		u, err := url.Parse(current)
		if err != nil || u.Host != domainHost {
			continue
		}
		visited[current] = true

		if err := page.Goto(ctx, current, navigationTimeout); err != nil {
			e.logger.Warn("explorer: navigation failed, skipping", zap.String("url", current), zap.Error(err))
			if current == base.String() && !reachedBase {
				return nil, fmt.Errorf("explorer: base url unreachable: %w", domain.ErrNavigationFailed)
			}
			continue
		}
		reachedBase = true
		select {
		case <-ctx.Done():
			return appMap, ctx.Err()
		case <-time.After(settleDelay):
		}

		pg, err := e.extractPage(ctx, page, current)
		if err != nil {
			e.logger.Warn("explorer: extraction failed, skipping", zap.String("url", current), zap.Error(err))
			continue
		}
		appMap.Pages = append(appMap.Pages, *pg)

		links, err := e.extractLinks(ctx, page)
		if err == nil {
			for _, href := range links {
				full, err := u.Parse(href)
				if err != nil {
					continue
				}
				if !visited[full.String()] {
					queue = append(queue, full.String())
				}
			}
		}
	}

	appMap.TotalPages = len(appMap.Pages)
	e.groupIntoModules(appMap)
	for _, pg := range appMap.Pages {
		if isAuthPage(pg.Type) {
			appMap.AuthPages = append(appMap.AuthPages, pg.URL)
		}
	}

	return appMap, nil
}

func (e *Explorer) extractPage(ctx context.Context, page browserdriver.Page, rawURL string) (*domain.Page, error) {
	title, err := page.Title(ctx)
	if err != nil {
		title = ""
	}

	u, _ := url.Parse(rawURL)
	path := "/"
	if u != nil && u.Path != "" {
		path = u.Path
	}

	forms, err := e.extractForms(ctx, page)
	if err != nil {
		return nil, err
	}
	buttons, err := e.extractButtons(ctx, page)
	if err != nil {
		return nil, err
	}
	inputs, err := e.extractStandaloneInputs(ctx, page)
	if err != nil {
		return nil, err
	}
	navLinks, err := e.extractNavLinks(ctx, page)
	if err != nil {
		return nil, err
	}
	modals, err := e.extractModals(ctx, page)
	if err != nil {
		return nil, err
	}

	pageType := detectPageType(path, title, forms)

	return &domain.Page{
		URL:          rawURL,
		Path:         path,
		Title:        title,
		Type:         pageType,
		Forms:        forms,
		Buttons:      buttons,
		Inputs:       inputs,
		NavLinks:     navLinks,
		Modals:       modals,
		RequiresAuth: requiresAuth(path),
	}, nil
}

func (e *Explorer) groupIntoModules(appMap *domain.AppMap) {
	mapping := map[domain.ModuleName][]domain.PageType{
		domain.ModuleAuth:      {domain.PageLogin, domain.PageRegister, domain.PagePasswordReset},
		domain.ModuleDashboard: {domain.PageDashboard, domain.PageLanding},
		domain.ModuleProfile:   {domain.PageProfile, domain.PageSettings},
		domain.ModuleCRUD:      {domain.PageCreate, domain.PageEdit, domain.PageList, domain.PageDetail},
		domain.ModuleGeneral:   {domain.PageGeneral},
	}

	for name, types := range mapping {
		var pages []domain.Page
		for _, pg := range appMap.Pages {
			for _, t := range types {
				if pg.Type == t {
					pages = append(pages, pg)
					break
				}
			}
		}
		if len(pages) > 0 {
			appMap.Modules[name] = &domain.AppModule{Name: name, Pages: pages}
		}
	}
}

func isAuthPage(t domain.PageType) bool {
	return t == domain.PageLogin || t == domain.PageRegister || t == domain.PagePasswordReset
}
