// Package browserdriver wraps a headless browser behind a
// capability-level interface: navigate, query, fill, click,
// screenshot, record. The Explorer and Scenario Executor depend only
// on Driver, never on go-rod directly, so either could be swapped
// for a different engine without touching the rest of the module.
package browserdriver

import (
	"context"
	"strings"
	"time"
)

// DefaultSelectorTimeout bounds how long a single selector in a
// preference list is tried before moving to the next.
const DefaultSelectorTimeout = 3 * time.Second

// Element is an opaque handle to a DOM node returned by Query/QueryAll.
// Drivers embed their native element type behind this interface.
type Element interface {
	Attribute(ctx context.Context, name string) (string, bool, error)
	Text(ctx context.Context) (string, error)
	Eval(ctx context.Context, jsExpr string) (string, error)
}

// Page is one browser tab/document.
type Page interface {
	// Goto navigates to url, waiting for the network-idle load state,
	// bounded by timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error

	// QueryAll returns every element matching a single CSS selector
	// (not a preference list).
	QueryAll(ctx context.Context, css string) ([]Element, error)

	// Query returns the first element matching css, or ok=false.
	Query(ctx context.Context, css string) (Element, bool, error)

	// Resolve tries each selector in selectorList (a comma-separated
	// preference list) in order, each bounded by perSelectorTimeout,
	// and returns the first that resolves. Returns a
	// *domain.SelectorError-compatible error if none do.
	Resolve(ctx context.Context, selectorList string, perSelectorTimeout time.Duration) (Element, error)

	// Fill resolves selectorList and sets its value.
	Fill(ctx context.Context, selectorList, value string) error

	// Click resolves selectorList and clicks it.
	Click(ctx context.Context, selectorList string) error

	// WaitLoadState blocks until the named load state (only
	// "networkidle" is required) is reached or timeout elapses.
	WaitLoadState(ctx context.Context, state string, timeout time.Duration) error

	// Evaluate runs a JS snippet against the page and returns its
	// string representation.
	Evaluate(ctx context.Context, jsExpr string) (string, error)

	Content(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	URL() string

	// Screenshot writes a PNG of the current viewport to path.
	Screenshot(ctx context.Context, path string) error

	Close() error
}

// Driver launches and tears down browser contexts. One Driver backs
// one process; one context backs one run; one Page backs one
// scenario (per the concurrency model's resource policy).
type Driver interface {
	// Launch starts (or verifies) the underlying browser process. If
	// recordDir is non-empty, pages opened via NewContext request
	// video recording into that directory.
	Launch(ctx context.Context, recordDir string) error

	// NewContext opens an isolated (incognito) browsing context at the
	// given viewport.
	NewContext(ctx context.Context, viewportWidth, viewportHeight int, recordVideo bool) (Context, error)

	Close() error
}

// Context is one isolated browsing context (cookie jar, cache) within
// which pages are opened.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// SplitSelectorList parses a comma-separated selector preference list
// into its individual trimmed selectors, dropping empties.
func SplitSelectorList(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
