package tui

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// RenderReport renders markdown (the run's report.md artifact) for
// terminal display, auto-detecting light/dark style and wrapping at
// width columns.
func RenderReport(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("building markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return out, nil
}
