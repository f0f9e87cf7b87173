package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPassed  = lipgloss.Color("10") // green
	colorFailed  = lipgloss.Color("9")  // red
	colorRunning = lipgloss.Color("11") // yellow
	colorSkipped = lipgloss.Color("8")  // gray
	colorTitle   = lipgloss.Color("12") // blue
	colorDim     = lipgloss.Color("8")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)

	passedBadgeStyle  = lipgloss.NewStyle().Foreground(colorPassed).Bold(true)
	failedBadgeStyle  = lipgloss.NewStyle().Foreground(colorFailed).Bold(true)
	runningBadgeStyle = lipgloss.NewStyle().Foreground(colorRunning)
	skippedBadgeStyle = lipgloss.NewStyle().Foreground(colorSkipped)

	dimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

func badgeFor(status string) string {
	switch status {
	case "passed":
		return passedBadgeStyle.Render("✓ passed")
	case "failed":
		return failedBadgeStyle.Render("✗ failed")
	case "running":
		return runningBadgeStyle.Render("▸ running")
	case "skipped":
		return skippedBadgeStyle.Render("- skipped")
	default:
		return dimStyle.Render("· pending")
	}
}
