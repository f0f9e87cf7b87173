// Package tui is the bubbletea live-progress view for a run (driven
// by Model) and the glamour-rendered static report view (RenderReport).
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/proberun/probe/internal/domain"
)

// Poller fetches the latest Progress snapshot for a run, e.g. by
// calling GET /run/{id}/progress or reading execution_progress.json
// directly.
type Poller func() (*domain.Progress, error)

const pollInterval = 500 * time.Millisecond

// Model is the bubbletea model for a run's live progress view.
type Model struct {
	runID  string
	poll   Poller
	keys   KeyMap
	help   help.Model
	bar    progress.Model
	vp     viewport.Model

	current  *domain.Progress
	err      error
	width    int
	height   int
	showHelp bool
	quitting bool
}

// New builds a Model that polls poll every pollInterval until the run
// reaches a terminal status or the user quits.
func New(runID string, poll Poller) Model {
	vp := viewport.New(80, 20)
	return Model{
		runID: runID,
		poll:  poll,
		keys:  DefaultKeyMap(),
		help:  help.New(),
		bar:   progress.New(progress.WithDefaultGradient()),
		vp:    vp,
	}
}

// Init starts the first poll.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch, tickCmd())
}

type progressMsg struct {
	progress *domain.Progress
	err      error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetch() tea.Msg {
	p, err := m.poll()
	return progressMsg{progress: p, err: err}
}

// Update handles bubbletea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.bar.Width = msg.Width - 4
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 6
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.vp.LineUp(1)
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.vp.LineDown(1)
			return m, nil
		}

	case progressMsg:
		m.current = msg.progress
		m.err = msg.err
		m.vp.SetContent(renderResults(msg.progress))
		if msg.progress != nil && msg.progress.Status.Terminal() {
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tea.Batch(m.fetch, tickCmd())
	}

	return m, nil
}

// View renders the current frame.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("probe run %s", m.runID)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("error fetching progress: %v", m.err)))
		return b.String()
	}
	if m.current == nil {
		b.WriteString(dimStyle.Render("waiting for progress..."))
		return b.String()
	}

	total := m.current.Total
	done := len(m.current.Completed)
	ratio := 0.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}
	b.WriteString(m.bar.ViewAs(ratio))
	b.WriteString(fmt.Sprintf("\n%d/%d scenarios · status: %s", done, total, m.current.Status))
	if m.current.CurrentTest != "" {
		b.WriteString(fmt.Sprintf(" · running: %s", m.current.CurrentTest))
	}
	b.WriteString("\n\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n\n")
	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

func renderResults(p *domain.Progress) string {
	if p == nil || len(p.Results) == 0 {
		return dimStyle.Render("no scenario results yet")
	}
	ids := make([]string, 0, len(p.Results))
	for id := range p.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		r := p.Results[id]
		b.WriteString(fmt.Sprintf("%-10s %-30s %s\n", id, r.Name, badgeFor(string(r.Status))))
		if r.Message != "" {
			b.WriteString(dimStyle.Render("  "+r.Message) + "\n")
		}
	}
	return b.String()
}
