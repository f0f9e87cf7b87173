package tui

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// TerminalWidth returns the current terminal's column count, falling
// back to 100 when stdout isn't a TTY (piped output, CI logs).
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 100
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 100
	}
	return w
}

// SupportsColor reports whether the output stream can render ANSI
// color, used to decide between RenderReport and a plain-text dump.
func SupportsColor() bool {
	return termenv.ColorProfile() != termenv.Ascii
}
