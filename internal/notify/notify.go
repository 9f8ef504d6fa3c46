// Package notify renders notices, upload progress and outcomes on a terminal.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/blacktop/postfan/internal/postfan"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

func levelStyle(level postfan.NoticeLevel) (lipgloss.Style, string) {
	switch level {
	case postfan.NoticeSuccess:
		return successStyle, "✓"
	case postfan.NoticeWarning:
		return warningStyle, "!"
	case postfan.NoticeError:
		return errorStyle, "✗"
	default:
		return infoStyle, "•"
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Terminal is a Notifier that prints one styled line per notice.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// New returns a Terminal writing to w.
func New(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Notify prints message with a marker for level.
func (t *Terminal) Notify(level postfan.NoticeLevel, message string) {
	style, marker := levelStyle(level)
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%s %s\n", style.Render(marker), message)
}

// Quiet drops every notice.
type Quiet struct{}

// Notify does nothing.
func (Quiet) Notify(postfan.NoticeLevel, string) {}
