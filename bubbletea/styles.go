package bubbletea

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/reconcile"
)

// Styles maps a Theme to lipgloss styles for TUI rendering.
type Styles struct {
	Processing lipgloss.Style
	Completed  lipgloss.Style
	Failed     lipgloss.Style
	Muted      lipgloss.Style
	Accent     lipgloss.Style
	Selected   lipgloss.Style
	CodeBg     lipgloss.Style
}

// NewStyles creates Styles from a Theme.
func NewStyles(t reconcile.Theme) Styles {
	return Styles{
		Processing: lipgloss.NewStyle().Foreground(ansiColor(t.Processing)),
		Completed:  lipgloss.NewStyle().Foreground(ansiColor(t.Completed)),
		Failed:     lipgloss.NewStyle().Foreground(ansiColor(t.Failed)),
		Muted:      lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		Accent:     lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
		Selected:   lipgloss.NewStyle().Bold(true),
		CodeBg:     lipgloss.NewStyle().Background(ansiColor(t.CodeBg)),
	}
}

// Status returns the style for an item status.
func (s Styles) Status(st reconcile.Status) lipgloss.Style {
	switch st {
	case reconcile.StatusCompleted:
		return s.Completed
	case reconcile.StatusFailed:
		return s.Failed
	default:
		return s.Processing
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
