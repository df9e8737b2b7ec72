package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor = lipgloss.Color("#00ff9f")
	dimColor    = lipgloss.Color("#6e7681")
	failColor   = lipgloss.Color("#ff5f87")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(dimColor)
	passStyle  = lipgloss.NewStyle().Foreground(accentColor)
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(failColor)
)

// padRight pads s with spaces to width visible cells.
func padRight(s string, width int) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}
