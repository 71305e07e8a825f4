package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// --- UI Styles ---
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("#8942E1"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3AC4BA")).Italic(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	warnStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	dividerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pageStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8942E1"))
	missingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	bannerStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#EF4444")).
			Padding(0, 1)
	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2).
			Margin(0, 1)

	// markers for change lines
	symbolValue   = fgSymbol("#10B981", "●")
	symbolMissing = fgSymbol("245", "○")
)

var statusStyles = map[string]lipgloss.Style{
	"success": okStyle,
	"warning": warnStyle,
	"error":   errorStyle,
}

func fgSymbol(col, ch string) string {
	s := lipgloss.NewStyle().Foreground(lipgloss.Color(col)).Render(ch)
	const reset = "\x1b[0m"
	return strings.TrimSuffix(s, reset) + "\x1b[39m"
}

// renderFooter creates a consistent footer across all views
// statusLine: optional status information (shown in subtleStyle)
// helpLines: help text lines (shown in helpStyle)
func renderFooter(statusLine string, helpLines ...string) string {
	var b strings.Builder

	if statusLine != "" {
		b.WriteString(subtleStyle.Render(statusLine) + "\n")
	}

	for _, line := range helpLines {
		b.WriteString(helpStyle.Render(line) + "\n")
	}

	result := b.String()
	return strings.TrimSuffix(result, "\n")
}
