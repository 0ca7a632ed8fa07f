package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// truncate shortens s to maxWidth terminal columns, ending in "..." when
// cut. Escape sequences and wide characters are measured correctly.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// progressBar renders a bar width columns wide, filled to fraction.
func progressBar(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(fraction * float64(width))
	filled = max(0, min(filled, width))
	return barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// sanitize strips escape sequences a tool may write into its log, so a stray
// cursor movement cannot corrupt the view.
func sanitize(line string) string {
	return strings.TrimSpace(ansi.Strip(line))
}
