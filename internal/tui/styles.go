package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors meet WCAG AA contrast on both black and dark surfaces.
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray
	surfaceColor   = lipgloss.Color("#374151")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	stateStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(secondaryColor).Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(primaryColor)

	barFilledStyle = lipgloss.NewStyle().Foreground(primaryColor)
	barEmptyStyle  = lipgloss.NewStyle().Foreground(surfaceColor)

	// Worker status badges
	badgeRunning = lipgloss.NewStyle().Foreground(secondaryColor)
	badgeWaiting = lipgloss.NewStyle().Foreground(mutedColor)
	badgeDone    = lipgloss.NewStyle().Foreground(primaryColor)
	badgeFailed  = lipgloss.NewStyle().Foreground(errorColor)
	badgeKilled  = lipgloss.NewStyle().Foreground(warningColor)

	helpStyle = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)
)
