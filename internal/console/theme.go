package console

import "github.com/charmbracelet/lipgloss"

var (
	colorBorder  = lipgloss.Color("#4b5563")
	colorDimmed  = lipgloss.Color("#6b7280")
	colorBright  = lipgloss.Color("#f9fafb")
	colorSession = lipgloss.Color("#06b6d4")
	colorHealthy = lipgloss.Color("#22c55e")
	colorDanger  = lipgloss.Color("#dc2626")
	colorSelf    = lipgloss.Color("#a855f7")
)

var (
	styleSession = lipgloss.NewStyle().Foreground(colorSession).Bold(true)
	styleChat    = lipgloss.NewStyle().Foreground(colorBright)
	styleSelf    = lipgloss.NewStyle().Foreground(colorSelf)
	styleError   = lipgloss.NewStyle().Foreground(colorDanger)
	styleDimmed  = lipgloss.NewStyle().Foreground(colorDimmed)
	styleUp      = lipgloss.NewStyle().Foreground(colorHealthy).Bold(true)
	styleDown    = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleBar     = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorBorder).
			Padding(0, 1)
)
