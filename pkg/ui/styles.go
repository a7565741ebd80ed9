package ui

import "github.com/charmbracelet/lipgloss"

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonRed     = lipgloss.Color("#FF3131")
	dimWhite    = lipgloss.Color("#B0B0B0")

	labelStyle     = lipgloss.NewStyle().Foreground(neonCyan).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(neonYellow)
	successStyle   = lipgloss.NewStyle().Foreground(neonGreen).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(neonRed).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(neonYellow)
	highlightStyle = lipgloss.NewStyle().Foreground(neonMagenta)
	dimStyle       = lipgloss.NewStyle().Foreground(dimWhite)

	headerStyle = lipgloss.NewStyle().Foreground(neonCyan).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(neonMagenta)
)

// statusStyle colors a job status
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return successStyle
	case "failed":
		return errorStyle
	case "processing":
		return warningStyle
	default:
		return dimStyle
	}
}
