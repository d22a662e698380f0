package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")) // yellow
	labelStyle  = lipgloss.NewStyle().Width(8).Foreground(lipgloss.Color("8"))   // gray
	onStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")) // green
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // gray
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))            // red

	frameStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8"))
)
