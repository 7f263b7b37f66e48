package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.AdaptiveColor{Light: "#1F6FB2", Dark: "#6CB6FF"}
	muted  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6E6E6E"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Width(10)
	focusedStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	valueStyle   = lipgloss.NewStyle()
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	outputBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1).MarginTop(1)
	tooltipStyle = lipgloss.NewStyle().Foreground(muted).Italic(true)
)
