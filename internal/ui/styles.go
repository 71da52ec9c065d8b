package ui

import "github.com/charmbracelet/lipgloss"

const (
	ColorCyan   = lipgloss.Color("12")
	ColorYellow = lipgloss.Color("11")
	ColorGreen  = lipgloss.Color("10")
	ColorRed    = lipgloss.Color("9")
	ColorGray   = lipgloss.Color("8")
)

const (
	SymbolMonitoring = "●"
	SymbolPaused     = "○"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorCyan)
	ActiveStyle  = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	PausedStyle  = lipgloss.NewStyle().Foreground(ColorYellow)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed)
	DimStyle     = lipgloss.NewStyle().Foreground(ColorGray)
	SummaryStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	HelpStyle    = lipgloss.NewStyle().Foreground(ColorGray).MarginTop(1)
)
