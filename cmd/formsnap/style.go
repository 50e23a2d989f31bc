package main

import "github.com/charmbracelet/lipgloss"

var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1FA8C"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
	styleTitle   = lipgloss.NewStyle().Bold(true)
)
