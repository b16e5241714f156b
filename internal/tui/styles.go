package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/crewline/pkg/models"
)

type styles struct {
	header    lipgloss.Style
	section   lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	dim       lipgloss.Style
	completed lipgloss.Style
	failed    lipgloss.Style
	warn      lipgloss.Style
	running   lipgloss.Style
}

func newStyles() styles {
	return styles{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),
		section:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		label:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(8),
		value:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true),
		dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		completed: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		running:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
	}
}

func (s styles) statusIcon(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusCompleted:
		return s.completed.Render("✓")
	case models.TaskStatusFailed:
		return s.failed.Render("✗")
	case models.TaskStatusSkipped:
		return s.warn.Render("↷")
	case models.TaskStatusInProgress:
		return s.running.Render("●")
	default:
		return s.dim.Render("○")
	}
}

func (s styles) level(level string) lipgloss.Style {
	switch level {
	case "ERROR":
		return s.failed
	case "WARN":
		return s.warn
	case "DEBUG":
		return s.dim
	default:
		return s.completed
	}
}
