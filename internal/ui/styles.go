package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles derived from a Theme.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Section  lipgloss.Style
	Query    lipgloss.Style
	Dimmed   lipgloss.Style
	Success  lipgloss.Style
	Failure  lipgloss.Style

	Panel      lipgloss.Style
	CommandBox lipgloss.Style

	BadgeSafe   lipgloss.Style
	BadgeUnsafe lipgloss.Style
	BadgeGated  lipgloss.Style
	BadgeError  lipgloss.Style
}

// NewStyles builds Styles from t.
func NewStyles(t *Theme) *Styles {
	s := &Styles{}

	s.Title = lipgloss.NewStyle().Foreground(t.Blue).Bold(true)
	s.Subtitle = lipgloss.NewStyle().Foreground(t.Subtext).Italic(true)
	s.Section = lipgloss.NewStyle().Foreground(t.Text).Bold(true).MarginTop(1)
	s.Query = lipgloss.NewStyle().Foreground(t.Yellow)
	s.Dimmed = lipgloss.NewStyle().Foreground(t.Subtext)
	s.Success = lipgloss.NewStyle().Foreground(t.Green).Bold(true)
	s.Failure = lipgloss.NewStyle().Foreground(t.Red).Bold(true)

	s.Panel = lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0)

	s.CommandBox = lipgloss.NewStyle().
		Foreground(t.Green).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Overlay0)

	badge := lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(t.Base)
	s.BadgeSafe = badge.Background(t.Green)
	s.BadgeUnsafe = badge.Background(t.Red)
	s.BadgeGated = badge.Background(t.Yellow)
	s.BadgeError = badge.Background(t.Peach)

	return s
}
