// Package ui renders the shai console surface with lipgloss.
package ui

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette used by Styles.
type Theme struct {
	Mauve  lipgloss.Color // titles
	Blue   lipgloss.Color // section headers
	Green  lipgloss.Color // commands, safe verdicts
	Yellow lipgloss.Color // queries, gated verdicts
	Red    lipgloss.Color // unsafe verdicts, errors
	Peach  lipgloss.Color // model-error verdicts
	Teal   lipgloss.Color

	Text    lipgloss.Color
	Subtext lipgloss.Color

	Base     lipgloss.Color
	Mantle   lipgloss.Color
	Overlay0 lipgloss.Color

	Name string
}

// Mocha is the Catppuccin Mocha palette.
func Mocha() *Theme {
	return &Theme{
		Name:     "Catppuccin Mocha",
		Mauve:    lipgloss.Color("#cba6f7"),
		Blue:     lipgloss.Color("#89b4fa"),
		Green:    lipgloss.Color("#a6e3a1"),
		Yellow:   lipgloss.Color("#f9e2af"),
		Red:      lipgloss.Color("#f38ba8"),
		Peach:    lipgloss.Color("#fab387"),
		Teal:     lipgloss.Color("#94e2d5"),
		Text:     lipgloss.Color("#cdd6f4"),
		Subtext:  lipgloss.Color("#a6adc8"),
		Base:     lipgloss.Color("#1e1e2e"),
		Mantle:   lipgloss.Color("#181825"),
		Overlay0: lipgloss.Color("#6c7086"),
	}
}

// Latte is the Catppuccin Latte palette for light terminals.
func Latte() *Theme {
	return &Theme{
		Name:     "Catppuccin Latte",
		Mauve:    lipgloss.Color("#8839ef"),
		Blue:     lipgloss.Color("#1e66f5"),
		Green:    lipgloss.Color("#40a02b"),
		Yellow:   lipgloss.Color("#df8e1d"),
		Red:      lipgloss.Color("#d20f39"),
		Peach:    lipgloss.Color("#fe640b"),
		Teal:     lipgloss.Color("#179299"),
		Text:     lipgloss.Color("#4c4f69"),
		Subtext:  lipgloss.Color("#6c6f85"),
		Base:     lipgloss.Color("#eff1f5"),
		Mantle:   lipgloss.Color("#e6e9ef"),
		Overlay0: lipgloss.Color("#9ca0b0"),
	}
}

// DefaultTheme picks Mocha on dark backgrounds and Latte otherwise.
func DefaultTheme() *Theme {
	if lipgloss.HasDarkBackground() {
		return Mocha()
	}
	return Latte()
}
