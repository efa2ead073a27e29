// Package tui provides the interactive terminal views of auditnest
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/tildaslashalef/auditnest/internal/audit"
)

// Theme represents the color theme for the TUI
type Theme struct {
	Primary     lipgloss.AdaptiveColor
	Secondary   lipgloss.AdaptiveColor
	Success     lipgloss.AdaptiveColor
	Warning     lipgloss.AdaptiveColor
	Error       lipgloss.AdaptiveColor
	Info        lipgloss.AdaptiveColor
	HighlightLo lipgloss.AdaptiveColor
	Border      lipgloss.AdaptiveColor
	Text        lipgloss.AdaptiveColor
	TextDim     lipgloss.AdaptiveColor
}

// GruvboxTheme creates a Gruvbox-inspired theme
func GruvboxTheme() Theme {
	return Theme{
		Primary:     lipgloss.AdaptiveColor{Light: "#79740e", Dark: "#b8bb26"},
		Secondary:   lipgloss.AdaptiveColor{Light: "#af3a03", Dark: "#fe8019"},
		Success:     lipgloss.AdaptiveColor{Light: "#98971a", Dark: "#b8bb26"},
		Warning:     lipgloss.AdaptiveColor{Light: "#d79921", Dark: "#fabd2f"},
		Error:       lipgloss.AdaptiveColor{Light: "#cc241d", Dark: "#fb4934"},
		Info:        lipgloss.AdaptiveColor{Light: "#458588", Dark: "#83a598"},
		HighlightLo: lipgloss.AdaptiveColor{Light: "#d5c4a1", Dark: "#3c3836"},
		Border:      lipgloss.AdaptiveColor{Light: "#d5c4a1", Dark: "#504945"},
		Text:        lipgloss.AdaptiveColor{Light: "#3c3836", Dark: "#fbf1c7"},
		TextDim:     lipgloss.AdaptiveColor{Light: "#7c6f64", Dark: "#a89984"},
	}
}

// Styles contains predefined styles for the TUI
type Styles struct {
	Title        lipgloss.Style
	Paragraph    lipgloss.Style
	Subtle       lipgloss.Style
	Cursor       lipgloss.Style
	Selected     lipgloss.Style
	StatusBar    lipgloss.Style
	Header       lipgloss.Style
	HighImpact   lipgloss.Style
	MediumImpact lipgloss.Style
	LowImpact    lipgloss.Style
}

// DefaultStyles returns default styles for the TUI
func DefaultStyles() Styles {
	theme := GruvboxTheme()

	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Paragraph: lipgloss.NewStyle().
			Foreground(theme.Text),

		Subtle: lipgloss.NewStyle().
			Foreground(theme.TextDim),

		Cursor: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Text).
			Background(theme.HighlightLo),

		StatusBar: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Text).
			Background(theme.HighlightLo).
			PaddingLeft(1).
			PaddingRight(1),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Text).
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(theme.Border).
			Padding(0, 2),

		HighImpact: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Error),

		MediumImpact: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Warning),

		LowImpact: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Info),
	}
}

// Impact returns the style for an impact level
func (s Styles) Impact(impact audit.Impact) lipgloss.Style {
	switch impact {
	case audit.ImpactHigh:
		return s.HighImpact
	case audit.ImpactMedium:
		return s.MediumImpact
	default:
		return s.LowImpact
	}
}
