package cli

import "github.com/charmbracelet/lipgloss"

// Palette is the small set of styles used by help and status output.
type Palette struct {
	Red    lipgloss.TerminalColor
	Orange lipgloss.TerminalColor
	Green  lipgloss.TerminalColor
	Cyan   lipgloss.TerminalColor
	Blue   lipgloss.TerminalColor
	Violet lipgloss.TerminalColor

	Muted  lipgloss.Style
	Italic lipgloss.Style
	Bold   lipgloss.Style
}

// DefaultPalette adapts to light and dark terminal backgrounds.
var DefaultPalette = newPalette()

func newPalette() *Palette {
	muted := lipgloss.AdaptiveColor{Light: "#8A8980", Dark: "#727169"}
	return &Palette{
		Red:    lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"},
		Orange: lipgloss.AdaptiveColor{Light: "#CC6B4E", Dark: "#FFA066"},
		Green:  lipgloss.AdaptiveColor{Light: "#6F894E", Dark: "#98BB6C"},
		Cyan:   lipgloss.AdaptiveColor{Light: "#597B75", Dark: "#7AA89F"},
		Blue:   lipgloss.AdaptiveColor{Light: "#4F7CAC", Dark: "#7FB4CA"},
		Violet: lipgloss.AdaptiveColor{Light: "#624C83", Dark: "#957FB8"},
		Muted:  lipgloss.NewStyle().Foreground(muted),
		Italic: lipgloss.NewStyle().Italic(true),
		Bold:   lipgloss.NewStyle().Bold(true),
	}
}
