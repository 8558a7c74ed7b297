package viz

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/events"
)

// Theme defines color scheme for the TUI
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Warning lipgloss.Color

	Bodies map[body.Type]lipgloss.Color
	Events map[events.Kind]lipgloss.Color
}

func (t Theme) Body(bt body.Type) lipgloss.Color {
	if c, ok := t.Bodies[bt]; ok {
		return c
	}
	return t.Text
}

func (t Theme) Event(k events.Kind) lipgloss.Color {
	if c, ok := t.Events[k]; ok {
		return c
	}
	return t.Accent
}

var (
	ThemeCyberpunk = Theme{
		Name:    "cyberpunk",
		Primary: lipgloss.Color("#ff00ff"),
		Accent:  lipgloss.Color("#ffff00"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#666666"),
		Warning: lipgloss.Color("#ff8800"),
		Bodies: map[body.Type]lipgloss.Color{
			body.Planet:                lipgloss.Color("#00ffff"),
			body.GasGiant:              lipgloss.Color("#ff9966"),
			body.Asteroid:              lipgloss.Color("#888888"),
			body.Comet:                 lipgloss.Color("#aaddff"),
			body.Debris:                lipgloss.Color("#666666"),
			body.Star:                  lipgloss.Color("#ffee55"),
			body.NeutronStar:           lipgloss.Color("#66ccff"),
			body.WhiteDwarf:            lipgloss.Color("#eeeeff"),
			body.BlackHole:             lipgloss.Color("#ff00ff"),
			body.AccretionDiskParticle: lipgloss.Color("#ff6600"),
		},
		Events: map[events.Kind]lipgloss.Color{
			events.Merge:      lipgloss.Color("#ffffff"),
			events.Kilonova:   lipgloss.Color("#ffd700"),
			events.Absorption: lipgloss.Color("#ff00ff"),
			events.Tidal:      lipgloss.Color("#ff4444"),
			events.Impact:     lipgloss.Color("#ff8800"),
		},
	}

	ThemeRetroGreen = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Accent:  lipgloss.Color("#88ff88"),
		Text:    lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#005500"),
		Warning: lipgloss.Color("#ffff00"),
		Bodies: map[body.Type]lipgloss.Color{
			body.Star:      lipgloss.Color("#ccffcc"),
			body.BlackHole: lipgloss.Color("#88ff88"),
			body.Debris:    lipgloss.Color("#007700"),
		},
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Warning: lipgloss.Color("#ffaa00"),
	}

	Themes = []Theme{
		ThemeCyberpunk,
		ThemeRetroGreen,
		ThemeMinimal,
	}
)

// GetTheme returns a theme by name
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeCyberpunk
}

// ThemeNames returns list of available theme names
func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// NextTheme returns the theme after name, wrapping around.
func NextTheme(name string) Theme {
	for i, t := range Themes {
		if t.Name == name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}
