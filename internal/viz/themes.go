package viz

import "github.com/charmbracelet/lipgloss"

// Theme colours chart elements. Series cycle through Series in order.
type Theme struct {
	Name   string
	Series []lipgloss.Color
	Axis   lipgloss.Color
	Title  lipgloss.Color
	Muted  lipgloss.Color
	Border lipgloss.Color
}

var (
	ThemeCyberpunk = Theme{
		Name: "cyberpunk",
		Series: []lipgloss.Color{
			"#00ffff", "#ff00ff", "#ffff00", "#00ff88", "#ff8800", "#8888ff",
		},
		Axis:   "#888899",
		Title:  "#00ffff",
		Muted:  "#666688",
		Border: "#444466",
	}

	ThemeRetroGreen = Theme{
		Name:   "retro",
		Series: []lipgloss.Color{"#00ff00", "#88ff88", "#00cc00", "#ccffcc"},
		Axis:   "#00aa00",
		Title:  "#88ff88",
		Muted:  "#005500",
		Border: "#005500",
	}

	ThemeMinimal = Theme{
		Name:   "minimal",
		Series: []lipgloss.Color{"#ffffff", "#0088ff", "#ffaa00", "#cccccc"},
		Axis:   "#888888",
		Title:  "#ffffff",
		Muted:  "#888888",
		Border: "#555555",
	}

	ThemeOcean = Theme{
		Name:   "ocean",
		Series: []lipgloss.Color{"#00a8cc", "#ffd700", "#00ff88", "#0077be", "#e0f0ff"},
		Axis:   "#4488aa",
		Title:  "#e0f0ff",
		Muted:  "#4488aa",
		Border: "#0077be",
	}

	// Default theme
	CurrentTheme = ThemeCyberpunk

	Themes = []Theme{
		ThemeCyberpunk,
		ThemeRetroGreen,
		ThemeMinimal,
		ThemeOcean,
	}
)

// GetTheme returns a theme by name, falling back to the default.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeCyberpunk
}

// SetTheme changes the current theme
func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// SeriesColor picks the colour of the i-th series.
func (t Theme) SeriesColor(i int) lipgloss.Color {
	if len(t.Series) == 0 {
		return lipgloss.Color("")
	}
	return t.Series[i%len(t.Series)]
}
