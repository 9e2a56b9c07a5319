package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the lipgloss styles for the board.
type Theme struct {
	Header       lipgloss.Style
	StatsBar     lipgloss.Style
	Column       lipgloss.Style
	FocusColumn  lipgloss.Style
	ColumnTitle  lipgloss.Style
	Card         lipgloss.Style
	SelectedCard lipgloss.Style
	Unread       lipgloss.Style
	Dim          lipgloss.Style
	Error        lipgloss.Style
	Status       lipgloss.Style
}

// columnColors maps each urgency column to its accent color, darkest
// red for urgent down to green for processed.
var columnColors = map[string]lipgloss.Color{
	"urgent":    lipgloss.Color("196"),
	"high":      lipgloss.Color("208"),
	"medium":    lipgloss.Color("220"),
	"low":       lipgloss.Color("39"),
	"processed": lipgloss.Color("77"),
}

// DarkTheme returns the default dark palette.
func DarkTheme() Theme {
	return Theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("57")).
			Padding(0, 1),
		StatsBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Padding(0, 1),
		Column: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		FocusColumn: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1),
		ColumnTitle: lipgloss.NewStyle().
			Bold(true),
		Card: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")),
		SelectedCard: lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("237")),
		Unread: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")),
	}
}

// LightTheme returns the light palette.
func LightTheme() Theme {
	t := DarkTheme()
	t.Card = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	t.SelectedCard = lipgloss.NewStyle().
		Foreground(lipgloss.Color("16")).
		Background(lipgloss.Color("253"))
	t.Unread = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("16"))
	t.Dim = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	return t
}

// ThemeByName resolves a configured theme name.
func ThemeByName(name string) Theme {
	if name == "light" {
		return LightTheme()
	}
	return DarkTheme()
}
