package styles

import "github.com/charmbracelet/lipgloss"

// Theme represents a color scheme for the application chrome and page
type Theme struct {
	Name        string
	Description string

	// Core colors
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color

	// Semantic colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color

	// UI element colors
	Border        lipgloss.Color
	Selection     lipgloss.Color
	SelectionText lipgloss.Color
}

// Built-in themes. Names match the reading themes so that cycling the page
// theme restyles the chrome with it.
var (
	// DarkTheme is the default theme
	DarkTheme = Theme{
		Name:          "dark",
		Description:   "Dark theme (default)",
		Primary:       lipgloss.Color("#BB86FC"),
		Secondary:     lipgloss.Color("#03DAC6"),
		Background:    lipgloss.Color("#121212"),
		Foreground:    lipgloss.Color("#E8E8E8"),
		Success:       lipgloss.Color("#23CE6B"),
		Warning:       lipgloss.Color("#CBA135"),
		Error:         lipgloss.Color("#C20114"),
		Muted:         lipgloss.Color("#6B7280"),
		Border:        lipgloss.Color("#1E1E1E"),
		Selection:     lipgloss.Color("#BB86FC"),
		SelectionText: lipgloss.Color("#121212"),
	}

	// LightTheme is a light color scheme
	LightTheme = Theme{
		Name:          "light",
		Description:   "Light theme",
		Primary:       lipgloss.Color("#6200EE"),
		Secondary:     lipgloss.Color("#018786"),
		Background:    lipgloss.Color("#FAFAFA"),
		Foreground:    lipgloss.Color("#1C1C1E"),
		Success:       lipgloss.Color("#1B9E52"),
		Warning:       lipgloss.Color("#A07E22"),
		Error:         lipgloss.Color("#C20114"),
		Muted:         lipgloss.Color("#9CA3AF"),
		Border:        lipgloss.Color("#E5E7EB"),
		Selection:     lipgloss.Color("#6200EE"),
		SelectionText: lipgloss.Color("#FFFFFF"),
	}

	// SepiaTheme is a warm paper-like scheme
	SepiaTheme = Theme{
		Name:          "sepia",
		Description:   "Sepia theme",
		Primary:       lipgloss.Color("#8B5E34"),
		Secondary:     lipgloss.Color("#A0522D"),
		Background:    lipgloss.Color("#F4ECD8"),
		Foreground:    lipgloss.Color("#5B4636"),
		Success:       lipgloss.Color("#4F7942"),
		Warning:       lipgloss.Color("#B8860B"),
		Error:         lipgloss.Color("#A52A2A"),
		Muted:         lipgloss.Color("#A89F91"),
		Border:        lipgloss.Color("#D8CBB0"),
		Selection:     lipgloss.Color("#8B5E34"),
		SelectionText: lipgloss.Color("#F4ECD8"),
	}

	// BuiltinThemes is a list of all available built-in themes
	BuiltinThemes = []Theme{
		DarkTheme,
		LightTheme,
		SepiaTheme,
	}

	currentTheme = DarkTheme
)

// GetTheme returns a theme by name, or the default theme if not found
func GetTheme(name string) Theme {
	for _, t := range BuiltinThemes {
		if t.Name == name {
			return t
		}
	}
	return DarkTheme
}

// CurrentTheme returns the currently active theme
func CurrentTheme() Theme {
	return currentTheme
}

// SetCurrentTheme sets the active theme by name
func SetCurrentTheme(name string) {
	currentTheme = GetTheme(name)
	ApplyTheme(currentTheme)
}

// ApplyTheme updates all global styles to use the given theme's colors
func ApplyTheme(theme Theme) {
	Primary = theme.Primary
	Secondary = theme.Secondary
	Success = theme.Success
	Warning = theme.Warning
	Error = theme.Error
	Muted = theme.Muted
	Background = theme.Background
	Foreground = theme.Foreground
	Border = theme.Border

	Help = lipgloss.NewStyle().
		Foreground(theme.Muted)

	HelpKey = lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true)

	MutedText = lipgloss.NewStyle().
		Foreground(theme.Muted)

	SecondaryText = lipgloss.NewStyle().
		Foreground(theme.Secondary)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true).
		Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
		Foreground(theme.Success).
		Bold(true).
		Padding(0, 1)

	InputField = lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)

	InputFieldFocused = InputField.
		BorderForeground(theme.Primary)

	ListItem = lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Padding(0, 2)

	ListItemSelected = lipgloss.NewStyle().
		Foreground(theme.SelectionText).
		Background(theme.Selection).
		Padding(0, 2).
		Bold(true)

	ListItemDimmed = lipgloss.NewStyle().
		Foreground(theme.Muted).
		Padding(0, 2)

	ReaderContent = lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Padding(0, 2)

	ReaderHeader = lipgloss.NewStyle().
		Foreground(theme.SelectionText).
		Background(theme.Primary).
		Padding(0, 1).
		Bold(true)

	ReaderProgress = lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Align(lipgloss.Right)

	FooterBar = lipgloss.NewStyle().
		Foreground(theme.Muted).
		Padding(0, 1)

	Dialog = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary).
		Padding(1, 2)

	DialogTitle = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		MarginBottom(1)

	BookTitle = lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Bold(true)

	BookAuthor = lipgloss.NewStyle().
		Foreground(theme.Secondary)
}

func init() {
	ApplyTheme(DarkTheme)
}
