package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Colors and styles of the active theme, set by ApplyTheme
var (
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Muted      lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color
	Border     lipgloss.Color

	Help          lipgloss.Style
	HelpKey       lipgloss.Style
	MutedText     lipgloss.Style
	SecondaryText lipgloss.Style
	ErrorStyle    lipgloss.Style
	SuccessStyle  lipgloss.Style

	InputField        lipgloss.Style
	InputFieldFocused lipgloss.Style

	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListItemDimmed   lipgloss.Style

	ReaderContent  lipgloss.Style
	ReaderHeader   lipgloss.Style
	ReaderProgress lipgloss.Style
	FooterBar      lipgloss.Style

	Dialog      lipgloss.Style
	DialogTitle lipgloss.Style

	BookTitle  lipgloss.Style
	BookAuthor lipgloss.Style
)

// Highlight returns the style for text under an annotation of the given color
func Highlight(color string) lipgloss.Style {
	if color == "" {
		return lipgloss.NewStyle().Reverse(true)
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color("#000000"))
}

// Page returns the style for book text in a reading theme
func Page(background, foreground string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(background)).
		Foreground(lipgloss.Color(foreground))
}

// TruncateText shortens s to at most width cells, adding an ellipsis
func TruncateText(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
