package views

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the application key bindings
type KeyMap struct {
	// Global
	Quit   key.Binding
	Help   key.Binding
	Escape key.Binding

	// Paging
	NextPage key.Binding
	PrevPage key.Binding

	// Styling
	FontUp     key.Binding
	FontDown   key.Binding
	FontFamily key.Binding
	Theme      key.Binding
	FullScreen key.Binding

	// Marks
	Bookmark key.Binding
	Select   key.Binding

	// Panels
	Bookmarks   key.Binding
	Search      key.Binding
	TOC         key.Binding
	Annotations key.Binding
}

// DefaultKeyMap returns the default vim-like key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("n", "l", "right", " ", "pgdown"),
			key.WithHelp("n/l/→", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("p", "h", "left", "pgup"),
			key.WithHelp("p/h/←", "previous page"),
		),
		FontUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "larger text"),
		),
		FontDown: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "smaller text"),
		),
		FontFamily: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "next font"),
		),
		Theme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "next theme"),
		),
		FullScreen: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "fullscreen"),
		),
		Bookmark: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "toggle bookmark"),
		),
		Select: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "select (1/2/3 highlight, n note)"),
		),
		Bookmarks: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "bookmarks"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		TOC: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "table of contents"),
		),
		Annotations: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "annotations"),
		),
	}
}
