package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/justyntemme/pagemark/internal/ui/views"
)

type helpSection struct {
	title    string
	bindings []key.Binding
}

// helpSections groups bindings for the help overlay
func helpSections(k views.KeyMap) []helpSection {
	return []helpSection{
		{"Reading", []key.Binding{k.NextPage, k.PrevPage, k.FullScreen}},
		{"Text", []key.Binding{k.FontUp, k.FontDown, k.FontFamily, k.Theme}},
		{"Marks", []key.Binding{k.Bookmark, k.Select}},
		{"Panels", []key.Binding{k.Bookmarks, k.Search, k.TOC, k.Annotations, k.Escape}},
		{"General", []key.Binding{k.Help, k.Quit}},
	}
}
