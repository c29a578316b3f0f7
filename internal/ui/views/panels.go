package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/pagemark/internal/session"
	"github.com/justyntemme/pagemark/internal/ui/styles"
	"github.com/justyntemme/pagemark/pkg/models"
)

// fetchAhead is how close to the end of the result list the cursor gets
// before the next page is requested
const fetchAhead = 3

// openPanel asks the session for p and schedules the settle step if needed
func (v *ReaderView) openPanel(p session.Panel) tea.Cmd {
	return v.afterTransition(v.session.OpenPanel(p))
}

// afterTransition presents a panel now or once the settle delay has passed
func (v *ReaderView) afterTransition(tr session.Transition) tea.Cmd {
	if tr.Settle {
		v.blurInput()
		seq := tr.Seq
		return tea.Tick(v.session.SettleDelay(), func(time.Time) tea.Msg {
			return panelSettledMsg{seq: seq}
		})
	}
	if tr.Present != session.PanelNone {
		return v.presentPanel(tr.Present)
	}
	return nil
}

// presentPanel prepares the view state for a panel that just became active
func (v *ReaderView) presentPanel(p session.Panel) tea.Cmd {
	v.cursor = 0
	v.blurInput()

	switch p {
	case session.PanelSearch:
		return v.focusInput(inputSearch, "Search in book", "")
	case session.PanelTableOfContents:
		current := v.engine.CurrentSection()
		for i, s := range v.session.FilterTOC("") {
			if s.ID == current {
				v.cursor = i
			}
		}
		return v.focusInput(inputTOC, "Filter sections", "")
	case session.PanelAnnotations:
		if v.session.PendingSelection() != nil {
			v.noteColor = 0
			return v.focusInput(inputNote, "Write a note", "")
		}
		if a := v.session.SelectedAnnotation(); a != nil {
			return v.focusInput(inputNote, "Write a note", a.Data.Observation)
		}
	}
	return nil
}

func (v *ReaderView) focusInput(target inputTarget, placeholder, value string) tea.Cmd {
	v.inputFor = target
	v.input.Placeholder = placeholder
	v.input.SetValue(value)
	v.input.CursorEnd()
	return v.input.Focus()
}

func (v *ReaderView) blurInput() {
	v.inputFor = inputNone
	v.input.Reset()
	v.input.Blur()
}

// closePanel dismisses the open panel, dropping any unsaved note
func (v *ReaderView) closePanel() {
	if v.session.ActivePanel() == session.PanelAnnotations {
		v.session.DismissAnnotationsPanel()
	} else {
		v.session.ClosePanel()
	}
	v.blurInput()
}

func (v *ReaderView) moveCursor(delta, n int) {
	v.cursor = min(max(v.cursor+delta, 0), max(n-1, 0))
}

// dialog centers content in a bordered box
func (v *ReaderView) dialog(title, body, help string, width int) string {
	var b strings.Builder
	b.WriteString(styles.DialogTitle.Render(title) + "\n")
	b.WriteString(body)
	b.WriteString("\n\n" + styles.Help.Render(help))

	box := styles.Dialog.Width(min(width, v.width-4)).Render(b.String())
	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, box)
}

// visibleRange returns the window of n list items that keeps the cursor on screen
func (v *ReaderView) visibleRange(n, reserved int) (int, int) {
	maxVisible := max(v.height-reserved, 1)
	offset := 0
	if v.cursor >= maxVisible {
		offset = v.cursor - maxVisible + 1
	}
	return offset, min(offset+maxVisible, n)
}

func (v *ReaderView) renderInput() string {
	style := styles.InputField
	if v.input.Focused() {
		style = styles.InputFieldFocused
	}
	return style.Render(v.input.View())
}

func listLine(selected bool, line string) string {
	if selected {
		return styles.ListItemSelected.Render("▸ "+line) + "\n"
	}
	return styles.ListItem.Render("  "+line) + "\n"
}

// updateBookmarks handles bookmarks list navigation
func (v *ReaderView) updateBookmarks(msg tea.KeyMsg) (View, tea.Cmd) {
	if v.inputFor == inputBookmarkNote {
		switch msg.String() {
		case "enter":
			if v.session.EditBookmarkNote(v.input.Value()) {
				v.status = "Bookmark note saved"
			}
			v.blurInput()
		case "esc":
			v.blurInput()
		default:
			var cmd tea.Cmd
			v.input, cmd = v.input.Update(msg)
			return v, cmd
		}
		return v, nil
	}

	bookmarks := v.session.Bookmarks()
	switch msg.String() {
	case "esc", "b", "q":
		v.closePanel()
	case "j", "down":
		v.moveCursor(1, len(bookmarks))
	case "k", "up":
		v.moveCursor(-1, len(bookmarks))
	case "g", "home":
		v.cursor = 0
	case "G", "end":
		v.moveCursor(len(bookmarks), len(bookmarks))
	case "enter":
		if v.cursor < len(bookmarks) {
			v.session.GoToBookmark(bookmarks[v.cursor])
			v.blurInput()
		}
	case "d", "x":
		if v.cursor < len(bookmarks) {
			v.session.DeleteBookmark(bookmarks[v.cursor])
			v.moveCursor(0, len(bookmarks)-1)
		}
	case "D":
		v.session.ClearBookmarks()
		v.cursor = 0
	case "e":
		for _, b := range bookmarks {
			if loc := v.engine.CurrentLocation(); loc != nil && b.Location.SameRange(*loc) {
				return v, v.focusInput(inputBookmarkNote, "Bookmark note", b.Note)
			}
		}
		v.status = "No bookmark on this page"
	}
	return v, nil
}

// renderBookmarks renders the bookmarks overlay
func (v *ReaderView) renderBookmarks() string {
	var b strings.Builder
	bookmarks := v.session.Bookmarks()

	if len(bookmarks) == 0 {
		b.WriteString(styles.MutedText.Render("\nNo bookmarks for this book.\n\nPress B to add a bookmark."))
	} else {
		b.WriteString("\n")
		from, to := v.visibleRange(len(bookmarks), 12)
		for i := from; i < to; i++ {
			bm := bookmarks[i]
			line := fmt.Sprintf("%s [%d/%d]", styles.TruncateText(bm.Section, 24), bm.Location.Position, bm.Location.Total)
			if bm.Text != "" {
				line += " " + styles.TruncateText(bm.Text, 30)
			}
			b.WriteString(listLine(i == v.cursor, line))
			if bm.Note != "" {
				b.WriteString(styles.MutedText.Render("    ✎ "+styles.TruncateText(bm.Note, 50)) + "\n")
			}
		}
	}

	if v.inputFor == inputBookmarkNote {
		b.WriteString("\n" + v.renderInput())
	}
	if v.status != "" {
		b.WriteString("\n" + styles.SecondaryText.Render(v.status))
	}

	return v.dialog("Bookmarks", b.String(), "j/k navigate • enter go • e note • d delete • D clear • esc close", 70)
}

// updateSearch handles the search panel
func (v *ReaderView) updateSearch(msg tea.KeyMsg) (View, tea.Cmd) {
	pager := v.session.Pager()

	if v.input.Focused() {
		switch msg.String() {
		case "esc":
			v.closePanel()
			return v, nil
		case "enter":
			req, ok := v.session.SubmitSearch(v.input.Value())
			if !ok {
				return v, nil
			}
			v.input.Blur()
			v.cursor = 0
			return v, tea.Batch(v.runSearch(req), v.spinner.Tick)
		case "down", "tab":
			if pager.Len() > 0 {
				v.input.Blur()
			}
			return v, nil
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	results := pager.Results()
	switch msg.String() {
	case "esc", "q":
		v.closePanel()
	case "/":
		return v, v.input.Focus()
	case "j", "down":
		v.moveCursor(1, len(results))
		return v, v.fetchMoreIfNeeded()
	case "k", "up":
		if v.cursor == 0 {
			return v, v.input.Focus()
		}
		v.moveCursor(-1, len(results))
	case "G", "end":
		v.moveCursor(len(results), len(results))
		return v, v.fetchMoreIfNeeded()
	case "enter":
		if v.cursor < len(results) {
			flash := v.session.SelectResult(results[v.cursor])
			v.blurInput()
			return v, tea.Tick(flash.After, func(time.Time) tea.Msg {
				return flashDoneMsg{flash: flash}
			})
		}
	}
	return v, nil
}

// fetchMoreIfNeeded requests the next result page once the cursor nears the end
func (v *ReaderView) fetchMoreIfNeeded() tea.Cmd {
	if v.cursor < v.session.Pager().Len()-fetchAhead {
		return nil
	}
	req, ok := v.session.FetchMoreResults()
	if !ok {
		return nil
	}
	return tea.Batch(v.runSearch(req), v.spinner.Tick)
}

// runSearch queries the engine for one page of results. The query is
// abandoned when the pager resets, e.g. when the panel closes.
func (v *ReaderView) runSearch(req session.Request) tea.Cmd {
	engine, parent := v.engine, v.session.Pager().Context()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, searchTimeout)
		defer cancel()
		res, err := engine.Search(ctx, req.Term, req.Page, req.PageSize)
		return searchResultsMsg{epoch: req.Epoch, results: res, err: err}
	}
}

func (v *ReaderView) handleSearchResults(msg searchResultsMsg) (View, tea.Cmd) {
	if v.session == nil {
		return v, nil
	}
	pager := v.session.Pager()
	if msg.err != nil {
		if pager.Fail(msg.epoch) {
			v.logger.Warn("search failed", "term", pager.Term(), "error", msg.err)
		}
		return v, nil
	}
	if !pager.Receive(msg.epoch, msg.results) {
		v.logger.Debug("dropped stale search results", "epoch", msg.epoch)
	}
	return v, nil
}

// renderSearch renders the search overlay
func (v *ReaderView) renderSearch() string {
	var b strings.Builder
	pager := v.session.Pager()
	results := pager.Results()

	b.WriteString(v.renderInput() + "\n")

	switch {
	case pager.Searching() && len(results) == 0:
		b.WriteString("\n" + v.spinner.View() + styles.MutedText.Render(" Searching..."))
	case pager.Term() == "":
		b.WriteString("\n" + styles.MutedText.Render("Type a word or phrase and press enter."))
	case len(results) == 0:
		b.WriteString("\n" + styles.MutedText.Render("No results for \""+pager.Term()+"\""))
	default:
		b.WriteString(styles.SecondaryText.Render(fmt.Sprintf("%d of %d results", len(results), pager.Total())) + "\n\n")
		from, to := v.visibleRange(len(results), 16)
		for i := from; i < to; i++ {
			r := results[i]
			line := styles.TruncateText(r.Excerpt, 56)
			if r.Section != "" {
				line = styles.TruncateText(r.Section, 16) + ": " + line
			}
			b.WriteString(listLine(!v.input.Focused() && i == v.cursor, line))
		}
		if pager.Searching() {
			b.WriteString(v.spinner.View() + styles.MutedText.Render(" Loading more..."))
		}
	}

	return v.dialog("Search", b.String(), "enter search/go • ↓ results • / edit • esc close", 80)
}

// updateTOC handles the table of contents panel. The filter input keeps
// focus, so only arrows and enter navigate.
func (v *ReaderView) updateTOC(msg tea.KeyMsg) (View, tea.Cmd) {
	sections := v.session.FilterTOC(v.input.Value())

	switch msg.String() {
	case "esc":
		v.closePanel()
	case "up", "ctrl+k":
		v.moveCursor(-1, len(sections))
	case "down", "ctrl+j":
		v.moveCursor(1, len(sections))
	case "enter":
		if v.cursor < len(sections) {
			v.session.GoToSection(sections[v.cursor])
			v.blurInput()
		}
	default:
		var cmd tea.Cmd
		before := v.input.Value()
		v.input, cmd = v.input.Update(msg)
		if v.input.Value() != before {
			v.cursor = 0
		}
		return v, cmd
	}
	return v, nil
}

// renderTOC renders the table of contents overlay
func (v *ReaderView) renderTOC() string {
	var b strings.Builder
	sections := v.session.FilterTOC(v.input.Value())
	current := v.engine.CurrentSection()

	b.WriteString(v.renderInput() + "\n\n")
	if len(sections) == 0 {
		b.WriteString(styles.MutedText.Render("No matching sections."))
	}

	from, to := v.visibleRange(len(sections), 14)
	for i := from; i < to; i++ {
		s := sections[i]
		line := strings.Repeat("  ", s.Level) + styles.TruncateText(s.Label, 50)
		switch {
		case i == v.cursor:
			b.WriteString(listLine(true, line))
		case s.ID == current:
			b.WriteString(styles.BookAuthor.Render("  "+line+" (current)") + "\n")
		default:
			b.WriteString(listLine(false, line))
		}
	}

	return v.dialog("Table of Contents", b.String(), "type to filter • ↑/↓ navigate • enter go • esc close", 70)
}

// updateAnnotations handles the annotations panel: composing a new note,
// editing a selected one, or browsing the list
func (v *ReaderView) updateAnnotations(msg tea.KeyMsg) (View, tea.Cmd) {
	if v.session.PendingSelection() != nil {
		switch msg.String() {
		case "esc":
			v.closePanel()
		case "tab":
			v.noteColor = (v.noteColor + 1) % len(session.HighlightColors)
		case "enter":
			if v.session.SaveNote(v.input.Value(), session.HighlightColors[v.noteColor]) {
				v.status = "Note saved"
			}
			v.blurInput()
		default:
			var cmd tea.Cmd
			v.input, cmd = v.input.Update(msg)
			return v, cmd
		}
		return v, nil
	}

	if selected := v.session.SelectedAnnotation(); selected != nil {
		switch msg.String() {
		case "esc":
			v.closePanel()
		case "enter":
			if v.session.UpdateNote(v.input.Value()) {
				v.status = "Note updated"
			}
			v.blurInput()
		case "ctrl+d":
			v.session.RemoveAnnotation(*selected)
			v.closePanel()
			v.status = "Annotation removed"
		default:
			var cmd tea.Cmd
			v.input, cmd = v.input.Update(msg)
			return v, cmd
		}
		return v, nil
	}

	annotations := v.session.Annotations()
	switch msg.String() {
	case "esc", "a", "q":
		v.closePanel()
	case "j", "down":
		v.moveCursor(1, len(annotations))
	case "k", "up":
		v.moveCursor(-1, len(annotations))
	case "enter":
		if v.cursor < len(annotations) {
			v.engine.GoToLocation(annotations[v.cursor].RangeRef)
			v.closePanel()
		}
	case "e":
		if v.cursor < len(annotations) {
			return v, v.afterTransition(v.session.OnAnnotationPressed(annotations[v.cursor]))
		}
	case "d", "x":
		if v.cursor < len(annotations) {
			v.session.RemoveAnnotation(annotations[v.cursor])
			v.moveCursor(0, len(annotations)-1)
		}
	}
	return v, nil
}

// renderAnnotations renders the annotations overlay
func (v *ReaderView) renderAnnotations() string {
	if sel := v.session.PendingSelection(); sel != nil {
		color := session.HighlightColors[v.noteColor]
		var b strings.Builder
		b.WriteString(styles.MutedText.Render("\""+styles.TruncateText(sel.Text, 120)+"\"") + "\n\n")
		b.WriteString(v.renderInput() + "\n")
		b.WriteString(styles.Help.Render("color ") + styles.Highlight(color).Render("    "))
		return v.dialog("New Note", b.String(), "enter save • tab color • esc discard", 70)
	}

	if a := v.session.SelectedAnnotation(); a != nil {
		var b strings.Builder
		b.WriteString(styles.MutedText.Render("\""+styles.TruncateText(a.DisplayText, 120)+"\"") + "\n\n")
		b.WriteString(v.renderInput())
		return v.dialog("Edit Note", b.String(), "enter save • ctrl+d delete • esc cancel", 70)
	}

	var b strings.Builder
	annotations := v.session.Annotations()
	if len(annotations) == 0 {
		b.WriteString(styles.MutedText.Render("\nNo annotations yet.\n\nPress v to select text on the page."))
	} else {
		b.WriteString("\n")
		from, to := v.visibleRange(len(annotations), 12)
		for i := from; i < to; i++ {
			b.WriteString(annotationLine(annotations[i], i == v.cursor))
		}
	}
	return v.dialog("Annotations", b.String(), "j/k navigate • enter go • e edit • d delete • esc close", 70)
}

func annotationLine(a models.Annotation, selected bool) string {
	swatch := styles.Highlight(a.Style.Color).Render("  ")
	line := swatch + " " + styles.TruncateText(a.DisplayText, 50)
	out := listLine(selected, line)
	if a.Data.Observation != "" {
		out += styles.MutedText.Render("    ✎ "+styles.TruncateText(a.Data.Observation, 50)) + "\n"
	}
	return out
}
