package views

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bbrks/go-blurhash"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/pagemark/internal/config"
	"github.com/justyntemme/pagemark/internal/errors"
	"github.com/justyntemme/pagemark/internal/library"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/internal/metadata"
	"github.com/justyntemme/pagemark/internal/renderer"
	"github.com/justyntemme/pagemark/internal/session"
	"github.com/justyntemme/pagemark/internal/ui/styles"
	"github.com/justyntemme/pagemark/internal/ui/terminal"
	"github.com/justyntemme/pagemark/pkg/models"
)

const (
	searchTimeout   = 30 * time.Second
	metadataTimeout = 30 * time.Second

	// header, blank line and footer around the page
	chromeRows = 3
)

// inputTarget is what the shared text input is editing
type inputTarget int

const (
	inputNone inputTarget = iota
	inputSearch
	inputTOC
	inputNote
	inputBookmarkNote
)

// ReaderView displays one book and hosts its reading session
type ReaderView struct {
	store  BookStore
	config *config.Config
	logger *slog.Logger
	keys   KeyMap
	mode   terminal.TermImageMode

	openEngine func(path, mediaType string, opts renderer.Options) *renderer.Engine

	// Current book
	bookID  string
	book    *models.Book
	engine  *renderer.Engine
	session *session.Controller
	missing bool
	loading bool
	err     error

	// Line selection on the current page
	selecting bool
	selAnchor int
	selCursor int

	// Panels
	cursor    int
	input     textinput.Model
	inputFor  inputTarget
	noteColor int
	spinner   spinner.Model

	// Cover splash shown until the first key press
	splash string

	status string

	width  int
	height int
}

// NewReaderView creates a new reader view
func NewReaderView(store BookStore, cfg *config.Config, log *slog.Logger, mode terminal.TermImageMode) *ReaderView {
	if log == nil {
		log = logger.Discard()
	}

	input := textinput.New()
	input.CharLimit = 200
	input.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SecondaryText

	return &ReaderView{
		store:      store,
		config:     cfg,
		logger:     log,
		keys:       DefaultKeyMap(),
		mode:       mode,
		openEngine: renderer.Open,
		input:      input,
		spinner:    s,
		width:      80,
		height:     24,
	}
}

// SetBook sets the id of the book to open on Init
func (v *ReaderView) SetBook(bookID string) {
	v.bookID = bookID
	v.book = nil
	v.engine = nil
	v.session = nil
	v.missing = false
	v.err = nil
	v.splash = ""
	v.selecting = false
}

// Session returns the reading session, or nil before the book is opened
func (v *ReaderView) Session() *session.Controller {
	return v.session
}

// Engine returns the open renderer, or nil
func (v *ReaderView) Engine() *renderer.Engine {
	return v.engine
}

// Capturing reports whether keys should go to the view rather than global bindings
func (v *ReaderView) Capturing() bool {
	if v.input.Focused() || v.selecting {
		return true
	}
	return v.session != nil && v.session.VisiblePanel() != session.PanelNone
}

// Close releases the open book
func (v *ReaderView) Close() error {
	if v.engine == nil {
		return nil
	}
	return v.engine.Close()
}

// Message types
type bookOpenedMsg struct {
	book   *models.Book
	engine *renderer.Engine
	err    error
}

type engineReadyMsg struct {
	err error
}

type metadataSavedMsg struct {
	meta models.Metadata
	err  error
}

type splashMsg struct {
	art string
}

type panelSettledMsg struct {
	seq uint64
}

type searchResultsMsg struct {
	epoch   uint64
	results models.SearchResults
	err     error
}

type flashDoneMsg struct {
	flash session.Flash
}

// Init implements View
func (v *ReaderView) Init() tea.Cmd {
	if v.bookID == "" {
		return nil
	}
	v.loading = true
	return tea.Batch(v.openBook(), v.spinner.Tick)
}

// Update implements View - dispatches messages to specialized handlers
func (v *ReaderView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		v.status = "" // Clear transient messages on any key
		return v.handleKeyMsg(msg)
	case bookOpenedMsg:
		return v.handleBookOpened(msg)
	case engineReadyMsg:
		return v.handleEngineReady(msg)
	case metadataSavedMsg:
		return v.handleMetadataSaved(msg)
	case splashMsg:
		v.splash = msg.art
	case panelSettledMsg:
		if v.session == nil {
			break
		}
		// a panel settling under fullscreen is presented when it ends
		if p, ok := v.session.PanelSettled(msg.seq); ok && !v.session.IsFullScreen() {
			return v, v.presentPanel(p)
		}
	case searchResultsMsg:
		return v.handleSearchResults(msg)
	case flashDoneMsg:
		if v.session != nil {
			v.session.EndFlash(msg.flash)
		}
	case spinner.TickMsg:
		if v.loading || (v.session != nil && v.session.Pager().Searching()) {
			var cmd tea.Cmd
			v.spinner, cmd = v.spinner.Update(msg)
			return v, cmd
		}
	}
	return v, nil
}

// openBook looks the book up, marks it read and starts loading it
func (v *ReaderView) openBook() tea.Cmd {
	store, id, log, open := v.store, v.bookID, v.logger, v.openEngine
	opts := renderer.Options{
		Logger:   log,
		FontSize: v.config.Reading.FontSize,
		Width:    v.width,
		Height:   v.pageRows(),
	}
	return func() tea.Msg {
		ctx := context.Background()
		book, err := store.Find(ctx, id)
		if err != nil {
			return bookOpenedMsg{err: err}
		}
		if err := store.Touch(ctx, id); err != nil {
			log.Warn("failed to record last read", "book_id", id, "error", err)
		}
		return bookOpenedMsg{book: book, engine: open(book.URI, book.Type, opts)}
	}
}

func (v *ReaderView) handleBookOpened(msg bookOpenedMsg) (View, tea.Cmd) {
	if msg.err != nil {
		v.loading = false
		if errors.Is(msg.err, errors.ErrNotFound) {
			v.logger.Warn("book not found", "book_id", v.bookID)
			v.missing = true
			return v, nil
		}
		v.err = msg.err
		return v, SendError(msg.err)
	}

	v.book = msg.book
	v.engine = msg.engine
	v.session = session.New(v.engine, session.Options{
		Logger:        v.logger,
		FontSize:      v.config.Reading.FontSize,
		FontFamily:    v.config.Reading.FontFamily,
		Theme:         v.config.Reading.Theme,
		SettleDelay:   time.Duration(v.config.Reading.SettleDelay),
		FlashDuration: time.Duration(v.config.Reading.FlashDuration),
	})
	styles.SetCurrentTheme(v.session.Theme().Name)
	v.logger.Info("opening book", "book_id", v.book.ID, "type", v.book.Type)

	cmds := []tea.Cmd{waitReady(v.engine)}
	if v.book.Meta == nil {
		cmds = append(cmds, v.extractMetadata())
	}
	return v, tea.Batch(cmds...)
}

func waitReady(engine *renderer.Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.Ready()
		return engineReadyMsg{err: engine.Err()}
	}
}

func (v *ReaderView) handleEngineReady(msg engineReadyMsg) (View, tea.Cmd) {
	v.loading = false
	if msg.err != nil {
		v.err = msg.err
		v.logger.Error("failed to open book", "book_id", v.bookID, "error", msg.err)
		return v, SendError(msg.err)
	}
	v.engine.SetViewport(v.width, v.pageRows())
	return v, v.loadSplash()
}

// extractMetadata waits for the engine to expose metadata, then stores it
// along with the cover and its placeholder hash
func (v *ReaderView) extractMetadata() tea.Cmd {
	store, engine, book, log := v.store, v.engine, *v.book, v.logger
	coversDir := v.config.CoversDir()
	policy := metadata.Policy{
		Warmup:     time.Duration(v.config.Metadata.Warmup),
		MaxRetries: v.config.Metadata.MaxRetries,
		Interval:   time.Duration(v.config.Metadata.RetryInterval),
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
		defer cancel()

		res := metadata.Extract(ctx, engine, book.URI, policy, log)
		meta := res.Meta
		if len(res.Cover) > 0 {
			path, err := library.WriteCover(coversDir, book.ID, res.Cover, res.CoverType)
			if err != nil {
				log.Warn("failed to write cover", "book_id", book.ID, "error", err)
			} else {
				meta.Cover = path
			}
			if hash, err := library.CoverHash(res.Cover); err == nil {
				meta.CoverHash = hash
			} else {
				log.Debug("cover not hashable", "book_id", book.ID, "error", err)
			}
		}
		return metadataSavedMsg{meta: meta, err: store.SaveMetadata(ctx, book.ID, meta)}
	}
}

func (v *ReaderView) handleMetadataSaved(msg metadataSavedMsg) (View, tea.Cmd) {
	if msg.err != nil {
		v.logger.Warn("failed to save metadata", "book_id", v.bookID, "error", msg.err)
	}
	if v.book != nil {
		meta := msg.meta
		v.book.Meta = &meta
	}
	return v, nil
}

// loadSplash renders the cover for the opening splash. Terminals without
// an image protocol get the cover drawn in blocks, or its blurhash when
// the cover itself cannot be decoded.
func (v *ReaderView) loadSplash() tea.Cmd {
	engine, mode, log := v.engine, v.mode, v.logger
	cols, rows := v.splashSize()
	hash := ""
	if v.book.Meta != nil {
		hash = v.book.Meta.CoverHash
	}
	return func() tea.Msg {
		if data, _, err := engine.CoverImage(); err == nil {
			img, _, err := image.Decode(bytes.NewReader(data))
			if err == nil {
				art, err := terminal.RenderImage(img, mode, cols, rows)
				if err == nil {
					return splashMsg{art: art}
				}
				log.Debug("cover render failed", "mode", mode, "error", err)
			}
		}
		if hash == "" {
			return splashMsg{}
		}
		img, err := blurhash.Decode(hash, cols, rows*2, 1)
		if err != nil {
			log.Debug("invalid cover hash", "error", err)
			return splashMsg{}
		}
		return splashMsg{art: terminal.RenderBlocks(img, cols, rows)}
	}
}

func (v *ReaderView) splashSize() (int, int) {
	return max(min(v.width/2, 40), 8), max(v.height-8, 4)
}

// clearImages removes protocol images left behind by the splash
func clearImages(mode terminal.TermImageMode) tea.Cmd {
	seq := terminal.ClearImages(mode)
	if seq == "" {
		return nil
	}
	return func() tea.Msg {
		_, _ = os.Stdout.WriteString(seq)
		return nil
	}
}

// handleKeyMsg dispatches key messages to mode-specific handlers
func (v *ReaderView) handleKeyMsg(msg tea.KeyMsg) (View, tea.Cmd) {
	if v.splash != "" {
		v.splash = ""
		return v, clearImages(v.mode)
	}
	if v.session == nil || v.loading || v.err != nil {
		return v, nil
	}

	switch v.session.VisiblePanel() {
	case session.PanelBookmarks:
		return v.updateBookmarks(msg)
	case session.PanelSearch:
		return v.updateSearch(msg)
	case session.PanelTableOfContents:
		return v.updateTOC(msg)
	case session.PanelAnnotations:
		return v.updateAnnotations(msg)
	}
	if v.selecting {
		return v.updateSelection(msg)
	}
	return v.handleReaderKeyMsg(msg)
}

// handleReaderKeyMsg handles key presses on the page
func (v *ReaderView) handleReaderKeyMsg(msg tea.KeyMsg) (View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.NextPage):
		v.engine.NextPage()
	case key.Matches(msg, v.keys.PrevPage):
		v.engine.PrevPage()
	case key.Matches(msg, v.keys.FontUp):
		if v.session.IncreaseFontSize() {
			return v, v.prefsChanged()
		}
	case key.Matches(msg, v.keys.FontDown):
		if v.session.DecreaseFontSize() {
			return v, v.prefsChanged()
		}
	case key.Matches(msg, v.keys.FontFamily):
		v.status = "Font: " + v.session.CycleFontFamily()
		return v, v.prefsChanged()
	case key.Matches(msg, v.keys.Theme):
		theme := v.session.CycleTheme()
		styles.SetCurrentTheme(theme.Name)
		v.status = "Theme: " + theme.Name
		return v, v.prefsChanged()
	case key.Matches(msg, v.keys.FullScreen):
		return v, v.toggleFullScreen()
	case key.Matches(msg, v.keys.Escape):
		if v.session.IsFullScreen() {
			return v, v.toggleFullScreen()
		}
	case key.Matches(msg, v.keys.Bookmark):
		switch v.session.ToggleBookmark() {
		case session.BookmarkAdded:
			v.status = "Bookmark added"
		case session.BookmarkRemoved:
			v.status = "Bookmark removed"
		}
	case v.session.IsFullScreen():
		// panels and selection need the chrome
	case key.Matches(msg, v.keys.Select):
		if page, ok := v.engine.CurrentPage(); ok && len(page.Lines) > 0 {
			v.selecting = true
			v.selAnchor, v.selCursor = 0, 0
		}
	case key.Matches(msg, v.keys.Bookmarks):
		return v, v.openPanel(session.PanelBookmarks)
	case key.Matches(msg, v.keys.Search):
		return v, v.openPanel(session.PanelSearch)
	case key.Matches(msg, v.keys.TOC):
		return v, v.openPanel(session.PanelTableOfContents)
	case key.Matches(msg, v.keys.Annotations):
		return v, v.openPanel(session.PanelAnnotations)
	}
	return v, nil
}

// toggleFullScreen flips fullscreen and resizes the page. A panel kept
// open underneath is presented again on the way out.
func (v *ReaderView) toggleFullScreen() tea.Cmd {
	full := v.session.ToggleFullScreen()
	v.engine.SetViewport(v.width, v.pageRows())
	if !full {
		if p := v.session.VisiblePanel(); p != session.PanelNone {
			return v.presentPanel(p)
		}
	}
	return nil
}

// updateSelection handles keys while a line range is being selected
func (v *ReaderView) updateSelection(msg tea.KeyMsg) (View, tea.Cmd) {
	page, ok := v.engine.CurrentPage()
	if !ok {
		v.selecting = false
		return v, nil
	}

	switch msg.String() {
	case "esc", "v":
		v.selecting = false
	case "j", "down":
		if v.selCursor < len(page.Lines)-1 {
			v.selCursor++
		}
	case "k", "up":
		if v.selCursor > 0 {
			v.selCursor--
		}
	case "1", "2", "3":
		ref, _ := v.selection(page)
		color := session.HighlightColors[int(msg.String()[0]-'1')]
		v.session.InvokeHighlightAction(ref, color)
		v.selecting = false
	case "n":
		ref, text := v.selection(page)
		v.selecting = false
		return v, v.afterTransition(v.session.InvokeAddNote(ref, text))
	}
	return v, nil
}

// selectedLines returns the bounds of the selected lines, inclusive
func (v *ReaderView) selectedLines() (int, int) {
	return min(v.selAnchor, v.selCursor), max(v.selAnchor, v.selCursor)
}

// selection returns the ref and text covered by the selected lines
func (v *ReaderView) selection(page renderer.PageView) (string, string) {
	a, b := v.selectedLines()
	b = min(b, len(page.Lines)-1)
	lines := page.Lines[a : b+1]

	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Text != "" {
			texts = append(texts, l.Text)
		}
	}
	ref := renderer.Ref{Chapter: page.Chapter, Start: lines[0].Start, End: lines[len(lines)-1].End}
	return ref.String(), strings.Join(texts, " ")
}

// prefsChanged reports the current reading preferences to the app
func (v *ReaderView) prefsChanged() tea.Cmd {
	msg := PrefsChangedMsg{
		FontSize:   v.session.FontSize(),
		FontFamily: v.session.FontFamily(),
		Theme:      v.session.Theme().Name,
	}
	return func() tea.Msg { return msg }
}

// View implements View
func (v *ReaderView) View() string {
	if v.bookID == "" || v.missing {
		return ""
	}

	if v.loading {
		return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center,
			v.spinner.View()+styles.MutedText.Render(" Opening book..."))
	}

	if v.err != nil {
		return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center,
			styles.ErrorStyle.Render("Error: "+v.err.Error()))
	}

	if v.session == nil {
		return ""
	}
	if v.splash != "" {
		return v.renderSplash()
	}

	switch v.session.VisiblePanel() {
	case session.PanelBookmarks:
		return v.renderBookmarks()
	case session.PanelSearch:
		return v.renderSearch()
	case session.PanelTableOfContents:
		return v.renderTOC()
	case session.PanelAnnotations:
		return v.renderAnnotations()
	}

	page, ok := v.engine.CurrentPage()
	if !ok {
		return ""
	}
	if v.session.IsFullScreen() {
		return v.renderPage(page)
	}

	var b strings.Builder
	b.WriteString(v.renderHeader(page) + "\n")
	b.WriteString(v.renderPage(page))
	b.WriteString("\n" + v.renderFooter(page))
	return b.String()
}

// SetSize implements View
func (v *ReaderView) SetSize(width, height int) {
	v.width = width
	v.height = height
	if v.engine != nil && v.session != nil {
		v.engine.SetViewport(width, v.pageRows())
	}
}

// pageRows is the number of text rows available for the page
func (v *ReaderView) pageRows() int {
	if v.session != nil && v.session.IsFullScreen() {
		return max(v.height, 1)
	}
	return max(v.height-chromeRows, 1)
}

func (v *ReaderView) renderSplash() string {
	var b strings.Builder
	b.WriteString(v.splash + "\n\n")
	b.WriteString(styles.BookTitle.Render(v.book.DisplayTitle()) + "\n")
	if v.book.Meta != nil && v.book.Meta.Author != "" {
		b.WriteString(styles.BookAuthor.Render(v.book.Meta.Author) + "\n")
	}
	b.WriteString("\n" + styles.Help.Render("press any key to start reading"))
	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, b.String())
}

// renderHeader renders the reader header with proper truncation
func (v *ReaderView) renderHeader(page renderer.PageView) string {
	title := styles.TruncateText(v.book.DisplayTitle(), max(v.width/3, 10))
	left := styles.ReaderHeader.Render(" "+title+" ") +
		styles.Help.Render(" "+styles.TruncateText(page.ChapterTitle, 24)+" ")

	mark := ""
	if v.session.IsBookmarked() {
		mark = styles.SecondaryText.Render("★ ")
	}
	progress := float64(page.Position) / float64(max(page.Total, 1))
	right := mark + renderProgressBar(12, progress) +
		styles.ReaderProgress.Render(fmt.Sprintf(" %d%%", int(progress*100)))

	gap := max(v.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return left + strings.Repeat(" ", gap) + right
}

// renderPage renders the page lines with annotations and the selection applied
func (v *ReaderView) renderPage(page renderer.PageView) string {
	_, _, theme := v.engine.Style()
	text := lipgloss.NewStyle()
	if theme.Background != "" {
		text = styles.Page(theme.Background, theme.Foreground)
	}
	annotations := v.engine.Annotations()
	selA, selB := v.selectedLines()

	rows := v.pageRows()
	lines := make([]string, 0, rows)
	for i, line := range page.Lines {
		var rendered string
		if v.selecting && i >= selA && i <= selB {
			rendered = styles.Highlight("").Render(line.Text)
		} else {
			rendered = decorateLine(page.Chapter, line, annotations, text)
		}
		lines = append(lines, styles.ReaderContent.Render(rendered))
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// span is a styled byte range within one line
type span struct {
	start, end int
	style      lipgloss.Style
}

// decorateLine styles the parts of line covered by annotations. A note
// marker whose range ends on the line adds a pencil after it.
func decorateLine(chapter int, line renderer.Line, annotations []models.Annotation, plain lipgloss.Style) string {
	var spans []span
	marked := false
	for _, a := range annotations {
		r, ok := renderer.ParseRef(a.RangeRef)
		if !ok || r.Chapter != chapter {
			continue
		}
		if a.Kind == models.AnnotationMark {
			if r.End > line.Start && r.End <= line.End {
				marked = true
			}
			continue
		}
		start, end := max(r.Start, line.Start), min(r.End, line.End)
		if start >= end {
			continue
		}
		style := styles.Highlight(a.Style.Color)
		if a.IsTemporary() {
			style = style.Underline(true)
		}
		spans = append(spans, span{start: start - line.Start, end: end - line.Start, style: style})
	}

	var b strings.Builder
	pos := 0
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for _, s := range spans {
		start := max(s.start, pos)
		if start >= s.end {
			continue
		}
		if start > pos {
			b.WriteString(plain.Render(line.Text[pos:start]))
		}
		b.WriteString(s.style.Render(line.Text[start:s.end]))
		pos = s.end
	}
	if pos < len(line.Text) {
		b.WriteString(plain.Render(line.Text[pos:]))
	}
	if marked {
		b.WriteString(" ✎")
	}
	return b.String()
}

// renderProgressBar renders a visual progress bar using Unicode block characters
// width is the total character width, progress is 0.0-1.0
func renderProgressBar(width int, progress float64) string {
	width = max(width, 3)
	progress = min(max(progress, 0), 1)

	const (
		empty    = "░"
		filled   = "█"
		partials = "▏▎▍▌▋▊▉" // 1/8 to 7/8 filled
	)

	filledWidth := progress * float64(width)
	fullBlocks := int(filledWidth)
	remainder := filledWidth - float64(fullBlocks)

	var bar strings.Builder
	for i := 0; i < fullBlocks && i < width; i++ {
		bar.WriteString(filled)
	}

	if fullBlocks < width && remainder > 0 {
		if partialIndex := min(int(remainder*8), 7); partialIndex > 0 {
			bar.WriteRune([]rune(partials)[partialIndex-1])
			fullBlocks++
		}
	}

	for i := fullBlocks; i < width; i++ {
		bar.WriteString(empty)
	}
	return bar.String()
}

// renderFooter renders the reader footer with consistent styling
func (v *ReaderView) renderFooter(page renderer.PageView) string {
	if v.status != "" {
		return styles.FooterBar.Width(v.width).Render(styles.SecondaryText.Render(v.status))
	}

	if v.selecting {
		help := []string{
			styles.HelpKey.Render("j/k") + styles.Help.Render(" extend"),
			styles.HelpKey.Render("1/2/3") + styles.Help.Render(" highlight"),
			styles.HelpKey.Render("n") + styles.Help.Render(" note"),
			styles.HelpKey.Render("esc") + styles.Help.Render(" cancel"),
		}
		return styles.FooterBar.Width(v.width).Render(strings.Join(help, "  "))
	}

	position := fmt.Sprintf("%d/%d", page.Position, page.Total)
	prefs := fmt.Sprintf("%dpt %s · %s", v.session.FontSize(), v.session.FontFamily(), v.session.Theme().Name)
	help := []string{
		styles.BookAuthor.Render(position),
		styles.Help.Render(prefs),
		styles.HelpKey.Render("v") + styles.Help.Render(" select"),
		styles.HelpKey.Render("?") + styles.Help.Render(" help"),
	}
	return styles.FooterBar.Width(v.width).Render(strings.Join(help, "  "))
}
