// Package renderer paginates book content for the terminal and owns the
// per-session annotation and bookmark sets.
//
// The Engine loads its Source asynchronously. Until loading finishes,
// location and metadata queries return nil and navigation is ignored;
// style changes are recorded and applied once the layout exists.
package renderer

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/justyntemme/pagemark/internal/id"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/pkg/models"
)

// Options configures a new Engine
type Options struct {
	Logger   *slog.Logger
	FontSize int
	Width    int
	Height   int
}

// PageView is the content of the current page
type PageView struct {
	Chapter      int
	ChapterTitle string
	Lines        []Line
	Position     int
	Total        int
}

// Engine is the in-process renderer for one open book
type Engine struct {
	logger *slog.Logger
	ready  chan struct{}

	mu       sync.Mutex
	loaded   bool
	err      error
	src      Source
	meta     models.Metadata
	contents []TOCEntry
	texts    []string
	pages    []page
	current  int

	fontSize   int
	fontFamily string
	theme      models.Theme
	width      int
	height     int

	annotations []models.Annotation
	bookmarks   []models.Bookmark

	searchCache searchCache
}

func newEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.FontSize <= 0 {
		opts.FontSize = baseFontSize
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 24
	}
	return &Engine{
		logger:   opts.Logger,
		ready:    make(chan struct{}),
		fontSize: opts.FontSize,
		width:    opts.Width,
		height:   opts.Height,
	}
}

// Open starts loading the book at path in the background
func Open(path, mediaType string, opts Options) *Engine {
	e := newEngine(opts)
	go func() {
		src, err := OpenSource(path, mediaType)
		if err != nil {
			e.fail(err)
			return
		}
		e.load(src)
	}()
	return e
}

// NewFromSource creates an engine and loads src synchronously
func NewFromSource(src Source, opts Options) *Engine {
	e := newEngine(opts)
	e.load(src)
	return e
}

// load reads every chapter and builds the initial layout
func (e *Engine) load(src Source) {
	texts := make([]string, src.ChapterCount())
	for i := range texts {
		text, err := src.ChapterText(i)
		if err != nil {
			// A broken chapter should not make the rest of the book unreadable.
			e.logger.Warn("chapter text unavailable", "chapter", i, "error", err)
			continue
		}
		texts[i] = text
	}

	e.mu.Lock()
	e.src = src
	e.meta = src.Metadata()
	e.contents = src.Contents()
	e.texts = texts
	e.relayout()
	e.loaded = true
	e.mu.Unlock()

	e.logger.Debug("book loaded", "chapters", len(texts), "pages", len(e.pages))
	close(e.ready)
}

func (e *Engine) fail(err error) {
	e.logger.Error("book failed to load", "error", err)
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
	close(e.ready)
}

// Ready is closed once loading has finished, successfully or not
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Err returns the load error, if any
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Close releases the underlying source
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == nil {
		return nil
	}
	return e.src.Close()
}

// relayout re-paginates, keeping the reader on the same text. Caller holds mu.
func (e *Engine) relayout() {
	var anchor *Ref
	if e.current < len(e.pages) {
		p := e.pages[e.current]
		anchor = &Ref{Chapter: p.chapter, Start: p.start, End: p.start}
	}

	e.pages = paginate(e.texts, columnsFor(e.width, e.fontSize), e.height)
	e.current = 0
	if anchor != nil {
		e.current = e.pageFor(*anchor)
	}
}

// pageFor returns the index of the page containing ref.Start. Caller holds mu.
func (e *Engine) pageFor(ref Ref) int {
	idx := -1
	for i, p := range e.pages {
		if p.chapter < ref.Chapter {
			continue
		}
		if p.chapter > ref.Chapter {
			break
		}
		if idx < 0 || p.start <= ref.Start {
			idx = i
		}
	}
	if idx < 0 {
		return e.current
	}
	return idx
}

// locationAt builds the Location for a page index. Caller holds mu.
func (e *Engine) locationAt(i int) models.Location {
	p := e.pages[i]
	return models.Location{
		Start:    Ref{Chapter: p.chapter, Start: p.start, End: p.start}.String(),
		End:      Ref{Chapter: p.chapter, Start: p.end, End: p.end}.String(),
		Position: i + 1,
		Total:    len(e.pages),
	}
}

// chapterTitle returns the first TOC label for a chapter. Caller holds mu.
func (e *Engine) chapterTitle(chapter int) string {
	return titleOf(e.contents, chapter)
}

func titleOf(contents []TOCEntry, chapter int) string {
	for _, c := range contents {
		if c.Chapter == chapter {
			return c.Label
		}
	}
	return ""
}

// textFor returns the text a ref covers. Caller holds mu.
func (e *Engine) textFor(ref Ref) string {
	if ref.Chapter < 0 || ref.Chapter >= len(e.texts) {
		return ""
	}
	text := e.texts[ref.Chapter]
	if ref.End > len(text) {
		return ""
	}
	return text[ref.Start:ref.End]
}

// CurrentLocation returns the current location, or nil before the book is ready
func (e *Engine) CurrentLocation() *models.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded || len(e.pages) == 0 {
		return nil
	}
	loc := e.locationAt(e.current)
	return &loc
}

// GoToLocation moves to a range ref or a 1-based position token.
// Unknown references are ignored.
func (e *Engine) GoToLocation(target string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded || len(e.pages) == 0 {
		return
	}

	if pos, err := strconv.Atoi(target); err == nil {
		if pos >= 1 && pos <= len(e.pages) {
			e.current = pos - 1
		}
		return
	}

	ref, ok := ParseRef(target)
	if !ok || ref.Chapter >= len(e.texts) {
		e.logger.Debug("ignoring invalid location", "target", target)
		return
	}
	e.current = e.pageFor(ref)
}

// NextPage advances one page; it reports whether the position changed
func (e *Engine) NextPage() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current+1 >= len(e.pages) {
		return false
	}
	e.current++
	return true
}

// PrevPage goes back one page; it reports whether the position changed
func (e *Engine) PrevPage() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == 0 {
		return false
	}
	e.current--
	return true
}

// CurrentPage returns the lines of the current page
func (e *Engine) CurrentPage() (PageView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded || len(e.pages) == 0 {
		return PageView{}, false
	}
	p := e.pages[e.current]
	return PageView{
		Chapter:      p.chapter,
		ChapterTitle: e.chapterTitle(p.chapter),
		Lines:        append([]Line(nil), p.lines...),
		Position:     e.current + 1,
		Total:        len(e.pages),
	}, true
}

// SetViewport updates the viewport size and re-paginates
func (e *Engine) SetViewport(width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = max(1, height)
	if e.loaded {
		e.relayout()
	}
}

// Meta returns the book metadata, or nil until the book has loaded
func (e *Engine) Meta() *models.Metadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil
	}
	meta := e.meta
	return &meta
}

// CoverImage returns the raw cover image of the book
func (e *Engine) CoverImage() ([]byte, string, error) {
	e.mu.Lock()
	src := e.src
	e.mu.Unlock()
	if src == nil {
		return nil, "", ErrNoCover
	}
	return src.Cover()
}

// TOC returns the table of contents
func (e *Engine) TOC() []models.Section {
	e.mu.Lock()
	defer e.mu.Unlock()
	sections := make([]models.Section, 0, len(e.contents))
	for i, c := range e.contents {
		sections = append(sections, models.Section{
			ID:    fmt.Sprintf("section-%d", i),
			Href:  Ref{Chapter: c.Chapter}.String(),
			Label: c.Label,
			Level: c.Level,
		})
	}
	return sections
}

// CurrentSection returns the id of the last TOC entry at or before the current chapter
func (e *Engine) CurrentSection() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded || len(e.pages) == 0 {
		return ""
	}
	chapter := e.pages[e.current].chapter
	current := ""
	for i, c := range e.contents {
		if c.Chapter <= chapter {
			current = fmt.Sprintf("section-%d", i)
		}
	}
	return current
}

// ChangeFontSize records the font size and re-paginates when loaded
func (e *Engine) ChangeFontSize(size int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if size <= 0 {
		return
	}
	e.fontSize = size
	if e.loaded {
		e.relayout()
	}
}

// ChangeFontFamily records the font family
func (e *Engine) ChangeFontFamily(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fontFamily = name
}

// ChangeTheme records the content theme
func (e *Engine) ChangeTheme(theme models.Theme) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.theme = theme
}

// Style returns the currently applied font size, family and theme
func (e *Engine) Style() (int, string, models.Theme) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fontSize, e.fontFamily, e.theme
}

// AddAnnotation adds an annotation over ref and returns it
func (e *Engine) AddAnnotation(kind models.AnnotationKind, ref string, data *models.AnnotationData, style *models.AnnotationStyle) models.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := models.Annotation{RangeRef: ref, Kind: kind}
	if data != nil {
		a.Data = *data
	}
	if style != nil {
		a.Style = *style
	}
	if r, ok := ParseRef(ref); ok {
		a.DisplayText = e.textFor(r)
	}
	e.annotations = append(e.annotations, a)
	return a
}

// RemoveAnnotation removes the first annotation equal to a
func (e *Engine) RemoveAnnotation(a models.Annotation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.annotations {
		if existing == a {
			e.annotations = append(e.annotations[:i], e.annotations[i+1:]...)
			return
		}
	}
}

// RemoveAnnotationByCfi removes every annotation over ref
func (e *Engine) RemoveAnnotationByCfi(ref string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.annotations[:0]
	for _, a := range e.annotations {
		if a.RangeRef != ref {
			kept = append(kept, a)
		}
	}
	e.annotations = kept
}

// Annotations returns a copy of the annotation set
func (e *Engine) Annotations() []models.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Annotation(nil), e.annotations...)
}

// Bookmarks returns a copy of the bookmark set
func (e *Engine) Bookmarks() []models.Bookmark {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Bookmark(nil), e.bookmarks...)
}

// AddBookmark bookmarks loc and returns the new bookmark
func (e *Engine) AddBookmark(loc models.Location) models.Bookmark {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := models.Bookmark{ID: id.NewBookmark(), Location: loc}
	if start, ok := ParseRef(loc.Start); ok {
		b.Section = e.chapterTitle(start.Chapter)
		if loc.Position >= 1 && loc.Position <= len(e.pages) {
			if lines := e.pages[loc.Position-1].lines; len(lines) > 0 {
				b.Text = lines[0].Text
			}
		}
	}
	e.bookmarks = append(e.bookmarks, b)
	return b
}

// RemoveBookmark removes the bookmark with b's id
func (e *Engine) RemoveBookmark(b models.Bookmark) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.bookmarks {
		if existing.ID == b.ID {
			e.bookmarks = append(e.bookmarks[:i], e.bookmarks[i+1:]...)
			return
		}
	}
}

// RemoveBookmarks removes every bookmark
func (e *Engine) RemoveBookmarks() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bookmarks = nil
}

// UpdateBookmark replaces the note of the bookmark with the given id
func (e *Engine) UpdateBookmark(bookmarkID, note string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.bookmarks {
		if e.bookmarks[i].ID == bookmarkID {
			e.bookmarks[i].Note = note
			return
		}
	}
}
