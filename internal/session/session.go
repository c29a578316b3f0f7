// Package session holds the reading screen's state: font and theme
// preferences, fullscreen, the active panel, note drafts and search paging.
//
// The Controller never renders anything. Every operation is a plain
// method call that mutates state and forwards side effects to the
// Renderer, so it can be driven from Bubble Tea messages or from tests.
package session

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/pkg/models"
)

// Font size bounds
const (
	MinFontSize = 8
	MaxFontSize = 32
)

// Highlight colors
const (
	ColorYellow = "#CBA135"
	ColorRed    = "#C20114"
	ColorGreen  = "#23CE6B"
)

// HighlightColors lists the colors offered when highlighting
var HighlightColors = []string{ColorYellow, ColorRed, ColorGreen}

// DefaultFonts is the cycle used by CycleFontFamily
var DefaultFonts = []string{"Helvetica", "cursive", "serif", "monospace", "Georgia", "Times"}

// DefaultThemes is the cycle used by CycleTheme
var DefaultThemes = []models.Theme{
	{Name: "dark", Background: "#121212", Foreground: "#E8E8E8"},
	{Name: "light", Background: "#FAFAFA", Foreground: "#1C1C1E"},
	{Name: "sepia", Background: "#F4ECD8", Foreground: "#5B4636"},
}

// Renderer is the document engine the session drives
type Renderer interface {
	CurrentLocation() *models.Location
	GoToLocation(target string)

	AddAnnotation(kind models.AnnotationKind, ref string, data *models.AnnotationData, style *models.AnnotationStyle) models.Annotation
	RemoveAnnotation(a models.Annotation)
	Annotations() []models.Annotation

	AddBookmark(loc models.Location) models.Bookmark
	RemoveBookmark(b models.Bookmark)
	RemoveBookmarks()
	UpdateBookmark(id, note string)
	Bookmarks() []models.Bookmark

	TOC() []models.Section

	ChangeFontSize(size int)
	ChangeFontFamily(name string)
	ChangeTheme(theme models.Theme)
}

// Searcher runs in-book searches
type Searcher interface {
	Search(ctx context.Context, term string, page, pageSize int) (models.SearchResults, error)
}

// Options configures a Controller
type Options struct {
	Logger        *slog.Logger
	FontSize      int
	FontFamily    string
	Fonts         []string
	Theme         string
	Themes        []models.Theme
	SettleDelay   time.Duration
	FlashDuration time.Duration
}

// DefaultOptions returns the standard reading preferences
func DefaultOptions() Options {
	return Options{
		FontSize:      14,
		Fonts:         DefaultFonts,
		Themes:        DefaultThemes,
		SettleDelay:   100 * time.Millisecond,
		FlashDuration: 3 * time.Second,
	}
}

// Selection is text captured for a note that has not been saved yet
type Selection struct {
	RangeRef string
	Text     string
}

// Flash is a transient search highlight to remove after a delay
type Flash struct {
	Annotation models.Annotation
	After      time.Duration
}

// BookmarkChange describes the outcome of ToggleBookmark
type BookmarkChange int

// Bookmark changes
const (
	BookmarkUnchanged BookmarkChange = iota
	BookmarkAdded
	BookmarkRemoved
)

// Controller is the state of one reading session
type Controller struct {
	renderer Renderer
	logger   *slog.Logger
	opts     Options

	panels *PanelController
	pager  *Pager

	fontSize   int
	fontIndex  int
	themeIndex int
	fullScreen bool

	pending   *Selection
	selected  *models.Annotation
	temporary *models.Annotation
}

// New creates a Controller for r and pushes the initial style to it
func New(r Renderer, opts Options) *Controller {
	defaults := DefaultOptions()
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if len(opts.Fonts) == 0 {
		opts.Fonts = defaults.Fonts
	}
	if len(opts.Themes) == 0 {
		opts.Themes = defaults.Themes
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaults.SettleDelay
	}
	if opts.FlashDuration <= 0 {
		opts.FlashDuration = defaults.FlashDuration
	}
	if opts.FontSize == 0 {
		opts.FontSize = defaults.FontSize
	}

	c := &Controller{
		renderer: r,
		logger:   opts.Logger,
		opts:     opts,
		panels:   NewPanelController(),
		pager:    NewPager(),
		fontSize: min(max(opts.FontSize, MinFontSize), MaxFontSize),
	}
	c.fontIndex = indexOf(opts.Fonts, opts.FontFamily)
	for i, t := range opts.Themes {
		if t.Name == opts.Theme {
			c.themeIndex = i
		}
	}

	c.panels.OnTeardown(PanelSearch, c.pager.Reset)
	c.panels.OnTeardown(PanelAnnotations, c.discardDraft)

	r.ChangeFontSize(c.fontSize)
	r.ChangeFontFamily(c.FontFamily())
	r.ChangeTheme(c.Theme())
	return c
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return 0
}

// Pager returns the search pager
func (c *Controller) Pager() *Pager { return c.pager }

// SettleDelay is the pause between dismissing one panel and presenting the next
func (c *Controller) SettleDelay() time.Duration { return c.opts.SettleDelay }

func (c *Controller) FontSize() int { return c.fontSize }

func (c *Controller) FontFamily() string { return c.opts.Fonts[c.fontIndex] }

func (c *Controller) Theme() models.Theme { return c.opts.Themes[c.themeIndex] }

func (c *Controller) IsFullScreen() bool { return c.fullScreen }

// IncreaseFontSize grows the font by one step unless already at the maximum
func (c *Controller) IncreaseFontSize() bool {
	if c.fontSize >= MaxFontSize {
		return false
	}
	c.fontSize++
	c.renderer.ChangeFontSize(c.fontSize)
	return true
}

// DecreaseFontSize shrinks the font by one step unless already at the minimum
func (c *Controller) DecreaseFontSize() bool {
	if c.fontSize <= MinFontSize {
		return false
	}
	c.fontSize--
	c.renderer.ChangeFontSize(c.fontSize)
	return true
}

// CycleFontFamily selects the next font, wrapping at the end of the list
func (c *Controller) CycleFontFamily() string {
	c.fontIndex = (c.fontIndex + 1) % len(c.opts.Fonts)
	family := c.FontFamily()
	c.renderer.ChangeFontFamily(family)
	return family
}

// CycleTheme selects the next theme, wrapping at the end of the list
func (c *Controller) CycleTheme() models.Theme {
	c.themeIndex = (c.themeIndex + 1) % len(c.opts.Themes)
	theme := c.Theme()
	c.renderer.ChangeTheme(theme)
	return theme
}

// ToggleFullScreen flips fullscreen. Panel state is kept while hidden.
func (c *Controller) ToggleFullScreen() bool {
	c.fullScreen = !c.fullScreen
	return c.fullScreen
}

// ActivePanel returns the presented panel regardless of fullscreen
func (c *Controller) ActivePanel() Panel { return c.panels.Active() }

// VisiblePanel returns the panel to draw; none while fullscreen
func (c *Controller) VisiblePanel() Panel {
	if c.fullScreen {
		return PanelNone
	}
	return c.panels.Active()
}

// OpenPanel requests p. See PanelController.Open.
func (c *Controller) OpenPanel(p Panel) Transition {
	return c.panels.Open(p)
}

// PanelSettled completes a pending panel switch
func (c *Controller) PanelSettled(seq uint64) (Panel, bool) {
	return c.panels.Settled(seq)
}

// ClosePanel dismisses whatever panel is open or pending
func (c *Controller) ClosePanel() {
	c.panels.Close()
}

// ToggleBookmark removes the bookmark at the current location or adds one
func (c *Controller) ToggleBookmark() BookmarkChange {
	loc := c.renderer.CurrentLocation()
	if loc == nil {
		c.logger.Debug("bookmark toggle ignored: no location")
		return BookmarkUnchanged
	}
	if b, ok := c.bookmarkAt(*loc); ok {
		c.renderer.RemoveBookmark(b)
		return BookmarkRemoved
	}
	c.renderer.AddBookmark(*loc)
	return BookmarkAdded
}

// IsBookmarked reports whether the current location has a bookmark
func (c *Controller) IsBookmarked() bool {
	loc := c.renderer.CurrentLocation()
	if loc == nil {
		return false
	}
	_, ok := c.bookmarkAt(*loc)
	return ok
}

func (c *Controller) bookmarkAt(loc models.Location) (models.Bookmark, bool) {
	for _, b := range c.renderer.Bookmarks() {
		if b.Location.SameRange(loc) {
			return b, true
		}
	}
	return models.Bookmark{}, false
}

// Bookmarks returns every bookmark
func (c *Controller) Bookmarks() []models.Bookmark {
	return c.renderer.Bookmarks()
}

// GoToBookmark navigates to b and closes the panel
func (c *Controller) GoToBookmark(b models.Bookmark) {
	c.renderer.GoToLocation(b.Location.Start)
	c.panels.Close()
}

// DeleteBookmark removes b
func (c *Controller) DeleteBookmark(b models.Bookmark) {
	c.renderer.RemoveBookmark(b)
}

// ClearBookmarks removes every bookmark
func (c *Controller) ClearBookmarks() {
	c.renderer.RemoveBookmarks()
}

// EditBookmarkNote sets the note of the bookmark at the current location
func (c *Controller) EditBookmarkNote(note string) bool {
	loc := c.renderer.CurrentLocation()
	if loc == nil {
		return false
	}
	b, ok := c.bookmarkAt(*loc)
	if !ok {
		return false
	}
	c.renderer.UpdateBookmark(b.ID, strings.TrimSpace(note))
	return true
}

// InvokeHighlightAction adds a permanent highlight over ref
func (c *Controller) InvokeHighlightAction(ref, color string) {
	c.renderer.AddAnnotation(models.AnnotationHighlight, ref,
		&models.AnnotationData{},
		&models.AnnotationStyle{Color: color})
}

// InvokeAddNote starts a note over ref: the text is kept as the pending
// selection, anchored by a temporary highlight, and the Annotations panel
// is opened to compose it.
func (c *Controller) InvokeAddNote(ref, text string) Transition {
	c.discardTemporary()
	c.selected = nil
	c.pending = &Selection{RangeRef: ref, Text: text}

	temp := c.renderer.AddAnnotation(models.AnnotationHighlight, ref,
		&models.AnnotationData{IsTemporary: true},
		&models.AnnotationStyle{Color: ColorYellow})
	c.temporary = &temp

	return c.panels.Open(PanelAnnotations)
}

// OnAnnotationPressed selects a for editing and opens the Annotations panel
func (c *Controller) OnAnnotationPressed(a models.Annotation) Transition {
	c.discardTemporary()
	c.pending = nil
	c.selected = &a
	return c.panels.Open(PanelAnnotations)
}

// DismissAnnotationsPanel drops any draft and closes the Annotations panel
func (c *Controller) DismissAnnotationsPanel() {
	c.discardDraft()
	active := c.panels.Active()
	pending, settling := c.panels.Pending()
	if active == PanelAnnotations || settling && pending == PanelAnnotations {
		c.panels.Close()
	}
}

// discardDraft is the Annotations panel teardown
func (c *Controller) discardDraft() {
	c.pending = nil
	c.selected = nil
	c.discardTemporary()
}

func (c *Controller) discardTemporary() {
	if c.temporary == nil {
		return
	}
	c.renderer.RemoveAnnotation(*c.temporary)
	c.temporary = nil
}

// PendingSelection returns the text being annotated, or nil
func (c *Controller) PendingSelection() *Selection { return c.pending }

// SelectedAnnotation returns the annotation being edited, or nil
func (c *Controller) SelectedAnnotation() *models.Annotation { return c.selected }

// TemporaryAnnotation returns the highlight anchoring the current draft, or nil
func (c *Controller) TemporaryAnnotation() *models.Annotation { return c.temporary }

// SaveNote turns the pending selection into a highlight plus a note marker
// sharing one note key, then closes the panel
func (c *Controller) SaveNote(observation, color string) bool {
	if c.pending == nil {
		return false
	}
	sel := *c.pending
	if color == "" {
		color = ColorYellow
	}
	c.discardTemporary()

	data := &models.AnnotationData{NoteKey: uuid.NewString(), Observation: strings.TrimSpace(observation)}
	c.renderer.AddAnnotation(models.AnnotationHighlight, sel.RangeRef, data, &models.AnnotationStyle{Color: color})
	c.renderer.AddAnnotation(models.AnnotationMark, sel.RangeRef, data, &models.AnnotationStyle{Color: color})

	c.pending = nil
	c.DismissAnnotationsPanel()
	return true
}

// UpdateNote replaces the observation of the selected annotation and of
// every annotation sharing its note key, then closes the panel
func (c *Controller) UpdateNote(observation string) bool {
	if c.selected == nil {
		return false
	}
	target := *c.selected
	observation = strings.TrimSpace(observation)

	for _, a := range c.related(target) {
		c.renderer.RemoveAnnotation(a)
		data := a.Data
		data.Observation = observation
		style := a.Style
		c.renderer.AddAnnotation(a.Kind, a.RangeRef, &data, &style)
	}
	c.DismissAnnotationsPanel()
	return true
}

// RemoveAnnotation deletes a together with every annotation sharing its note key
func (c *Controller) RemoveAnnotation(a models.Annotation) {
	for _, r := range c.related(a) {
		c.renderer.RemoveAnnotation(r)
	}
	if c.selected != nil && *c.selected == a {
		c.selected = nil
	}
}

// related returns a and every annotation that shares its note key
func (c *Controller) related(a models.Annotation) []models.Annotation {
	if a.Data.NoteKey == "" {
		return []models.Annotation{a}
	}
	var out []models.Annotation
	for _, existing := range c.renderer.Annotations() {
		if existing.Data.NoteKey == a.Data.NoteKey {
			out = append(out, existing)
		}
	}
	return out
}

// Annotations returns the saved highlights, hiding temporaries and note markers
func (c *Controller) Annotations() []models.Annotation {
	var out []models.Annotation
	for _, a := range c.renderer.Annotations() {
		if a.IsTemporary() || a.Kind == models.AnnotationMark {
			continue
		}
		out = append(out, a)
	}
	return out
}

// SubmitSearch starts a query for term
func (c *Controller) SubmitSearch(term string) (Request, bool) {
	return c.pager.Submit(term)
}

// FetchMoreResults requests the next page of the current query
func (c *Controller) FetchMoreResults() (Request, bool) {
	return c.pager.FetchMore()
}

// SelectResult jumps to result, flashes a highlight there, clears the
// query and closes the panel. The caller removes the flash with EndFlash
// after Flash.After.
func (c *Controller) SelectResult(result models.SearchResult) Flash {
	c.renderer.GoToLocation(result.Cfi)
	a := c.renderer.AddAnnotation(models.AnnotationHighlight, result.Cfi, nil, nil)
	c.pager.Reset()
	c.panels.Close()
	return Flash{Annotation: a, After: c.opts.FlashDuration}
}

// EndFlash removes a search highlight
func (c *Controller) EndFlash(f Flash) {
	c.renderer.RemoveAnnotation(f.Annotation)
}

// FilterTOC returns the sections whose label matches query case-insensitively.
// Queries that are not valid expressions are matched literally.
func (c *Controller) FilterTOC(query string) []models.Section {
	toc := c.renderer.TOC()
	query = strings.TrimSpace(query)
	if query == "" {
		return toc
	}
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	}
	var out []models.Section
	for _, s := range toc {
		if re.MatchString(s.Label) {
			out = append(out, s)
		}
	}
	return out
}

// GoToSection navigates to s and closes the panel
func (c *Controller) GoToSection(s models.Section) {
	c.renderer.GoToLocation(s.Href)
	c.panels.Close()
}
