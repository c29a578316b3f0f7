package views

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/pagemark/internal/config"
	"github.com/justyntemme/pagemark/internal/errors"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/internal/renderer"
	"github.com/justyntemme/pagemark/internal/session"
	"github.com/justyntemme/pagemark/internal/ui/styles"
	"github.com/justyntemme/pagemark/internal/ui/terminal"
	"github.com/justyntemme/pagemark/pkg/models"
)

type fakeStore struct {
	books   map[string]*models.Book
	touched []string
	saved   map[string]models.Metadata
}

func (s *fakeStore) Find(_ context.Context, id string) (*models.Book, error) {
	b, ok := s.books[id]
	if !ok {
		return nil, errors.NotFound("book %s not found", id)
	}
	book := *b
	return &book, nil
}

func (s *fakeStore) Touch(_ context.Context, id string) error {
	s.touched = append(s.touched, id)
	return nil
}

func (s *fakeStore) SaveMetadata(_ context.Context, id string, meta models.Metadata) error {
	if s.saved == nil {
		s.saved = map[string]models.Metadata{}
	}
	s.saved[id] = meta
	return nil
}

type bookSource struct{}

func (bookSource) Metadata() models.Metadata {
	return models.Metadata{Title: "Moby Dick", Author: "Herman Melville", Language: "en"}
}

func (bookSource) Contents() []renderer.TOCEntry {
	return []renderer.TOCEntry{
		{Label: "Loomings", Chapter: 0},
		{Label: "The Whale", Chapter: 1},
	}
}

func (bookSource) ChapterCount() int { return 2 }

func (bookSource) ChapterText(i int) (string, error) {
	return []string{
		"Call me Ishmael. Some years ago.",
		"The whale swam. A WHALE dove. whale again.",
	}[i], nil
}

func (bookSource) Cover() ([]byte, string, error) { return nil, "", renderer.ErrNoCover }

func (bookSource) Close() error { return nil }

func newTestReader(t *testing.T) (*ReaderView, *fakeStore) {
	t.Helper()
	t.Cleanup(func() { styles.SetCurrentTheme(config.DefaultTheme) })

	store := &fakeStore{books: map[string]*models.Book{
		"b1": {
			ID:   "b1",
			Name: "moby.epub",
			URI:  "/books/moby.epub",
			Type: models.MediaTypeEPUB,
			Meta: &models.Metadata{Title: "Moby Dick"},
		},
	}}

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Reading.SettleDelay = config.Duration(time.Millisecond)

	v := NewReaderView(store, cfg, logger.Discard(), terminal.TermModeNone)
	v.openEngine = func(_, _ string, opts renderer.Options) *renderer.Engine {
		return renderer.NewFromSource(bookSource{}, opts)
	}
	v.SetSize(60, 10)
	v.SetBook("b1")
	return v, store
}

// openReader drives the view through lookup, load and the splash
func openReader(t *testing.T, v *ReaderView) {
	t.Helper()
	v.Init()
	v.Update(v.openBook()())
	require.NotNil(t, v.engine)
	v.Update(waitReady(v.engine)())
	v.Update(v.loadSplash()())
	require.False(t, v.loading)
	require.NoError(t, v.err)
}

func press(v *ReaderView, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd = v.Update(msg)
	}
	return cmd
}

func TestReaderView_NoBook(t *testing.T) {
	v, _ := newTestReader(t)
	v.SetBook("")

	assert.Nil(t, v.Init())
	assert.Empty(t, v.View())
}

func TestReaderView_MissingBook(t *testing.T) {
	v, store := newTestReader(t)
	v.SetBook("nope")

	v.Init()
	_, cmd := v.Update(v.openBook()())

	assert.Nil(t, cmd)
	assert.True(t, v.missing)
	assert.Empty(t, v.View())
	assert.Empty(t, store.touched)
}

func TestReaderView_Open(t *testing.T) {
	v, store := newTestReader(t)
	openReader(t, v)

	assert.Equal(t, []string{"b1"}, store.touched)
	assert.Equal(t, "Moby Dick", v.book.DisplayTitle())

	view := v.View()
	assert.Contains(t, view, "Moby Dick")
	assert.Contains(t, view, "Call me Ishmael.")
	assert.Contains(t, view, "1/2")
}

func TestReaderView_ExtractsMissingMetadata(t *testing.T) {
	v, store := newTestReader(t)
	store.books["b1"].Meta = nil
	v.config.Metadata.Warmup = 0
	v.config.Metadata.RetryInterval = config.Duration(time.Millisecond)

	v.Init()
	v.Update(v.openBook()())
	v.Update(waitReady(v.engine)())

	msg := v.extractMetadata()()
	v.Update(msg)

	require.Contains(t, store.saved, "b1")
	assert.Equal(t, "Moby Dick", store.saved["b1"].Title)
	assert.Equal(t, "Herman Melville", v.book.Meta.Author)
}

func TestReaderView_Paging(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "n")
	page, ok := v.engine.CurrentPage()
	require.True(t, ok)
	assert.Equal(t, 1, page.Chapter)

	press(v, "p")
	assert.Equal(t, 1, v.engine.CurrentLocation().Position)
}

func TestReaderView_ToggleBookmark(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "B")
	assert.True(t, v.session.IsBookmarked())
	assert.Equal(t, "Bookmark added", v.status)
	assert.Contains(t, v.View(), "★")

	press(v, "B")
	assert.False(t, v.session.IsBookmarked())
	assert.Equal(t, "Bookmark removed", v.status)
}

func TestReaderView_FontSizeReportsPrefs(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	cmd := press(v, "+")
	require.NotNil(t, cmd)
	assert.Equal(t, PrefsChangedMsg{FontSize: 15, FontFamily: "Helvetica", Theme: "dark"}, cmd())

	cmd = press(v, "T")
	require.NotNil(t, cmd)
	assert.Equal(t, "light", cmd().(PrefsChangedMsg).Theme)
	assert.Equal(t, "light", styles.CurrentTheme().Name)
}

func TestReaderView_FullScreen(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "z")
	assert.True(t, v.session.IsFullScreen())
	assert.Equal(t, 10, v.pageRows())
	assert.NotContains(t, v.View(), "Moby Dick")

	press(v, "esc")
	assert.False(t, v.session.IsFullScreen())
	assert.Contains(t, v.View(), "Moby Dick")
}

func TestReaderView_FullScreenIgnoresPanelKeys(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "z", "b", "/", "t", "a", "v", "n")
	assert.Equal(t, session.PanelNone, v.session.ActivePanel())
	assert.Nil(t, v.session.TemporaryAnnotation())
	assert.False(t, v.input.Focused())
	assert.False(t, v.selecting)
	assert.False(t, v.Capturing(), "quit must stay reachable")

	press(v, "z")
	assert.False(t, v.session.IsFullScreen())
}

func TestReaderView_PanelSettlingIntoFullScreen(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "b")
	settle := v.openPanel(session.PanelSearch)
	require.NotNil(t, settle)

	press(v, "z")
	require.True(t, v.session.IsFullScreen())
	v.Update(settle())
	assert.Equal(t, session.PanelSearch, v.session.ActivePanel())
	assert.False(t, v.input.Focused())
	assert.False(t, v.Capturing())

	press(v, "esc")
	assert.Equal(t, session.PanelSearch, v.session.VisiblePanel())
	assert.True(t, v.input.Focused())
	assert.Contains(t, v.View(), "Search")
}

func TestReaderView_BookmarksPanel(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "B", "n", "b")
	require.Equal(t, session.PanelBookmarks, v.session.VisiblePanel())
	assert.True(t, v.Capturing())

	press(v, "enter")
	assert.Equal(t, session.PanelNone, v.session.ActivePanel())
	assert.Equal(t, 1, v.engine.CurrentLocation().Position)

	press(v, "b", "d")
	assert.Empty(t, v.session.Bookmarks())
	press(v, "esc")
	assert.False(t, v.Capturing())
}

func TestReaderView_BookmarkNote(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "B", "b", "e")
	require.True(t, v.input.Focused())
	press(v, "whale ahead", "enter")

	bookmarks := v.session.Bookmarks()
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "whale ahead", bookmarks[0].Note)
	assert.Equal(t, "Bookmark note saved", v.status)
}

func TestReaderView_Search(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "/")
	require.Equal(t, session.PanelSearch, v.session.VisiblePanel())
	require.True(t, v.input.Focused())

	press(v, "whale", "enter")
	pager := v.session.Pager()
	require.True(t, pager.Searching())
	assert.Equal(t, "whale", pager.Term())

	// a stale response is ignored
	v.Update(searchResultsMsg{epoch: pager.Epoch() - 1, results: models.SearchResults{TotalResults: 9}})
	assert.True(t, pager.Searching())

	req := session.Request{Term: "whale", Page: 1, PageSize: session.PageSize, Epoch: pager.Epoch()}
	v.Update(v.runSearch(req)())
	require.Equal(t, 3, pager.Len())
	assert.True(t, pager.Exhausted())
	assert.Contains(t, v.View(), "3 of 3 results")

	// nothing left to fetch at the end of the list
	assert.Nil(t, press(v, "j", "j"))
	assert.Equal(t, 2, v.cursor)

	cmd := press(v, "enter")
	require.NotNil(t, cmd)
	assert.Equal(t, session.PanelNone, v.session.ActivePanel())
	assert.Equal(t, 0, pager.Len())
	assert.Equal(t, 2, v.engine.CurrentLocation().Position)

	flashes := v.engine.Annotations()
	require.Len(t, flashes, 1)
	v.Update(flashDoneMsg{flash: session.Flash{Annotation: flashes[0]}})
	assert.Empty(t, v.engine.Annotations())
}

func TestReaderView_SearchFailure(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "/", "whale", "enter")
	pager := v.session.Pager()
	v.Update(searchResultsMsg{epoch: pager.Epoch(), err: errors.Unavailable("search backend gone")})

	assert.False(t, pager.Searching())
	assert.Contains(t, v.View(), "No results")
}

func TestReaderView_HighlightSelection(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "v")
	require.True(t, v.selecting)
	assert.True(t, v.Capturing())

	press(v, "2")
	assert.False(t, v.selecting)

	annotations := v.engine.Annotations()
	require.Len(t, annotations, 1)
	assert.Equal(t, session.ColorRed, annotations[0].Style.Color)
	assert.Equal(t, renderer.Ref{Chapter: 0, Start: 0, End: 32}.String(), annotations[0].RangeRef)
}

func TestReaderView_AddNote(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "v", "n")
	require.Equal(t, session.PanelAnnotations, v.session.VisiblePanel())
	require.NotNil(t, v.session.TemporaryAnnotation())
	require.True(t, v.input.Focused())

	press(v, "tab", "call him", "enter")
	assert.Equal(t, session.PanelNone, v.session.ActivePanel())
	assert.Equal(t, "Note saved", v.status)
	assert.Nil(t, v.session.TemporaryAnnotation())

	annotations := v.engine.Annotations()
	require.Len(t, annotations, 2)
	for _, a := range annotations {
		assert.Equal(t, "call him", a.Data.Observation)
		assert.Equal(t, session.ColorRed, a.Style.Color)
	}
	assert.Contains(t, v.View(), "✎")
}

func TestReaderView_DiscardNote(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "v", "n", "half a thought", "esc")

	assert.Equal(t, session.PanelNone, v.session.ActivePanel())
	assert.Nil(t, v.session.PendingSelection())
	assert.Empty(t, v.engine.Annotations())
}

func TestReaderView_EditNote(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)
	press(v, "v", "n", "first", "enter")

	press(v, "a")
	require.Equal(t, session.PanelAnnotations, v.session.VisiblePanel())
	require.Len(t, v.session.Annotations(), 1)

	press(v, "e")
	require.NotNil(t, v.session.SelectedAnnotation())
	assert.Equal(t, "first", v.input.Value())

	v.input.SetValue("second")
	press(v, "enter")
	for _, a := range v.engine.Annotations() {
		assert.Equal(t, "second", a.Data.Observation)
	}

	press(v, "a", "d")
	assert.Empty(t, v.engine.Annotations())
}

func TestReaderView_PanelSwitchSettles(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "b")
	require.Equal(t, session.PanelBookmarks, v.session.VisiblePanel())

	cmd := v.openPanel(session.PanelSearch)
	require.NotNil(t, cmd)
	assert.Equal(t, session.PanelNone, v.session.VisiblePanel())

	v.Update(cmd())
	assert.Equal(t, session.PanelSearch, v.session.VisiblePanel())
	assert.True(t, v.input.Focused())
}

func TestReaderView_TOC(t *testing.T) {
	v, _ := newTestReader(t)
	openReader(t, v)

	press(v, "t")
	require.Equal(t, session.PanelTableOfContents, v.session.VisiblePanel())
	assert.Contains(t, v.View(), "Loomings")

	press(v, "whale")
	assert.Equal(t, 0, v.cursor)
	assert.Len(t, v.session.FilterTOC(v.input.Value()), 1)

	press(v, "enter")
	assert.Equal(t, session.PanelNone, v.session.ActivePanel())
	page, ok := v.engine.CurrentPage()
	require.True(t, ok)
	assert.Equal(t, 1, page.Chapter)
}

func TestDecorateLine(t *testing.T) {
	line := renderer.Line{Text: "Call me Ishmael.", Start: 0, End: 16}
	highlight := models.Annotation{
		RangeRef: renderer.Ref{Chapter: 0, Start: 5, End: 7}.String(),
		Kind:     models.AnnotationHighlight,
		Style:    models.AnnotationStyle{Color: session.ColorYellow},
	}
	mark := highlight
	mark.Kind = models.AnnotationMark
	elsewhere := highlight
	elsewhere.RangeRef = renderer.Ref{Chapter: 1, Start: 0, End: 4}.String()

	plain := styles.ReaderContent.UnsetPadding()

	got := decorateLine(0, line, []models.Annotation{highlight, elsewhere}, plain)
	assert.Equal(t, "Call me Ishmael.", stripANSI(got))

	got = decorateLine(0, line, []models.Annotation{highlight, mark}, plain)
	assert.True(t, strings.HasSuffix(stripANSI(got), " ✎"))
}

func TestRenderProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░", renderProgressBar(4, 0))
	assert.Equal(t, "████", renderProgressBar(4, 1))
	assert.Equal(t, "██░░", renderProgressBar(4, 0.5))
	assert.Equal(t, 3, len([]rune(renderProgressBar(1, 0.5))))
}

// stripANSI removes SGR escape sequences
func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
