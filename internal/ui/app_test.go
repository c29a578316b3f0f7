package ui

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/pagemark/internal/config"
	"github.com/justyntemme/pagemark/internal/errors"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/internal/ui/terminal"
	"github.com/justyntemme/pagemark/internal/ui/views"
	"github.com/justyntemme/pagemark/pkg/models"
)

type emptyStore struct{}

func (emptyStore) Find(_ context.Context, id string) (*models.Book, error) {
	return nil, errors.NotFound("book %s not found", id)
}

func (emptyStore) Touch(context.Context, string) error { return nil }

func (emptyStore) SaveMetadata(context.Context, string, models.Metadata) error { return nil }

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	return NewApp(cfg, emptyStore{}, logger.Discard(), terminal.TermModeNone, "missing")
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestApp_HelpOverlay(t *testing.T) {
	a := newTestApp(t)
	a.Update(tea.WindowSizeMsg{Width: 80, Height: 40})

	a.Update(runes("?"))
	assert.True(t, a.showHelp)
	assert.Contains(t, a.View(), "Keyboard Shortcuts")
	assert.Contains(t, a.View(), "toggle bookmark")

	// other keys are swallowed while help is open
	_, cmd := a.Update(runes("q"))
	assert.Nil(t, cmd)
	assert.True(t, a.showHelp)

	a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, a.showHelp)
}

func TestApp_Quit(t *testing.T) {
	a := newTestApp(t)

	_, cmd := a.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

// drain runs cmd and every command batched inside it, returning the messages
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, drain(c)...)
		}
		return msgs
	}
	return []tea.Msg{msg}
}

func TestApp_MissingBookRendersNothing(t *testing.T) {
	a := newTestApp(t)

	for _, msg := range drain(a.Init()) {
		a.Update(msg)
	}
	assert.Empty(t, a.View())
}

func TestApp_ErrorBar(t *testing.T) {
	a := newTestApp(t)

	a.Update(views.ErrorMsg{Err: errors.Unavailable("disk full")})
	assert.Contains(t, a.View(), "Error: disk full")

	a.Update(views.ClearErrorMsg{})
	assert.NotContains(t, a.View(), "Error")
}

func TestApp_SavesPrefs(t *testing.T) {
	a := newTestApp(t)

	a.Update(views.PrefsChangedMsg{FontSize: 18, FontFamily: "serif", Theme: "sepia"})

	saved, err := config.LoadFrom(a.config.Path())
	require.NoError(t, err)
	assert.Equal(t, 18, saved.Reading.FontSize)
	assert.Equal(t, "serif", saved.Reading.FontFamily)
	assert.Equal(t, "sepia", saved.Reading.Theme)
}
