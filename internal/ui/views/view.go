package views

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justyntemme/pagemark/pkg/models"
)

// View is the interface that all views must implement
type View interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (View, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// BookStore is the library access the reader needs
type BookStore interface {
	Find(ctx context.Context, id string) (*models.Book, error)
	Touch(ctx context.Context, id string) error
	SaveMetadata(ctx context.Context, id string, meta models.Metadata) error
}

// Message types for view/app communication

// ErrorMsg is sent when an error should be shown in the error bar
type ErrorMsg struct {
	Err error
}

// ClearErrorMsg clears the current error
type ClearErrorMsg struct{}

// PrefsChangedMsg is sent when reading preferences change
type PrefsChangedMsg struct {
	FontSize   int
	FontFamily string
	Theme      string
}

// SendError creates an error message command
func SendError(err error) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{Err: err}
	}
}

// ClearError creates a command to clear errors
func ClearError() tea.Cmd {
	return func() tea.Msg {
		return ClearErrorMsg{}
	}
}
