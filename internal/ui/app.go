package ui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justyntemme/pagemark/internal/config"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/internal/ui/styles"
	"github.com/justyntemme/pagemark/internal/ui/terminal"
	"github.com/justyntemme/pagemark/internal/ui/views"
)

// App is the main application model
type App struct {
	config *config.Config
	logger *slog.Logger
	keys   views.KeyMap

	reader *views.ReaderView

	// Window dimensions
	width  int
	height int

	// Error message
	err      error
	showHelp bool
}

// NewApp creates the application for reading one book
func NewApp(cfg *config.Config, store views.BookStore, log *slog.Logger, mode terminal.TermImageMode, bookID string) *App {
	if log == nil {
		log = logger.Discard()
	}
	styles.SetCurrentTheme(cfg.Reading.Theme)

	reader := views.NewReaderView(store, cfg, log, mode)
	reader.SetBook(bookID)

	return &App{
		config: cfg,
		logger: log,
		keys:   views.DefaultKeyMap(),
		reader: reader,
		width:  80,
		height: 24,
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.reader.Init(),
		tea.SetWindowTitle("pagemark"),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.reader.SetSize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, a.quit()
		}
		if a.showHelp {
			if key.Matches(msg, a.keys.Help) || key.Matches(msg, a.keys.Escape) {
				a.showHelp = false
			}
			return a, nil
		}
		if !a.reader.Capturing() {
			switch {
			case key.Matches(msg, a.keys.Quit):
				return a, a.quit()
			case key.Matches(msg, a.keys.Help):
				a.showHelp = true
				return a, nil
			}
		}

	case views.PrefsChangedMsg:
		if err := a.config.SetReadingPrefs(msg.FontSize, msg.FontFamily, msg.Theme); err != nil {
			a.logger.Warn("failed to save reading preferences", "error", err)
		}
		return a, nil

	case views.ErrorMsg:
		a.err = msg.Err
		return a, nil

	case views.ClearErrorMsg:
		a.err = nil
		return a, nil
	}

	// Delegate to the reader
	var cmd tea.Cmd
	_, cmd = a.reader.Update(msg)
	return a, cmd
}

// quit persists reading preferences, releases the book and exits
func (a *App) quit() tea.Cmd {
	if s := a.reader.Session(); s != nil {
		if err := a.config.SetReadingPrefs(s.FontSize(), s.FontFamily(), s.Theme().Name); err != nil {
			a.logger.Warn("failed to save reading preferences", "error", err)
		}
	}
	if err := a.reader.Close(); err != nil {
		a.logger.Warn("failed to close book", "error", err)
	}
	return tea.Quit
}

// View implements tea.Model
func (a *App) View() string {
	if a.showHelp {
		return a.renderHelp()
	}

	content := a.reader.View()

	// Add error bar if there's an error
	if a.err != nil {
		errorBar := styles.ErrorStyle.Render("Error: " + a.err.Error())
		content = lipgloss.JoinVertical(lipgloss.Left, content, errorBar)
	}
	return content
}

// renderHelp renders the help overlay
func (a *App) renderHelp() string {
	var b strings.Builder
	b.WriteString(styles.DialogTitle.Render("Keyboard Shortcuts") + "\n")
	for _, section := range helpSections(a.keys) {
		b.WriteString("\n" + styles.HelpKey.Render(section.title) + "\n")
		for _, binding := range section.bindings {
			h := binding.Help()
			b.WriteString("  " + lipgloss.NewStyle().Width(10).Render(h.Key) + h.Desc + "\n")
		}
	}
	b.WriteString("\n" + styles.Help.Render("In select mode: j/k extend, 1/2/3 highlight, n add note"))

	help := styles.Dialog.Width(min(60, a.width-4)).Render(b.String())
	return lipgloss.Place(
		a.width,
		a.height,
		lipgloss.Center,
		lipgloss.Center,
		help,
	)
}
