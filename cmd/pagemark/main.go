package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/justyntemme/pagemark/internal/config"
	"github.com/justyntemme/pagemark/internal/library"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/internal/ui"
	"github.com/justyntemme/pagemark/internal/ui/terminal"
)

func main() {
	// Define flags
	importFiles := flag.String("import", "", "Import epub/pdf file(s) into the library (comma-separated or glob pattern)")
	flag.StringVar(importFiles, "i", "", "Import file(s) (shorthand)")
	readID := flag.String("read", "", "Open the book with this id")
	flag.StringVar(readID, "r", "", "Open a book (shorthand)")
	list := flag.Bool("list", false, "List the books in the library")
	flag.BoolVar(list, "l", false, "List books (shorthand)")
	deleteID := flag.String("delete", "", "Remove the book with this id from the library")
	deleteAll := flag.Bool("delete-all", false, "Remove every book from the library")
	configPath := flag.String("config", "", "Path to the config file")
	showHelp := flag.Bool("help", false, "Show help message")
	flag.BoolVar(showHelp, "h", false, "Show help (shorthand)")
	debug := flag.Bool("debug", false, "Show debug information")

	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Debug mode
	if *debug {
		fmt.Printf("Config path: %s\n", cfg.Path())
		fmt.Printf("Data dir: %s\n", cfg.DataDir)
		fmt.Printf("Image mode: %s\n", terminal.DetectTerminalMode())
		fmt.Printf("Reading: %dpt %s, %s theme\n", cfg.Reading.FontSize, cfg.Reading.FontFamily, cfg.Reading.Theme)
		os.Exit(0)
	}

	log, err := logger.OpenFile(cfg.DataDir, logger.Config{
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	store, err := library.Open(cfg.DatabasePath(), log.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening library: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(cfg, store, log, *importFiles, *readID, *deleteID, *list, *deleteAll); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		store.Close()
		log.Close()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func run(cfg *config.Config, store *library.Store, log *logger.Logger, importFiles, readID, deleteID string, list, deleteAll bool) error {
	ctx := context.Background()

	switch {
	case importFiles != "":
		return handleImport(ctx, cfg, store, importFiles)
	case flag.NArg() > 0:
		// Positional arguments are files to import
		return handleImport(ctx, cfg, store, strings.Join(flag.Args(), ","))
	case list:
		return handleList(ctx, store)
	case deleteID != "":
		return handleDelete(ctx, store, deleteID)
	case deleteAll:
		if err := store.DeleteAll(ctx); err != nil {
			return err
		}
		fmt.Println("Library cleared.")
		return nil
	}

	// Without -read, continue the most recently read book
	if readID == "" {
		books, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(books) == 0 {
			fmt.Println("The library is empty. Import a book with: pagemark -i book.epub")
			return nil
		}
		readID = books[0].ID
	}

	// Run TUI mode
	app := ui.NewApp(cfg, store, log.Logger, terminal.DetectTerminalMode(), readID)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println("pagemark - Terminal ebook reader with bookmarks, highlights and notes")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pagemark                    Continue the last book read")
	fmt.Println("  pagemark [files...]         Import epub/pdf files")
	fmt.Println("  pagemark -i <files>         Import files (comma-separated)")
	fmt.Println("  pagemark -i '*.epub'        Import files matching glob pattern")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -r, --read <id>        Open a book from the library")
	fmt.Println("  -l, --list             List the books in the library")
	fmt.Println("  --delete <id>          Remove a book and its files")
	fmt.Println("  --delete-all           Remove every book record")
	fmt.Println("  --config <path>        Use another config file")
	fmt.Println("  -h, --help             Show this help message")
	fmt.Println()
	fmt.Println("Config: ~/.config/pagemark/config.json")
}

// expandFiles resolves comma-separated paths and glob patterns
func expandFiles(filesArg string) ([]string, error) {
	var files []string
	for _, pattern := range strings.Split(filesArg, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			// Check if it's a direct file path
			if _, err := os.Stat(pattern); err != nil {
				return nil, fmt.Errorf("no files found matching %q", pattern)
			}
			files = append(files, pattern)
		} else {
			files = append(files, matches...)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files to import")
	}
	return files, nil
}

func handleImport(ctx context.Context, cfg *config.Config, store *library.Store, filesArg string) error {
	files, err := expandFiles(filesArg)
	if err != nil {
		return err
	}

	fmt.Printf("Importing %d file(s) into %s...\n", len(files), cfg.BooksDir())

	successCount := 0
	for _, filePath := range files {
		fmt.Printf("  Importing %s... ", filepath.Base(filePath))

		book, err := store.Import(ctx, filePath, cfg.BooksDir())
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		fmt.Printf("OK\n")
		fmt.Printf("    ID: %s\n", book.ID)
		fmt.Printf("    Size: %s\n", library.FormatSize(book.Size))
		successCount++
	}

	fmt.Printf("\nImported %d/%d files successfully.\n", successCount, len(files))

	if successCount < len(files) {
		return fmt.Errorf("some imports failed")
	}
	return nil
}

func handleList(ctx context.Context, store *library.Store) error {
	books, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Println("The library is empty.")
		return nil
	}

	for _, b := range books {
		fmt.Printf("%s  %s\n", b.ID, b.DisplayTitle())
		if b.Meta != nil && b.Meta.Author != "" {
			fmt.Printf("    Author: %s\n", b.Meta.Author)
		}
		fmt.Printf("    %s, %s, read %s\n", b.Type, library.FormatSize(b.Size), humanize.Time(b.LastReadAt))
	}
	fmt.Printf("\n%s book(s)\n", humanize.Comma(int64(len(books))))
	return nil
}

func handleDelete(ctx context.Context, store *library.Store, id string) error {
	book, err := store.Delete(ctx, id)
	if err != nil {
		return err
	}

	// Imported files live in their own directory under the books dir
	if err := os.RemoveAll(filepath.Dir(book.URI)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not remove %s: %v\n", book.URI, err)
	}
	if book.Meta != nil && book.Meta.Cover != "" {
		if err := os.Remove(book.Meta.Cover); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: could not remove cover: %v\n", err)
		}
	}

	fmt.Printf("Deleted %s.\n", book.DisplayTitle())
	return nil
}
