// Package library persists the user's book list.
//
// The list is stored as a single JSON collection under a fixed key in a
// SQLite key-value table, mirroring the mobile app's storage layout.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/justyntemme/pagemark/internal/errors"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/pkg/models"

	_ "modernc.org/sqlite"
)

// BooksKey is the key the serialized book list lives under.
const BooksKey = "books"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store provides access to the persisted book list.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles on the collection.
	mu sync.Mutex
}

// Open opens (creating if needed) the library database at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create library dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if log == nil {
		log = logger.Discard()
	}
	return &Store{db: db, logger: log, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// load reads the whole collection.
func (s *Store) load(ctx context.Context) ([]models.Book, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, BooksKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.Book{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}

	var books []models.Book
	if err := json.Unmarshal([]byte(raw), &books); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	return books, nil
}

// save replaces the whole collection.
func (s *Store) save(ctx context.Context, books []models.Book) error {
	data, err := json.Marshal(books)
	if err != nil {
		return fmt.Errorf("encode books: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, BooksKey, string(data), s.now().Unix())
	if err != nil {
		return fmt.Errorf("store books: %w", err)
	}
	return nil
}

// List returns every book, most recently read first.
func (s *Store) List(ctx context.Context) ([]models.Book, error) {
	books, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].LastReadAt.After(books[j].LastReadAt)
	})
	return books, nil
}

// Find returns the book with the given id.
func (s *Store) Find(ctx context.Context, id string) (*models.Book, error) {
	books, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range books {
		if books[i].ID == id {
			return &books[i], nil
		}
	}
	return nil, errors.NotFound("book %s not found", id)
}

// Add appends a book to the collection.
func (s *Store) Add(ctx context.Context, book models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, b := range books {
		if b.ID == book.ID {
			return errors.Validation("book %s already exists", book.ID)
		}
	}
	return s.save(ctx, append(books, book))
}

// Update replaces the stored record with the same id.
func (s *Store) Update(ctx context.Context, book models.Book) error {
	return s.modify(ctx, book.ID, func(b *models.Book) {
		*b = book
	})
}

// SaveMetadata attaches extracted metadata to a book.
func (s *Store) SaveMetadata(ctx context.Context, id string, meta models.Metadata) error {
	return s.modify(ctx, id, func(b *models.Book) {
		b.Meta = &meta
	})
}

// Touch records that a book was just opened.
func (s *Store) Touch(ctx context.Context, id string) error {
	now := s.now()
	return s.modify(ctx, id, func(b *models.Book) {
		b.LastReadAt = now
	})
}

// modify applies fn to the book with the given id and saves the collection.
func (s *Store) modify(ctx context.Context, id string, fn func(*models.Book)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range books {
		if books[i].ID == id {
			fn(&books[i])
			return s.save(ctx, books)
		}
	}
	return errors.NotFound("book %s not found", id)
}

// Delete removes a book record. The copied file is left for the caller.
func (s *Store) Delete(ctx context.Context, id string) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range books {
		if books[i].ID == id {
			removed := books[i]
			books = append(books[:i], books[i+1:]...)
			if err := s.save(ctx, books); err != nil {
				return nil, err
			}
			return &removed, nil
		}
	}
	return nil, errors.NotFound("book %s not found", id)
}

// DeleteAll drops the whole collection.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, BooksKey); err != nil {
		return fmt.Errorf("delete books: %w", err)
	}
	return nil
}
