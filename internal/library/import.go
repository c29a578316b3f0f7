package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/justyntemme/pagemark/internal/errors"
	"github.com/justyntemme/pagemark/internal/id"
	"github.com/justyntemme/pagemark/pkg/models"
)

// supportedTypes lists the media types the reader can open.
var supportedTypes = []string{models.MediaTypeEPUB, models.MediaTypePDF}

// DetectMediaType sniffs the file content, falling back to the extension.
func DetectMediaType(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect media type: %w", err)
	}
	for _, t := range supportedTypes {
		if mt.Is(t) {
			return t, nil
		}
	}

	// Loosely packaged EPUBs sniff as plain zip.
	if mt.Is("application/zip") && strings.EqualFold(filepath.Ext(path), ".epub") {
		return models.MediaTypeEPUB, nil
	}
	return mt.String(), nil
}

// Import copies a book file into booksDir and records it in the store.
func (s *Store) Import(ctx context.Context, srcPath, booksDir string) (*models.Book, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", srcPath, err)
	}
	if info.IsDir() {
		return nil, errors.Validation("%s is a directory", srcPath)
	}
	if info.Size() == 0 {
		return nil, errors.Validation("invalid file size")
	}

	mediaType, err := DetectMediaType(srcPath)
	if err != nil {
		return nil, err
	}
	if mediaType != models.MediaTypeEPUB && mediaType != models.MediaTypePDF {
		return nil, errors.Validation("please select an EPUB or PDF file (got %s)", mediaType)
	}

	bookID, err := id.NewBook()
	if err != nil {
		return nil, err
	}

	// One folder per book; Delete removes it whole.
	now := s.now()
	if err := os.MkdirAll(booksDir, 0700); err != nil {
		return nil, fmt.Errorf("create books dir: %w", err)
	}
	bookDir := filepath.Join(booksDir, strconv.FormatInt(now.UnixMilli(), 10)+"-"+bookID)
	if err := os.Mkdir(bookDir, 0700); err != nil {
		return nil, fmt.Errorf("create book dir: %w", err)
	}

	name := filepath.Base(srcPath)
	dst := filepath.Join(bookDir, name)
	if err := copyFile(srcPath, dst); err != nil {
		os.RemoveAll(bookDir)
		return nil, err
	}

	book := models.Book{
		ID:         bookID,
		Name:       name,
		URI:        dst,
		Type:       mediaType,
		Size:       info.Size(),
		AddedAt:    now,
		LastReadAt: now,
	}
	if err := s.Add(ctx, book); err != nil {
		os.RemoveAll(bookDir)
		return nil, err
	}

	s.logger.Info("book imported", "book_id", book.ID, "name", name, "type", mediaType)
	return &book, nil
}

// WriteCover stores cover image bytes for a book and returns the file path.
func WriteCover(coversDir, bookID string, data []byte, mediaType string) (string, error) {
	if err := os.MkdirAll(coversDir, 0700); err != nil {
		return "", fmt.Errorf("create covers dir: %w", err)
	}

	ext := ".jpg"
	switch mediaType {
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}

	path := filepath.Join(coversDir, bookID+"_cover"+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write cover: %w", err)
	}
	return path, nil
}

// FormatSize renders a byte count the way the library list shows it.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy book: %w", err)
	}
	return out.Close()
}
