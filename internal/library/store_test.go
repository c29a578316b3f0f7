package library

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/pagemark/internal/errors"
	"github.com/justyntemme/pagemark/internal/logger"
	"github.com/justyntemme/pagemark/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_EmptyList(t *testing.T) {
	s := newTestStore(t)

	books, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestStore_AddFindUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	book := models.Book{ID: "book-1", Name: "moby.epub", Type: models.MediaTypeEPUB, Size: 42}
	require.NoError(t, s.Add(ctx, book))

	err := s.Add(ctx, book)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	found, err := s.Find(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "moby.epub", found.Name)

	found.Name = "renamed.epub"
	require.NoError(t, s.Update(ctx, *found))

	found, err = s.Find(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed.epub", found.Name)
}

func TestStore_FindMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Find(context.Background(), "nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStore_ListSortedByLastRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Add(ctx, models.Book{ID: "old", LastReadAt: base}))
	require.NoError(t, s.Add(ctx, models.Book{ID: "new", LastReadAt: base.Add(time.Hour)}))

	books, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "new", books[0].ID)
	assert.Equal(t, "old", books[1].ID)
}

func TestStore_TouchAndMetadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Add(ctx, models.Book{ID: "book-1"}))
	require.NoError(t, s.Touch(ctx, "book-1"))
	require.NoError(t, s.SaveMetadata(ctx, "book-1", models.Metadata{Title: "Moby Dick", Author: "Melville"}))

	book, err := s.Find(ctx, "book-1")
	require.NoError(t, err)
	assert.True(t, book.LastReadAt.Equal(fixed))
	require.NotNil(t, book.Meta)
	assert.Equal(t, "Moby Dick", book.DisplayTitle())

	assert.True(t, errors.Is(s.Touch(ctx, "missing"), errors.ErrNotFound))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Add(ctx, models.Book{ID: "a"}))
	require.NoError(t, s.Add(ctx, models.Book{ID: "b"}))

	removed, err := s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", removed.ID)

	books, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "b", books[0].ID)

	require.NoError(t, s.DeleteAll(ctx))
	books, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestStore_ImportPDF(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"), 0600))

	book, err := s.Import(ctx, src, filepath.Join(dir, "books"))
	require.NoError(t, err)

	assert.Equal(t, models.MediaTypePDF, book.Type)
	assert.Equal(t, "paper.pdf", book.Name)
	assert.FileExists(t, book.URI)

	found, err := s.Find(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.URI, found.URI)
}

func TestStore_ImportSameNameSameInstant(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	instant := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return instant }

	dir := t.TempDir()
	booksDir := filepath.Join(dir, "books")
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
	for _, sub := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0700))
		require.NoError(t, os.WriteFile(filepath.Join(dir, sub, "book.pdf"), pdf, 0600))
	}

	first, err := s.Import(ctx, filepath.Join(dir, "a", "book.pdf"), booksDir)
	require.NoError(t, err)
	second, err := s.Import(ctx, filepath.Join(dir, "b", "book.pdf"), booksDir)
	require.NoError(t, err)

	assert.NotEqual(t, filepath.Dir(first.URI), filepath.Dir(second.URI))
	assert.FileExists(t, first.URI)
	assert.FileExists(t, second.URI)

	// removing one book's folder leaves the other in place
	require.NoError(t, os.RemoveAll(filepath.Dir(first.URI)))
	assert.FileExists(t, second.URI)
}

func TestStore_ImportFailureKeepsOtherBooks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()
	booksDir := filepath.Join(dir, "books")

	src := filepath.Join(dir, "book.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"), 0600))
	kept, err := s.Import(ctx, src, booksDir)
	require.NoError(t, err)

	// a closed database makes the record insert fail after the copy
	require.NoError(t, s.Close())
	_, err = s.Import(ctx, src, booksDir)
	require.Error(t, err)

	assert.FileExists(t, kept.URI)
	entries, err := os.ReadDir(booksDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen_NilLogger(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()
	assert.NotNil(t, s.logger)

	books, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestStore_ImportRejects(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.epub")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	_, err := s.Import(ctx, empty, dir)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("just some notes"), 0600))
	_, err = s.Import(ctx, text, dir)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestWriteCover(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteCover(dir, "book-1", []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "book-1_cover.png"), path)
	assert.FileExists(t, path)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
}

func TestCoverHash(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 180))
	for y := 0; y < 180; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	hash, err := CoverHash(buf.Bytes())
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	_, err = CoverHash([]byte("not an image"))
	assert.Error(t, err)
}
