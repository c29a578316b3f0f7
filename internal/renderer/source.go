package renderer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lvillar/gofpdf/reader"
	"github.com/simp-lee/epub"

	"github.com/justyntemme/pagemark/pkg/models"
)

// ErrNoCover is returned by sources that have no cover image
var ErrNoCover = errors.New("renderer: no cover image")

// TOCEntry is a table of contents entry pointing at a chapter
type TOCEntry struct {
	Label   string
	Chapter int
	Level   int
}

// Source supplies the raw content of a book to the engine
type Source interface {
	Metadata() models.Metadata
	Contents() []TOCEntry
	ChapterCount() int
	ChapterText(i int) (string, error)
	Cover() ([]byte, string, error)
	Close() error
}

// OpenSource opens a book file according to its media type
func OpenSource(path, mediaType string) (Source, error) {
	if strings.Contains(mediaType, "pdf") {
		return openPDF(path)
	}
	return openEPUB(path)
}

// epubSource reads EPUB 2/3 files
type epubSource struct {
	book     *epub.Book
	chapters []epub.Chapter
}

func openEPUB(path string) (*epubSource, error) {
	book, err := epub.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	return &epubSource{book: book, chapters: book.Chapters()}, nil
}

func (s *epubSource) Metadata() models.Metadata {
	md := s.book.Metadata()
	meta := models.Metadata{
		Publisher:   md.Publisher,
		Description: md.Description,
		Rights:      md.Rights,
	}
	if len(md.Titles) > 0 {
		meta.Title = md.Titles[0]
	}
	if len(md.Authors) > 0 {
		meta.Author = md.Authors[0].Name
	}
	if len(md.Language) > 0 {
		meta.Language = md.Language[0]
	}
	return meta
}

func (s *epubSource) Contents() []TOCEntry {
	var entries []TOCEntry
	var walk func(items []epub.TOCItem, level int)
	walk = func(items []epub.TOCItem, level int) {
		for _, item := range items {
			if item.SpineIndex >= 0 && item.SpineIndex < len(s.chapters) {
				entries = append(entries, TOCEntry{Label: item.Title, Chapter: item.SpineIndex, Level: level})
			}
			walk(item.Children, level+1)
		}
	}
	walk(s.book.TOC(), 0)

	if len(entries) == 0 {
		for i, ch := range s.chapters {
			label := ch.Title
			if label == "" {
				label = "Chapter " + strconv.Itoa(i+1)
			}
			entries = append(entries, TOCEntry{Label: label, Chapter: i})
		}
	}
	return entries
}

func (s *epubSource) ChapterCount() int {
	return len(s.chapters)
}

func (s *epubSource) ChapterText(i int) (string, error) {
	if i < 0 || i >= len(s.chapters) {
		return "", fmt.Errorf("chapter %d out of range", i)
	}
	return s.chapters[i].TextContent()
}

func (s *epubSource) Cover() ([]byte, string, error) {
	cover, err := s.book.Cover()
	if err != nil {
		if errors.Is(err, epub.ErrNoCover) {
			return nil, "", ErrNoCover
		}
		return nil, "", err
	}
	return cover.Data, cover.MediaType, nil
}

func (s *epubSource) Close() error {
	return s.book.Close()
}

// pdfSource reads PDF files, one chapter per page
type pdfSource struct {
	doc *reader.Document
}

func openPDF(path string) (*pdfSource, error) {
	doc, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfSource{doc: doc}, nil
}

func (s *pdfSource) Metadata() models.Metadata {
	info := s.doc.Metadata()
	return models.Metadata{
		Title:       info["Title"],
		Author:      info["Author"],
		Description: info["Subject"],
		Publisher:   info["Producer"],
	}
}

func (s *pdfSource) Contents() []TOCEntry {
	entries := make([]TOCEntry, 0, s.doc.NumPages())
	for i := 0; i < s.doc.NumPages(); i++ {
		entries = append(entries, TOCEntry{Label: "Page " + strconv.Itoa(i+1), Chapter: i})
	}
	return entries
}

func (s *pdfSource) ChapterCount() int {
	return s.doc.NumPages()
}

func (s *pdfSource) ChapterText(i int) (string, error) {
	p, err := s.doc.Page(i + 1)
	if err != nil {
		return "", err
	}
	return p.ExtractText()
}

func (s *pdfSource) Cover() ([]byte, string, error) {
	return nil, "", ErrNoCover
}

func (s *pdfSource) Close() error {
	return nil
}
