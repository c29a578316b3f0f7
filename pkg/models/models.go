package models

import (
	"strings"
	"time"
)

// Media type constants
const (
	MediaTypeEPUB = "application/epub+zip"
	MediaTypePDF  = "application/pdf"
)

// Book represents an imported ebook in the local library
type Book struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URI        string    `json:"uri"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	AddedAt    time.Time `json:"added_at"`
	LastReadAt time.Time `json:"last_read_at"`
	Meta       *Metadata `json:"meta,omitempty"`
}

// IsPDF returns true if the book is a PDF file
func (b *Book) IsPDF() bool {
	return strings.Contains(b.Type, "pdf")
}

// DisplayTitle returns the metadata title, falling back to the file name
func (b *Book) DisplayTitle() string {
	if b.Meta != nil && b.Meta.Title != "" {
		return b.Meta.Title
	}
	return b.Name
}

// Metadata holds descriptive information extracted from a book
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Cover       string `json:"cover,omitempty"`
	CoverHash   string `json:"cover_hash,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Rights      string `json:"rights,omitempty"`
}

// Location is a position within the rendered book
type Location struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Position int    `json:"position"`
	Total    int    `json:"total"`
}

// SameRange reports whether two locations cover the same range
func (l Location) SameRange(other Location) bool {
	return l.Start == other.Start && l.End == other.End
}

// AnnotationKind distinguishes highlights from note markers
type AnnotationKind string

// Annotation kinds
const (
	AnnotationHighlight AnnotationKind = "highlight"
	AnnotationMark      AnnotationKind = "mark"
)

// AnnotationStyle holds the visual style of an annotation
type AnnotationStyle struct {
	Color string `json:"color,omitempty"`
}

// AnnotationData holds user data attached to an annotation
type AnnotationData struct {
	IsTemporary bool   `json:"is_temporary,omitempty"`
	NoteKey     string `json:"note_key,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// Annotation is a highlight or note marker over a range of text
type Annotation struct {
	RangeRef    string          `json:"range_ref"`
	Kind        AnnotationKind  `json:"kind"`
	Style       AnnotationStyle `json:"style"`
	Data        AnnotationData  `json:"data"`
	DisplayText string          `json:"display_text"`
}

// IsTemporary returns true for annotations anchoring an unsaved note
func (a Annotation) IsTemporary() bool {
	return a.Data.IsTemporary
}

// Bookmark marks a location in a book
type Bookmark struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
	Note     string   `json:"note,omitempty"`
	Section  string   `json:"section,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// Section represents an entry in the table of contents
type Section struct {
	ID    string `json:"id"`
	Href  string `json:"href"`
	Label string `json:"label"`
	Level int    `json:"level"`
}

// SearchResult is a single in-book search match
type SearchResult struct {
	Cfi     string `json:"cfi"`
	Excerpt string `json:"excerpt"`
	Section string `json:"section,omitempty"`
}

// SearchResults is one page of search matches
type SearchResults struct {
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// Theme describes the colors applied to rendered book content
type Theme struct {
	Name       string `json:"name"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
}
