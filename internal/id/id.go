package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes of the ids pagemark hands out.
const (
	PrefixBook     = "book"
	PrefixBookmark = "bm"
)

// Generate returns prefix-nanoid, e.g. "book-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate panics when the random source fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewBook returns an id for a library book.
func NewBook() (string, error) {
	return Generate(PrefixBook)
}

// NewBookmark returns an id for a bookmark. Bookmarks are created from
// key handlers that have no error path, so a failure panics.
func NewBookmark() string {
	return MustGenerate(PrefixBookmark)
}
