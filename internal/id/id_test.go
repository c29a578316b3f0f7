package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	got, err := Generate("book")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "book-"))
	assert.Len(t, got, len("book-")+21)
}

func TestNewBook(t *testing.T) {
	got, err := NewBook()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, PrefixBook+"-"))
}

func TestNewBookmark_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		got := NewBookmark()
		assert.True(t, strings.HasPrefix(got, PrefixBookmark+"-"))
		assert.False(t, seen[got], "duplicate id %s", got)
		seen[got] = true
	}
}
