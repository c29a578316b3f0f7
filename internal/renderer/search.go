package renderer

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/search"

	"github.com/justyntemme/pagemark/pkg/models"
)

// excerptContext is the number of runes kept on each side of a match
const excerptContext = 40

// searchCache keeps every match of the last searched term so that later
// pages are sliced rather than recomputed
type searchCache struct {
	term    string
	matches []models.SearchResult
}

// Search returns one page of case-insensitive matches for term together
// with the total number of matches. page is 1-based. It blocks until the
// book has loaded or ctx is done.
func (e *Engine) Search(ctx context.Context, term string, page, pageSize int) (models.SearchResults, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return models.SearchResults{}, ctx.Err()
	}
	if err := e.Err(); err != nil {
		return models.SearchResults{}, err
	}

	term = strings.TrimSpace(term)
	if term == "" || page < 1 || pageSize < 1 {
		return models.SearchResults{Results: []models.SearchResult{}}, nil
	}

	e.mu.Lock()
	cached := e.searchCache
	texts, contents, lang := e.texts, e.contents, e.meta.Language
	e.mu.Unlock()

	// mu is not held during the scan; texts and contents never change after load.
	matches := cached.matches
	if cached.term != term || matches == nil {
		var err error
		matches, err = findAll(ctx, texts, contents, lang, term)
		if err != nil {
			return models.SearchResults{}, err
		}
		e.mu.Lock()
		e.searchCache = searchCache{term: term, matches: matches}
		e.mu.Unlock()
	}

	from := (page - 1) * pageSize
	if from >= len(matches) {
		return models.SearchResults{Results: []models.SearchResult{}, TotalResults: len(matches)}, nil
	}
	to := min(from+pageSize, len(matches))
	return models.SearchResults{
		Results:      append([]models.SearchResult(nil), matches[from:to]...),
		TotalResults: len(matches),
	}, nil
}

// findAll scans every chapter for term, checking ctx between chapters
func findAll(ctx context.Context, texts []string, contents []TOCEntry, lang, term string) ([]models.SearchResult, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	pattern := search.New(tag, search.IgnoreCase).CompileString(term)

	matches := []models.SearchResult{}
	for ch, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offset := 0
		for offset < len(text) {
			start, end := pattern.IndexString(text[offset:])
			if start < 0 {
				break
			}
			start, end = start+offset, end+offset
			matches = append(matches, models.SearchResult{
				Cfi:     Ref{Chapter: ch, Start: start, End: end}.String(),
				Excerpt: excerpt(text, start, end),
				Section: titleOf(contents, ch),
			})
			if end <= start {
				end = start + 1
			}
			offset = end
		}
	}
	return matches, nil
}

// excerpt returns the match with some surrounding text on a single line
func excerpt(text string, start, end int) string {
	from := start
	for n := 0; n < excerptContext && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for n := 0; n < excerptContext && to < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}

	out := strings.Join(strings.Fields(text[from:to]), " ")
	if from > 0 {
		out = "…" + out
	}
	if to < len(text) {
		out += "…"
	}
	return out
}
