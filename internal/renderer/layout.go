package renderer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

const (
	// baseFontSize is the font size at which text fills the whole viewport width
	baseFontSize = 14
	minColumns   = 20
)

// Line is one wrapped line of chapter text with its byte offsets
type Line struct {
	Text  string
	Start int
	End   int
}

// page is a viewport-sized run of lines from a single chapter
type page struct {
	chapter int
	lines   []Line
	start   int
	end     int
}

// columnsFor returns the wrap width for a viewport and font size.
// Larger fonts give narrower lines, simulating bigger glyphs in a terminal.
func columnsFor(width, fontSize int) int {
	base := width - 4 // padding
	if fontSize <= 0 {
		fontSize = baseFontSize
	}
	cols := base * baseFontSize / fontSize
	if cols > base {
		cols = base
	}
	if cols < minColumns {
		cols = minColumns
	}
	return cols
}

// paginate lays out every chapter into pages of at most rows lines
func paginate(texts []string, cols, rows int) []page {
	if rows < 1 {
		rows = 1
	}
	var pages []page
	for ch, text := range texts {
		lines := wrapText(text, cols)
		if len(lines) == 0 {
			pages = append(pages, page{chapter: ch})
			continue
		}
		for i := 0; i < len(lines); i += rows {
			chunk := lines[i:min(i+rows, len(lines))]
			pages = append(pages, page{
				chapter: ch,
				lines:   chunk,
				start:   chunk[0].Start,
				end:     chunk[len(chunk)-1].End,
			})
		}
	}
	return pages
}

// wrapText wraps text into lines no wider than width terminal cells,
// keeping the byte offsets of every line within text. Words wider than a
// line are broken between runes.
func wrapText(text string, width int) []Line {
	var lines []Line
	paraStart := 0
	for {
		nl := strings.IndexByte(text[paraStart:], '\n')
		paraEnd := len(text)
		if nl >= 0 {
			paraEnd = paraStart + nl
		}
		lines = append(lines, wrapParagraph(text, paraStart, paraEnd, width)...)
		if nl < 0 {
			break
		}
		paraStart = paraEnd + 1
	}
	return lines
}

func wrapParagraph(text string, start, end, width int) []Line {
	if strings.TrimSpace(text[start:end]) == "" {
		if start == end && start == len(text) && start > 0 {
			return nil
		}
		return []Line{{Start: start, End: start}}
	}

	var lines []Line
	lineStart, lineEnd, lineWidth := -1, -1, 0
	i := start
	for i < end {
		r, size := utf8.DecodeRuneInString(text[i:end])
		if unicode.IsSpace(r) {
			i += size
			continue
		}

		wordStart := i
		for i < end {
			r, size = utf8.DecodeRuneInString(text[i:end])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
		wordWidth := runewidth.StringWidth(text[wordStart:i])

		if wordWidth > width {
			if lineStart >= 0 {
				lines = append(lines, Line{Text: text[lineStart:lineEnd], Start: lineStart, End: lineEnd})
			}
			pieceStart, pieceWidth := wordStart, 0
			for j := wordStart; j < i; {
				r, size := utf8.DecodeRuneInString(text[j:i])
				w := runewidth.RuneWidth(r)
				if pieceWidth > 0 && pieceWidth+w > width {
					lines = append(lines, Line{Text: text[pieceStart:j], Start: pieceStart, End: j})
					pieceStart, pieceWidth = j, 0
				}
				pieceWidth += w
				j += size
			}
			lineStart, lineEnd, lineWidth = pieceStart, i, pieceWidth
			continue
		}

		switch {
		case lineStart < 0:
			lineStart, lineEnd, lineWidth = wordStart, i, wordWidth
		case lineWidth+1+wordWidth <= width:
			lineEnd, lineWidth = i, lineWidth+1+wordWidth
		default:
			lines = append(lines, Line{Text: text[lineStart:lineEnd], Start: lineStart, End: lineEnd})
			lineStart, lineEnd, lineWidth = wordStart, i, wordWidth
		}
	}
	if lineStart >= 0 {
		lines = append(lines, Line{Text: text[lineStart:lineEnd], Start: lineStart, End: lineEnd})
	}
	return lines
}
