package renderer

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	refPrefix = "epubcfi(/6/"
	refStep   = "!/4,:"
	refSep    = ",:"
)

// Ref addresses a byte range inside one chapter of the book. Its string
// form is CFI-shaped so that it reads like the references produced by web
// EPUB renderers; callers outside this package treat it as opaque.
type Ref struct {
	Chapter int
	Start   int
	End     int
}

// String encodes the ref.
func (r Ref) String() string {
	return fmt.Sprintf("%s%d%s%d%s%d)", refPrefix, (r.Chapter+1)*2, refStep, r.Start, refSep, r.End)
}

// ParseRef decodes a ref produced by String.
func ParseRef(s string) (Ref, bool) {
	body, ok := strings.CutPrefix(s, refPrefix)
	if !ok {
		return Ref{}, false
	}
	body, ok = strings.CutSuffix(body, ")")
	if !ok {
		return Ref{}, false
	}
	step, rng, ok := strings.Cut(body, refStep)
	if !ok {
		return Ref{}, false
	}
	startStr, endStr, ok := strings.Cut(rng, refSep)
	if !ok {
		return Ref{}, false
	}

	spine, err := strconv.Atoi(step)
	if err != nil || spine < 2 || spine%2 != 0 {
		return Ref{}, false
	}
	start, err := strconv.Atoi(startStr)
	if err != nil || start < 0 {
		return Ref{}, false
	}
	end, err := strconv.Atoi(endStr)
	if err != nil || end < start {
		return Ref{}, false
	}
	return Ref{Chapter: spine/2 - 1, Start: start, End: end}, true
}

// Overlaps reports whether two refs share any text.
func (r Ref) Overlaps(other Ref) bool {
	if r.Chapter != other.Chapter {
		return false
	}
	if r.Start == r.End || other.Start == other.End {
		return r.Start >= other.Start && r.Start < other.End || other.Start >= r.Start && other.Start < r.End
	}
	return r.Start < other.End && other.Start < r.End
}
