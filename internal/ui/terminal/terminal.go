// Package terminal draws book covers in the terminal, through an inline
// image protocol where one is available and with colored half blocks
// everywhere else.
package terminal

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	stddraw "image/draw"
	"strings"

	"github.com/BourgeoisBear/rasterm"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

// TermImageMode represents the terminal's image display capability
type TermImageMode int

const (
	// TermModeNone indicates no image support
	TermModeNone TermImageMode = iota
	// TermModeKitty indicates Kitty graphics protocol support
	TermModeKitty
	// TermModeIterm indicates iTerm2 graphics protocol support
	TermModeIterm
	// TermModeSixel indicates Sixel graphics protocol support
	TermModeSixel
)

// CoverImageID is the Kitty image id used for the cover splash
const CoverImageID uint32 = 2024

// Approximate cell size in pixels, used to size protocol images
const (
	cellWidth  = 10
	cellHeight = 20
)

// String returns a human-readable name for the terminal mode
func (m TermImageMode) String() string {
	switch m {
	case TermModeKitty:
		return "Kitty"
	case TermModeIterm:
		return "iTerm2"
	case TermModeSixel:
		return "Sixel"
	default:
		return "None"
	}
}

// DetectTerminalMode checks which image protocol the terminal supports
func DetectTerminalMode() TermImageMode {
	if rasterm.IsKittyCapable() {
		return TermModeKitty
	}
	if rasterm.IsItermCapable() {
		return TermModeIterm
	}
	if capable, _ := rasterm.IsSixelCapable(); capable {
		return TermModeSixel
	}
	return TermModeNone
}

// Fit scales img down to fit within maxW x maxH pixels, keeping its aspect ratio
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return img
	}

	dstW, dstH := maxW, h*maxW/w
	if dstH > maxH {
		dstW, dstH = w*maxH/h, maxH
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(dstW, 1), max(dstH, 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// RenderImage renders img into a cols x rows cell box for the given mode.
// TermModeNone falls back to half-block rendering.
func RenderImage(img image.Image, mode TermImageMode, cols, rows int) (string, error) {
	if mode == TermModeNone {
		return RenderBlocks(img, cols, rows), nil
	}

	fitted := Fit(img, cols*cellWidth, rows*cellHeight)
	var buf bytes.Buffer
	var err error
	switch mode {
	case TermModeKitty:
		err = rasterm.KittyWriteImage(&buf, fitted, rasterm.KittyImgOpts{ImageId: CoverImageID})
	case TermModeIterm:
		err = rasterm.ItermWriteImage(&buf, fitted)
	case TermModeSixel:
		err = rasterm.SixelWriteImage(&buf, toPaletted(fitted))
	}
	if err != nil {
		return "", fmt.Errorf("render %s image: %w", mode, err)
	}
	return buf.String(), nil
}

// toPaletted converts an image to the paletted form Sixel needs
func toPaletted(img image.Image) *image.Paletted {
	bounds := img.Bounds()
	paletted := image.NewPaletted(bounds, palette.Plan9)
	stddraw.Draw(paletted, bounds, img, bounds.Min, stddraw.Src)
	return paletted
}

// RenderBlocks draws img with "▀" cells, two pixels per cell
func RenderBlocks(img image.Image, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}

	// keep the aspect ratio: one cell is roughly twice as tall as wide
	w, h := cols, cols*b.Dy()/b.Dx()
	if h > rows*2 {
		w, h = rows*2*b.Dx()/b.Dy(), rows*2
	}
	w, h = max(w, 1), max(h-h%2, 2)

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, b, draw.Src, nil)

	var out strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			out.WriteString(lipgloss.NewStyle().
				Foreground(hexColor(small, x, y)).
				Background(hexColor(small, x, y+1)).
				Render("▀"))
		}
		if y+2 < h {
			out.WriteByte('\n')
		}
	}
	return out.String()
}

func hexColor(img *image.RGBA, x, y int) lipgloss.Color {
	c := img.RGBAAt(x, y)
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B))
}

// ClearImages returns the escape sequence that removes protocol images
func ClearImages(mode TermImageMode) string {
	switch mode {
	case TermModeKitty:
		return fmt.Sprintf("\x1b_Ga=d,i=%d\x1b\\", CoverImageID)
	case TermModeIterm, TermModeSixel:
		return "\x1b[2J\x1b[H"
	default:
		return ""
	}
}
