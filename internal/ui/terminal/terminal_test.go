package terminal

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFit(t *testing.T) {
	img := solid(400, 600, color.White)

	fitted := Fit(img, 200, 200)
	assert.Equal(t, 133, fitted.Bounds().Dx())
	assert.Equal(t, 200, fitted.Bounds().Dy())

	small := solid(10, 10, color.White)
	assert.Same(t, small, Fit(small, 200, 200))
}

func TestRenderBlocks(t *testing.T) {
	out := RenderBlocks(solid(20, 20, color.RGBA{R: 255, A: 255}), 10, 10)

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, 10, strings.Count(lines[0], "▀"))
}

func TestRenderBlocks_Empty(t *testing.T) {
	assert.Empty(t, RenderBlocks(solid(20, 20, color.White), 0, 10))
	assert.Empty(t, RenderBlocks(image.NewRGBA(image.Rect(0, 0, 0, 0)), 10, 10))
}

func TestRenderImage_NoProtocolUsesBlocks(t *testing.T) {
	out, err := RenderImage(solid(4, 4, color.Black), TermModeNone, 4, 2)

	assert.NoError(t, err)
	assert.Contains(t, out, "▀")
}

func TestTermImageMode_String(t *testing.T) {
	assert.Equal(t, "Kitty", TermModeKitty.String())
	assert.Equal(t, "None", TermModeNone.String())
	assert.Empty(t, ClearImages(TermModeNone))
}
