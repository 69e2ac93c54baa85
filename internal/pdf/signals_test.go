package pdf

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blankPage returns a white grayscale image.
func blankPage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

// fillRect darkens a rectangle on a grayscale image.
func fillRect(img *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
}

func TestCountDistinctColors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	assert.Equal(t, 1, countDistinctColors(img))

	// Four saturated quadrants plus nothing else.
	quads := []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
		{R: 255, G: 255, A: 255},
	}
	for i, c := range quads {
		x0, y0 := (i%2)*32, (i/2)*32
		for y := y0; y < y0+32; y++ {
			for x := x0; x < x0+32; x++ {
				img.Set(x, y, c)
			}
		}
	}
	assert.Equal(t, 4, countDistinctColors(img))
}

func TestCountDistinctColors_QuantizesNearbyShades(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			// Shades within one 16-level bucket collapse to one color.
			img.Set(x, y, color.RGBA{R: uint8(240 + x%8), G: 240, B: 240, A: 255})
		}
	}
	assert.Equal(t, 1, countDistinctColors(img))
}

func TestApplyThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 50})
	img.SetGray(1, 0, color.Gray{Y: 230})

	binary := applyThreshold(img, BinaryThreshold)
	assert.Equal(t, uint8(0), binary.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), binary.GrayAt(1, 0).Y)
}

func TestFindConnectedComponents(t *testing.T) {
	img := blankPage(200, 200)
	fillRect(img, 10, 10, 40, 40)    // 30x30 block
	fillRect(img, 100, 100, 180, 120) // 80x20 block
	fillRect(img, 190, 190, 193, 193) // 3x3 noise, below min pixels

	comps := findConnectedComponents(img, MinComponentPixels)
	require.Len(t, comps, 2)

	assert.Equal(t, 30, comps[0].Width)
	assert.Equal(t, 30, comps[0].Height)
	assert.Equal(t, 900, comps[0].PixelCount)
	assert.Equal(t, 80, comps[1].Width)
	assert.Equal(t, 20, comps[1].Height)
}

func TestFindConnectedComponents_TouchingRegionsMerge(t *testing.T) {
	img := blankPage(100, 100)
	fillRect(img, 10, 10, 30, 30)
	fillRect(img, 29, 10, 50, 30) // overlaps one column with the first

	comps := findConnectedComponents(img, MinComponentPixels)
	require.Len(t, comps, 1)
	assert.Equal(t, 40, comps[0].Width)
}

func TestCleanText(t *testing.T) {
	raw := "Growth Strategy\n\n3\nPage 3\nCONFIDENTIAL\n---\nRevenue grew 40% year over year.\n"
	got := cleanText(raw, 3)

	assert.Contains(t, got, "Revenue grew 40% year over year.")
	assert.NotContains(t, got, "Page 3")
	assert.NotContains(t, got, "CONFIDENTIAL")
	assert.NotContains(t, got, "---")
}

func TestIsPageNumber(t *testing.T) {
	assert.True(t, isPageNumber("7", 7))
	assert.True(t, isPageNumber("Page 7", 7))
	assert.True(t, isPageNumber("- 7 -", 7))
	assert.True(t, isPageNumber("[7]", 7))
	assert.False(t, isPageNumber("7", 8))
	assert.False(t, isPageNumber("7 reasons to buy", 7))
}

func TestIsHeaderFooter(t *testing.T) {
	assert.True(t, isHeaderFooter("ACME CORP"))
	assert.True(t, isHeaderFooter("Confidential - do not distribute"))
	assert.False(t, isHeaderFooter("Our revenue model is subscription based"))
}

func TestCountVisibleChars(t *testing.T) {
	assert.Equal(t, 0, countVisibleChars("   \n\t"))
	assert.Equal(t, 9, countVisibleChars("abcde 123.  "))
}
