package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Options controls page rendering.
type Options struct {
	DPI          int
	MaxDimension int // pixel cap for the longer edge; 0 disables
	JPEGQuality  int
}

// Image is a rendered page.
type Image struct {
	Page   int
	JPEG   []byte
	Width  int
	Height int
	DPI    int
}

// MIME is the media type of rendered page images.
const MIME = "image/jpeg"

// Page renders a single PDF page as an in-memory JPEG. When the bitmap at the
// requested DPI exceeds MaxDimension, the page is re-rendered at a
// proportionally reduced DPI instead of being scaled in software.
func Page(path string, page int, opts Options) (Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 150
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return Image{}, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	bounds := img.Bounds()
	longest := bounds.Dx()
	if bounds.Dy() > longest {
		longest = bounds.Dy()
	}

	if opts.MaxDimension > 0 && longest > opts.MaxDimension {
		scaled := dpi * opts.MaxDimension / longest
		if scaled < 36 {
			scaled = 36
		}
		log.Debug().
			Int("page", page).
			Int("dpi", dpi).
			Int("scaled_dpi", scaled).
			Int("longest_px", longest).
			Msg("re-rendering page under max dimension")

		img, err = doc.ImageDPI(page-1, float64(scaled))
		if err != nil {
			return Image{}, fmt.Errorf("failed to re-render page %d: %w", page, err)
		}
		bounds = img.Bounds()
		dpi = scaled
	}

	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = 85
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Image{}, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	out := Image{
		Page:   page,
		JPEG:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		DPI:    dpi,
	}

	log.Debug().
		Int("page", page).
		Int("jpeg_size", len(out.JPEG)).
		Int("width", out.Width).
		Int("height", out.Height).
		Int("dpi", dpi).
		Msg("rendered page to JPEG")

	return out, nil
}

// Base64 returns the image payload encoded for analyzer transport.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.JPEG)
}
