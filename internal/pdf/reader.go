package pdf

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

const (
	// DPI for structural profiling renders. Low on purpose: signals only
	// need coarse geometry, not print quality.
	ProfileDPI = 72.0

	// Approximate visible character count of a page fully covered in text.
	// Used to derive the text-area ratio from extracted text.
	fullPageChars = 1800
)

// FitzReader implements Reader on top of go-fitz (MuPDF bindings).
type FitzReader struct{}

// NewFitzReader creates a go-fitz based document reader.
func NewFitzReader() *FitzReader { return &FitzReader{} }

// PageCount returns the number of pages via pdfcpu. pdfcpu also rejects
// corrupt or non-PDF payloads early, before any rendering work starts.
func (r *FitzReader) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// Profile derives the structural signals of a single page: embedded image
// count, vector-drawing count, text coverage, color diversity and layout
// block count.
func (r *FitzReader) Profile(path string, page int) (PageProfile, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return PageProfile{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	idx := page - 1
	if idx < 0 || idx >= doc.NumPage() {
		return PageProfile{}, fmt.Errorf("page %d out of range (document has %d pages)", page, doc.NumPage())
	}

	raw, err := doc.Text(idx)
	if err != nil {
		return PageProfile{}, fmt.Errorf("failed to extract text from page %d: %w", page, err)
	}
	text := cleanText(raw, page)

	html, err := doc.HTML(idx, false)
	if err != nil {
		// HTML export is only used for the embedded image count; keep going.
		log.Warn().Err(err).Int("page", page).Msg("html export failed, image count unavailable")
		html = ""
	}
	imageCount := strings.Count(html, "<img")

	img, err := doc.ImageDPI(idx, ProfileDPI)
	if err != nil {
		return PageProfile{}, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	colorDiversity := countDistinctColors(img)
	gray := toGrayscale(img)
	binary := applyThreshold(gray, BinaryThreshold)
	components := findConnectedComponents(binary, MinComponentPixels)

	cmPerPixel := 2.54 / ProfileDPI
	graphicComponents := 0
	for _, comp := range components {
		if float64(comp.Width)*cmPerPixel >= MinGraphicSizeCM &&
			float64(comp.Height)*cmPerPixel >= MinGraphicSizeCM {
			graphicComponents++
		}
	}
	drawingCount := graphicComponents - imageCount
	if drawingCount < 0 {
		drawingCount = 0
	}

	textRatio := float64(countVisibleChars(text)) / fullPageChars
	if textRatio > 1 {
		textRatio = 1
	}

	profile := PageProfile{
		Page:           page,
		ImageCount:     imageCount,
		DrawingCount:   drawingCount,
		TextAreaRatio:  textRatio,
		ColorDiversity: colorDiversity,
		BlockCount:     len(components),
		Text:           text,
	}

	log.Debug().
		Int("page", page).
		Int("images", profile.ImageCount).
		Int("drawings", profile.DrawingCount).
		Int("blocks", profile.BlockCount).
		Int("colors", profile.ColorDiversity).
		Float64("text_ratio", profile.TextAreaRatio).
		Msg("profiled page")

	return profile, nil
}

// cleanText removes headers, footers, page numbers and noise lines.
func cleanText(text string, page int) string {
	lines := strings.Split(text, "\n")
	var cleaned []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isPageNumber(trimmed, page) {
			continue
		}
		if isHeaderFooter(trimmed) {
			continue
		}
		if isNoise(trimmed) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

func isPageNumber(line string, page int) bool {
	if line == fmt.Sprintf("%d", page) {
		return true
	}
	patterns := []string{
		fmt.Sprintf("Page %d", page),
		fmt.Sprintf("- %d -", page),
		fmt.Sprintf("[%d]", page),
	}
	for _, pattern := range patterns {
		if strings.EqualFold(line, pattern) {
			return true
		}
	}
	return false
}

func isHeaderFooter(line string) bool {
	if len(line) < 3 {
		return true
	}
	if len(line) < 50 && strings.ToUpper(line) == line {
		if len(strings.Fields(line)) <= 2 {
			return true
		}
	}
	footerPatterns := []string{
		"CONFIDENTIAL",
		"COPYRIGHT",
		"ALL RIGHTS RESERVED",
		"PROPRIETARY",
	}
	upper := strings.ToUpper(line)
	for _, pattern := range footerPatterns {
		if strings.Contains(upper, pattern) && len(line) < 100 {
			return true
		}
	}
	return false
}

func isNoise(line string) bool {
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func countVisibleChars(text string) int {
	count := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == ',' || r == ';' || r == ':' || r == '!' || r == '?' {
			count++
		}
	}
	return count
}
