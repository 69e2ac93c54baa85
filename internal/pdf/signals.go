package pdf

import (
	"image"
	"image/color"
)

const (
	// Binary threshold for separating content from background.
	// 0-255, higher keeps only dark pixels.
	BinaryThreshold = 200

	// Minimum component size in pixels at ProfileDPI (filters noise).
	MinComponentPixels = 50

	// Minimum size in cm for a component to count as a graphic element.
	MinGraphicSizeCM = 1.0

	// Stride for color sampling; every Nth pixel in both axes.
	colorSampleStride = 4
)

// Component represents a connected region of dark pixels.
type Component struct {
	MinX       int
	MinY       int
	MaxX       int
	MaxY       int
	Width      int
	Height     int
	PixelCount int
}

// countDistinctColors samples the page bitmap and counts distinct colors
// after quantizing each channel to 16 levels.
func countDistinctColors(img image.Image) int {
	bounds := img.Bounds()
	seen := make(map[uint32]struct{})

	for y := bounds.Min.Y; y < bounds.Max.Y; y += colorSampleStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += colorSampleStride {
			r, g, b, _ := img.At(x, y).RGBA()
			key := (r >> 12 << 8) | (g >> 12 << 4) | (b >> 12)
			seen[key] = struct{}{}
		}
	}

	return len(seen)
}

// toGrayscale converts an image to grayscale.
func toGrayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}

	return gray
}

// applyThreshold converts grayscale to binary (0 or 255).
func applyThreshold(img *image.Gray, threshold uint8) *image.Gray {
	bounds := img.Bounds()
	binary := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y < threshold {
				binary.SetGray(x, y, color.Gray{Y: 0})
			} else {
				binary.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return binary
}

// findConnectedComponents finds dark connected components via flood-fill.
func findConnectedComponents(img *image.Gray, minPixels int) []Component {
	bounds := img.Bounds()
	visited := make([][]bool, bounds.Dy())
	for i := range visited {
		visited[i] = make([]bool, bounds.Dx())
	}

	var components []Component

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y == 255 {
				continue
			}

			comp := floodFill(img, visited, x, y, bounds)
			if comp.PixelCount >= minPixels {
				components = append(components, comp)
			}
		}
	}

	return components
}

// floodFill performs iterative flood fill and returns component extent.
func floodFill(img *image.Gray, visited [][]bool, startX, startY int, bounds image.Rectangle) Component {
	comp := Component{
		MinX: startX,
		MinY: startY,
		MaxX: startX,
		MaxY: startY,
	}

	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y

		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		if visited[y-bounds.Min.Y][x-bounds.Min.X] || img.GrayAt(x, y).Y == 255 {
			continue
		}

		visited[y-bounds.Min.Y][x-bounds.Min.X] = true
		comp.PixelCount++

		if x < comp.MinX {
			comp.MinX = x
		}
		if x > comp.MaxX {
			comp.MaxX = x
		}
		if y < comp.MinY {
			comp.MinY = y
		}
		if y > comp.MaxY {
			comp.MaxY = y
		}

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	comp.Width = comp.MaxX - comp.MinX + 1
	comp.Height = comp.MaxY - comp.MinY + 1

	return comp
}
