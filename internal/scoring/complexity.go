package scoring

import (
	"strings"

	"github.com/local/deckscope/internal/pdf"
)

// Sub-score weights. They sum to 1 so the combined score stays in [0,1]
// before the financial boost.
const (
	weightImages  = 0.35
	weightDrawing = 0.25
	weightLayout  = 0.20
	weightColor   = 0.15
	weightNonText = 0.05

	// Added when a page mentions financial terms and carries graphics.
	// Charts of numbers are the pages that lose the most in text-only mode.
	financialBoost = 0.20

	// DefaultComplexityThreshold marks a page as needing visual analysis.
	DefaultComplexityThreshold = 0.6

	// FallbackComplexityScore is assigned when structural extraction failed
	// and no signals are available.
	FallbackComplexityScore = 0.3
)

// financialKeywords trigger the complexity boost when the page also carries
// images or dense drawings.
var financialKeywords = []string{
	"revenue", "arr", "mrr", "ebitda", "margin", "burn rate", "runway",
	"cash flow", "p&l", "gross profit", "forecast", "projection",
	"unit economics", "cap table",
}

// ComplexityScore is the normalized visual-complexity estimate of a page.
type ComplexityScore struct {
	Page           int
	Score          float64 // clamped to [0,1]
	RequiresVisual bool
	Boosted        bool // financial-graphics boost applied
	Fallback       bool // produced without structural signals
}

// ComplexityScorer derives complexity scores from page profiles.
type ComplexityScorer struct {
	threshold float64
}

// NewComplexityScorer creates a scorer with the given visual-analysis
// threshold. Values outside (0,1] fall back to the default.
func NewComplexityScorer(threshold float64) *ComplexityScorer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultComplexityThreshold
	}
	return &ComplexityScorer{threshold: threshold}
}

// Score computes the complexity of a page from its structural profile.
// Deterministic and total: malformed signals contribute zero complexity.
func (s *ComplexityScorer) Score(profile pdf.PageProfile) ComplexityScore {
	imageScore := clamp01(float64(profile.ImageCount) * 0.3)
	drawingScore := clamp01(float64(profile.DrawingCount) * 0.1)

	layoutScore := 0.0
	if profile.BlockCount > 5 {
		layoutScore = 0.4
	}

	colorScore := clamp01(float64(profile.ColorDiversity) / 50)
	textComplement := clamp01(1 - profile.TextAreaRatio)

	score := clamp01(weightImages*imageScore +
		weightDrawing*drawingScore +
		weightLayout*layoutScore +
		weightColor*colorScore +
		weightNonText*textComplement)

	boosted := false
	if hasFinancialKeyword(profile.Text) && (profile.ImageCount > 0 || profile.DrawingCount > 3) {
		score = clamp01(score + financialBoost)
		boosted = true
	}

	return ComplexityScore{
		Page:           profile.Page,
		Score:          score,
		RequiresVisual: boosted || score >= s.threshold,
		Boosted:        boosted,
	}
}

// FallbackComplexity is used when a page's structural extraction failed.
// The failure never propagates into scoring; the page gets a neutral score
// and is not forced into visual analysis.
func FallbackComplexity(page int) ComplexityScore {
	return ComplexityScore{
		Page:     page,
		Score:    FallbackComplexityScore,
		Fallback: true,
	}
}

func hasFinancialKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range financialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
