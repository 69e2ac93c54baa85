package scoring

import "strings"

// Category is one of the fixed business-relevance buckets used to diversify
// page selection. The set is a compile-time enumeration: a category that is
// missing here simply does not exist.
type Category struct {
	Name     string
	Keywords []string
	Tier     int // 1 = highest priority .. 3 = lowest
	MaxPages int // per-category selection cap
}

// The fixed categories, in declaration order. Declaration order is the
// tie-break for equal scores and the processing order within a tier.
var Categories = []Category{
	{
		Name: "financials",
		Keywords: []string{
			"revenue", "arr", "mrr", "ebitda", "margin", "burn", "runway",
			"p&l", "profit", "forecast", "projection", "cash flow",
			"unit economics",
		},
		Tier:     1,
		MaxPages: 2,
	},
	{
		Name: "competition",
		Keywords: []string{
			"competitor", "competitive", "landscape", "alternative",
			"versus", "moat", "differentiation", "incumbent",
		},
		Tier:     1,
		MaxPages: 2,
	},
	{
		Name: "market",
		Keywords: []string{
			"market", "tam", "sam", "som", "opportunity", "industry",
			"segment", "addressable",
		},
		Tier:     2,
		MaxPages: 2,
	},
	{
		Name: "traction",
		Keywords: []string{
			"traction", "users", "customers", "growth", "retention",
			"churn", "engagement", "mau", "dau", "pipeline",
		},
		Tier:     2,
		MaxPages: 2,
	},
	{
		Name: "team",
		Keywords: []string{
			"team", "founder", "ceo", "cto", "advisor", "experience",
			"background", "leadership",
		},
		Tier:     3,
		MaxPages: 1,
	},
}

// CategoryByName returns the category with the given name.
func CategoryByName(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryScore maps a page's text to weighted category relevance.
// A page with zero matches anywhere has Total 0 and no Primary; that is the
// canonical uninformative-page signal, not an error.
type CategoryScore struct {
	Page    int
	Scores  map[string]float64
	Total   float64
	Primary string // empty when no category matched
}

// Relevance scores a page's text against every category. Matching is
// case-insensitive substring counting; each category's weighted score is
// matches*(4-tier) plus a small density bonus capped at 0.5.
func Relevance(page int, text string) CategoryScore {
	lower := strings.ToLower(text)

	result := CategoryScore{
		Page:   page,
		Scores: make(map[string]float64, len(Categories)),
	}

	best := 0.0
	for _, cat := range Categories {
		matches := 0
		for _, kw := range cat.Keywords {
			matches += strings.Count(lower, kw)
		}
		if matches == 0 {
			continue
		}

		bonus := float64(matches) / 10
		if bonus > 0.5 {
			bonus = 0.5
		}
		weighted := float64(matches)*float64(4-cat.Tier) + bonus

		result.Scores[cat.Name] = weighted
		result.Total += weighted

		// Strictly greater keeps the first-declared category on ties.
		if weighted > best {
			best = weighted
			result.Primary = cat.Name
		}
	}

	return result
}

// Informative reports whether the page matched any category at all.
func (c CategoryScore) Informative() bool { return c.Total > 0 }

// Score returns the weighted score for a category name, zero when absent.
func (c CategoryScore) Score(category string) float64 { return c.Scores[category] }
