package selector

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/local/deckscope/internal/metrics"
	"github.com/local/deckscope/internal/scoring"
)

// GeneralLabel is the category label for positionally selected pages.
const GeneralLabel = "general"

// Mode records which selection path produced a result.
type Mode string

const (
	ModeCategory   Mode = "category"
	ModePositional Mode = "positional"
)

// Limits bounds the size of a selection.
type Limits struct {
	MaxPages int
	MinPages int
}

func (l Limits) validate() error {
	if l.MaxPages <= 0 || l.MinPages <= 0 {
		return fmt.Errorf("page limits must be positive: max=%d min=%d", l.MaxPages, l.MinPages)
	}
	if l.MaxPages < l.MinPages {
		return fmt.Errorf("max_pages (%d) < min_pages (%d)", l.MaxPages, l.MinPages)
	}
	return nil
}

// Result maps category labels to ordered page lists. Page numbers are unique
// across the whole result.
type Result struct {
	Pages      map[string][]int
	Mode       Mode
	TotalPages int
	Elapsed    time.Duration
}

// Total returns the number of selected pages.
func (r Result) Total() int {
	n := 0
	for _, pages := range r.Pages {
		n += len(pages)
	}
	return n
}

// All returns every selected page in ascending order.
func (r Result) All() []int {
	var all []int
	for _, pages := range r.Pages {
		all = append(all, pages...)
	}
	sort.Ints(all)
	return all
}

// Breakdown returns per-category selection counts.
func (r Result) Breakdown() map[string]int {
	out := make(map[string]int, len(r.Pages))
	for label, pages := range r.Pages {
		out[label] = len(pages)
	}
	return out
}

// Positional templates keyed by document length. Front-loaded: decks put
// the summary, problem and financials openers early.
var (
	templateShort    = []int{1, 2, 3, 4, 5, 7, 10}   // <= 20 pages
	templateStandard = []int{1, 2, 3, 5, 8, 12, 18}  // 21-34 pages
	templateLong     = []int{1, 2, 3, 5, 10, 15, 25} // >= 35 pages
)

// Select picks the pages to route to visual analysis. Category-based
// selection runs when any page scored positively; otherwise the positional
// fallback. The audit event is a required output: it is how operators verify
// the cost-optimization claim.
func Select(scores []scoring.CategoryScore, totalPages int, lim Limits, perCall decimal.Decimal) (Result, error) {
	if err := lim.validate(); err != nil {
		return Result{}, err
	}
	if totalPages <= 0 {
		return Result{}, fmt.Errorf("total pages must be positive: %d", totalPages)
	}

	start := time.Now()

	informative := informativeScores(scores, totalPages)

	var res Result
	switch {
	case totalPages <= lim.MaxPages:
		res = selectAll(totalPages, informative)
	case len(informative) > 0:
		res = byCategory(informative, totalPages, lim)
	default:
		res = positional(totalPages, lim)
	}
	res.TotalPages = totalPages
	res.Elapsed = time.Since(start)

	audit(res, lim, perCall)
	return res, nil
}

func informativeScores(scores []scoring.CategoryScore, totalPages int) []scoring.CategoryScore {
	var out []scoring.CategoryScore
	for _, s := range scores {
		if s.Page >= 1 && s.Page <= totalPages && s.Informative() {
			out = append(out, s)
		}
	}
	return out
}

// selectAll covers documents at or under the page budget: every page is
// selected exactly once, labeled by its primary category when known.
func selectAll(totalPages int, informative []scoring.CategoryScore) Result {
	primary := make(map[int]string, len(informative))
	for _, s := range informative {
		primary[s.Page] = s.Primary
	}

	pages := make(map[string][]int)
	for p := 1; p <= totalPages; p++ {
		label := primary[p]
		if label == "" {
			label = GeneralLabel
		}
		pages[label] = append(pages[label], p)
	}

	mode := ModePositional
	if len(informative) > 0 {
		mode = ModeCategory
	}
	return Result{Pages: pages, Mode: mode}
}

// candidate is one (page, category) pairing considered for selection.
type candidate struct {
	page  int
	score float64
}

// byCategory runs the priority-ordered selection: tier 1 before 2 before 3,
// declaration order within a tier, per-category caps, global max, then a
// min-pages fill pass. The fill pass keeps enforcing per-category caps.
func byCategory(scores []scoring.CategoryScore, totalPages int, lim Limits) Result {
	// Per-category candidate lists, best score first, page ascending on ties.
	byCat := make(map[string][]candidate, len(scoring.Categories))
	for _, cat := range scoring.Categories {
		var cands []candidate
		for _, s := range scores {
			if sc := s.Score(cat.Name); sc > 0 {
				cands = append(cands, candidate{page: s.Page, score: sc})
			}
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].score != cands[j].score {
				return cands[i].score > cands[j].score
			}
			return cands[i].page < cands[j].page
		})
		byCat[cat.Name] = cands
	}

	pages := make(map[string][]int)
	taken := make(map[int]bool)
	catCount := make(map[string]int)
	total := 0

	// First pass: priority order, per-category caps, stop at the global max.
	for tier := 1; tier <= 3 && total < lim.MaxPages; tier++ {
		for _, cat := range scoring.Categories {
			if cat.Tier != tier {
				continue
			}
			for _, c := range byCat[cat.Name] {
				if total >= lim.MaxPages || catCount[cat.Name] >= cat.MaxPages {
					break
				}
				if taken[c.page] {
					continue
				}
				taken[c.page] = true
				pages[cat.Name] = append(pages[cat.Name], c.page)
				catCount[cat.Name]++
				total++
			}
		}
	}

	// Second pass: fill to the minimum from the highest-scoring leftover
	// pages, any category. Caps stay in force so the fill cannot push a
	// category over its stated maximum.
	if total < lim.MinPages {
		var leftovers []struct {
			candidate
			cat string
		}
		for _, cat := range scoring.Categories {
			for _, c := range byCat[cat.Name] {
				if !taken[c.page] && catCount[cat.Name] < cat.MaxPages {
					leftovers = append(leftovers, struct {
						candidate
						cat string
					}{c, cat.Name})
				}
			}
		}
		sort.SliceStable(leftovers, func(i, j int) bool {
			if leftovers[i].score != leftovers[j].score {
				return leftovers[i].score > leftovers[j].score
			}
			return leftovers[i].page < leftovers[j].page
		})
		for _, lo := range leftovers {
			if total >= lim.MinPages {
				break
			}
			if taken[lo.page] || catCount[lo.cat] >= scoringCap(lo.cat) {
				continue
			}
			taken[lo.page] = true
			pages[lo.cat] = append(pages[lo.cat], lo.page)
			catCount[lo.cat]++
			total++
		}
	}

	for label := range pages {
		sort.Ints(pages[label])
	}

	return Result{Pages: pages, Mode: ModeCategory}
}

func scoringCap(name string) int {
	if cat, ok := scoring.CategoryByName(name); ok {
		return cat.MaxPages
	}
	return 0
}

// positional selects pages from a fixed template keyed by document length,
// used when content scoring yielded nothing.
func positional(totalPages int, lim Limits) Result {
	var template []int
	switch {
	case totalPages <= 20:
		template = templateShort
	case totalPages <= 34:
		template = templateStandard
	default:
		template = templateLong
	}

	taken := make(map[int]bool)
	var selected []int
	for _, p := range template {
		if len(selected) >= lim.MaxPages {
			break
		}
		if p >= 1 && p <= totalPages && !taken[p] {
			taken[p] = true
			selected = append(selected, p)
		}
	}

	// Extend with the lowest-numbered unselected pages to reach the minimum.
	for p := 1; p <= totalPages && len(selected) < lim.MinPages; p++ {
		if !taken[p] {
			taken[p] = true
			selected = append(selected, p)
		}
	}

	sort.Ints(selected)
	return Result{
		Pages: map[string][]int{GeneralLabel: selected},
		Mode:  ModePositional,
	}
}

// audit emits the required selection audit trail.
func audit(res Result, lim Limits, perCall decimal.Decimal) {
	selected := res.Total()
	estimated := perCall.Mul(decimal.NewFromInt(int64(selected)))
	full := perCall.Mul(decimal.NewFromInt(int64(res.TotalPages)))

	savings := 0.0
	if res.TotalPages > 0 {
		savings = 1 - float64(selected)/float64(res.TotalPages)
	}

	log.Info().
		Str("mode", string(res.Mode)).
		Int("total_pages", res.TotalPages).
		Int("selected", selected).
		Int("max_pages", lim.MaxPages).
		Int("min_pages", lim.MinPages).
		Dur("elapsed", res.Elapsed).
		Interface("breakdown", res.Breakdown()).
		Str("estimated_cost", estimated.StringFixed(4)).
		Str("full_cost", full.StringFixed(4)).
		Float64("savings_ratio", savings).
		Msg("page selection completed")

	metrics.ObserveSelection(res.Elapsed)
	metrics.AddPagesSelected(string(res.Mode), selected)
}
