package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/local/deckscope/internal/ai"
	"github.com/local/deckscope/internal/budget"
	"github.com/local/deckscope/internal/metrics"
	"github.com/local/deckscope/internal/pdf"
	"github.com/local/deckscope/internal/render"
	"github.com/local/deckscope/internal/scoring"
	"github.com/local/deckscope/internal/selector"
)

// RenderFunc renders one page to an image. Injectable for tests.
type RenderFunc func(path string, page int, opts render.Options) (render.Image, error)

// Dependencies are the external collaborators of the pipeline.
type Dependencies struct {
	Reader   pdf.Reader
	Analyzer ai.Analyzer
	Ledger   *budget.Ledger
	Render   RenderFunc // defaults to render.Page
}

// Options tunes the pipeline.
type Options struct {
	Limits              selector.Limits
	ComplexityThreshold float64
	Render              render.Options
	Concurrency         int
	RequestTimeout      time.Duration
	AnalyzerMaxTokens   int
}

// Orchestrator runs the full selection-and-analysis pipeline for a document.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	scorer *scoring.ComplexityScorer
}

// New validates wiring and limits. Misconfiguration is a hard error.
func New(deps Dependencies, opts Options) (*Orchestrator, error) {
	if deps.Reader == nil || deps.Analyzer == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("reader, analyzer and ledger are required")
	}
	if opts.Limits.MaxPages <= 0 || opts.Limits.MinPages <= 0 || opts.Limits.MaxPages < opts.Limits.MinPages {
		return nil, fmt.Errorf("invalid page limits: max=%d min=%d", opts.Limits.MaxPages, opts.Limits.MinPages)
	}
	if deps.Render == nil {
		deps.Render = render.Page
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		scorer: scoring.NewComplexityScorer(opts.ComplexityThreshold),
	}, nil
}

// PageAnalysis is the outcome of one selected page.
type PageAnalysis struct {
	Page     int           `json:"page"`
	Category string        `json:"category"`
	Success  bool          `json:"success"`
	Content  string        `json:"content,omitempty"`
	Provider string        `json:"provider,omitempty"`
	Model    string        `json:"model,omitempty"`
	CostUSD  float64       `json:"cost_usd"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// DocumentResult aggregates a whole pipeline run. It is always well-formed:
// zero successful analyses plus TextOnlyFallback=true signals the caller to
// process the document as text, never an error.
type DocumentResult struct {
	JobID            string           `json:"job_id"`
	Document         string           `json:"document"`
	TotalPages       int              `json:"total_pages"`
	Mode             selector.Mode    `json:"mode,omitempty"`
	Selection        map[string][]int `json:"selection,omitempty"`
	Analyzed         int              `json:"analyzed"`
	Succeeded        int              `json:"succeeded"`
	TotalCostUSD     float64          `json:"total_cost_usd"`
	SavingsRatio     float64          `json:"savings_ratio"`
	TextOnlyFallback bool             `json:"text_only_fallback"`
	Pages            []PageAnalysis   `json:"pages,omitempty"`
	Elapsed          time.Duration    `json:"elapsed"`
}

// pageData is the scored state of one page during a run.
type pageData struct {
	profile    pdf.ProfileResult
	complexity scoring.ComplexityScore
	category   scoring.CategoryScore
}

// Process runs the pipeline: profile, score, admission-check, select,
// render+analyze with bounded concurrency, record spend, aggregate.
func (o *Orchestrator) Process(ctx context.Context, docPath string) (*DocumentResult, error) {
	jobID := uuid.NewString()
	start := time.Now()
	res := &DocumentResult{JobID: jobID, Document: docPath}

	logger := log.With().Str("job_id", jobID).Str("document", docPath).Logger()

	total, err := o.deps.Reader.PageCount(docPath)
	if err != nil || total <= 0 {
		// Unreadable document: degrade to text-only fallback, never propagate.
		logger.Warn().Err(err).Msg("document unreadable, routing to text-only fallback")
		res.TextOnlyFallback = true
		res.Elapsed = time.Since(start)
		return res, nil
	}
	res.TotalPages = total

	pages := o.scorePages(docPath, total, &logger)

	// Admission-check the number of pages the selector can actually return,
	// not just the scored candidates: at or under the page budget the
	// selector takes every page, and the positional fallback still analyzes
	// pages when nothing scored.
	candidates := candidatePages(pages)
	candidateCount := len(candidates)
	if total <= o.opts.Limits.MaxPages {
		candidateCount = total
	} else if candidateCount == 0 {
		candidateCount = o.opts.Limits.MaxPages
	}

	check, err := o.deps.Ledger.Check(candidateCount)
	if err != nil {
		return nil, fmt.Errorf("budget check: %w", err)
	}

	lim := o.opts.Limits
	if !check.CanAffordAll {
		logger.Warn().
			Int("candidates", candidateCount).
			Int("max_affordable", check.MaxAffordablePages).
			Str("binding_window", string(check.Binding)).
			Str("tier", string(check.Tier)).
			Msg("budget cannot cover full candidate set, shrinking")

		if check.MaxAffordablePages == 0 {
			res.TextOnlyFallback = true
			res.Elapsed = time.Since(start)
			return res, nil
		}

		// Drop lowest-priority candidates before selection runs.
		pages = shrinkCandidates(pages, check.MaxAffordablePages)
		if lim.MaxPages > check.MaxAffordablePages {
			lim.MaxPages = check.MaxAffordablePages
		}
		if lim.MinPages > lim.MaxPages {
			lim.MinPages = lim.MaxPages
		}
	}

	sel, err := selector.Select(categoryScores(pages), total, lim, o.deps.Ledger.PerCallCost())
	if err != nil {
		return nil, fmt.Errorf("page selection: %w", err)
	}
	res.Mode = sel.Mode
	res.Selection = sel.Pages

	res.Pages = o.analyzePages(ctx, jobID, docPath, sel, pages)

	for _, pa := range res.Pages {
		res.Analyzed++
		res.TotalCostUSD += pa.CostUSD
		if pa.Success {
			res.Succeeded++
		}
	}
	if total > 0 {
		res.SavingsRatio = 1 - float64(sel.Total())/float64(total)
	}
	res.TextOnlyFallback = res.Succeeded == 0
	res.Elapsed = time.Since(start)

	metrics.ObserveSavings(res.SavingsRatio)

	logger.Info().
		Int("total_pages", res.TotalPages).
		Int("analyzed", res.Analyzed).
		Int("succeeded", res.Succeeded).
		Float64("total_cost_usd", res.TotalCostUSD).
		Float64("savings_ratio", res.SavingsRatio).
		Bool("text_only_fallback", res.TextOnlyFallback).
		Dur("elapsed", res.Elapsed).
		Msg("document processing completed")

	return res, nil
}

// scorePages profiles and scores every page. A failed extraction yields the
// fallback complexity and a zero category score for that page only.
func (o *Orchestrator) scorePages(docPath string, total int, logger *zerolog.Logger) []pageData {
	pages := make([]pageData, 0, total)
	for p := 1; p <= total; p++ {
		profile, err := o.deps.Reader.Profile(docPath, p)
		pd := pageData{profile: pdf.ProfileResult{Profile: profile, Err: err}}
		if err != nil {
			logger.Warn().Err(err).Int("page", p).Msg("page profile extraction failed, scoring as fallback")
			pd.complexity = scoring.FallbackComplexity(p)
			pd.category = scoring.CategoryScore{Page: p}
		} else {
			pd.complexity = o.scorer.Score(profile)
			pd.category = scoring.Relevance(p, profile.Text)
		}
		pages = append(pages, pd)
	}
	return pages
}

func candidatePages(pages []pageData) []int {
	var out []int
	for _, pd := range pages {
		if pd.complexity.RequiresVisual || pd.category.Informative() {
			out = append(out, pd.profile.Profile.Page)
		}
	}
	return out
}

func categoryScores(pages []pageData) []scoring.CategoryScore {
	out := make([]scoring.CategoryScore, 0, len(pages))
	for _, pd := range pages {
		out = append(out, pd.category)
	}
	return out
}

// shrinkCandidates keeps the highest-priority scored pages and zeroes
// the rest, so the selector never sees more candidates than the budget can
// cover. Priority: best category tier, then weighted score, then complexity,
// then page order.
func shrinkCandidates(pages []pageData, keep int) []pageData {
	type ranked struct {
		idx   int
		tier  int
		score float64
		compl float64
		page  int
	}

	var cands []ranked
	for i, pd := range pages {
		if !pd.complexity.RequiresVisual && !pd.category.Informative() {
			continue
		}
		tier := 4 // complexity-only candidates rank below every category tier
		score := 0.0
		if pd.category.Informative() {
			if cat, ok := scoring.CategoryByName(pd.category.Primary); ok {
				tier = cat.Tier
			}
			score = pd.category.Score(pd.category.Primary)
		}
		cands = append(cands, ranked{
			idx:   i,
			tier:  tier,
			score: score,
			compl: pd.complexity.Score,
			page:  pd.profile.Profile.Page,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].tier != cands[j].tier {
			return cands[i].tier < cands[j].tier
		}
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].compl != cands[j].compl {
			return cands[i].compl > cands[j].compl
		}
		return cands[i].page < cands[j].page
	})

	drop := make(map[int]bool)
	for i := keep; i < len(cands); i++ {
		drop[cands[i].idx] = true
	}

	out := make([]pageData, len(pages))
	copy(out, pages)
	for i := range out {
		if drop[i] {
			page := out[i].profile.Profile.Page
			out[i].complexity = scoring.ComplexityScore{Page: page}
			out[i].category = scoring.CategoryScore{Page: page}
		}
	}
	return out
}

// analyzePages renders and analyzes the selected pages with a bounded worker
// pool. Every analyzer call is recorded in the ledger, success or not; a
// failed page never aborts the batch.
func (o *Orchestrator) analyzePages(ctx context.Context, jobID, docPath string, sel selector.Result, pages []pageData) []PageAnalysis {
	type task struct {
		page     int
		category string
	}

	var tasks []task
	for label, pp := range sel.Pages {
		for _, p := range pp {
			tasks = append(tasks, task{page: p, category: label})
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].page < tasks[j].page })

	texts := make(map[int]string, len(pages))
	for _, pd := range pages {
		if !pd.profile.Failed() {
			texts[pd.profile.Profile.Page] = pd.profile.Profile.Text
		}
	}

	results := make([]PageAnalysis, len(tasks))
	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup

	for i, t := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t task) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.analyzePage(ctx, jobID, docPath, t.page, t.category, texts)
		}(i, t)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) analyzePage(ctx context.Context, jobID, docPath string, page int, category string, texts map[int]string) PageAnalysis {
	img, err := o.deps.Render(docPath, page, o.opts.Render)
	if err != nil {
		// Render failure drops the page from the batch; no analyzer call was
		// made, so no cost was incurred.
		log.Warn().Str("job_id", jobID).Int("page", page).Err(err).Msg("page render failed")
		metrics.IncPageAnalyzed("render_failed")
		return PageAnalysis{Page: page, Category: category, Err: fmt.Sprintf("render: %v", err)}
	}

	req := ai.Request{
		JobID:       jobID,
		Page:        page,
		ImageBase64: img.Base64(),
		ImageMIME:   render.MIME,
		Prompt:      BuildPrompt(page, category),
		ContextText: ContextText(texts, page, 1),
		MaxTokens:   o.opts.AnalyzerMaxTokens,
		Timeout:     o.opts.RequestTimeout,
	}

	result := o.deps.Analyzer.Analyze(ctx, req)

	o.deps.Ledger.Record(budget.SpendRecord{
		Page:       page,
		Cost:       decimal.NewFromFloat(result.CostUSD),
		ImageBytes: len(img.JPEG),
		Duration:   result.Duration,
		Success:    result.Success,
	})

	if result.Success {
		metrics.IncPageAnalyzed("success")
	} else {
		metrics.IncPageAnalyzed("failure")
	}

	return PageAnalysis{
		Page:     page,
		Category: category,
		Success:  result.Success,
		Content:  result.Content,
		Provider: result.Provider,
		Model:    result.Model,
		CostUSD:  result.CostUSD,
		Duration: result.Duration,
		Err:      result.Err,
	}
}
