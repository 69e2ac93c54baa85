package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/deckscope/internal/ai"
	"github.com/local/deckscope/internal/budget"
	"github.com/local/deckscope/internal/orchestrator"
	"github.com/local/deckscope/internal/pdf"
	"github.com/local/deckscope/internal/render"
	"github.com/local/deckscope/internal/selector"
)

type fakeReader struct {
	pages    int
	texts    map[int]string
	countErr error
}

func (f *fakeReader) PageCount(string) (int, error) {
	return f.pages, f.countErr
}

func (f *fakeReader) Profile(_ string, page int) (pdf.PageProfile, error) {
	return pdf.PageProfile{Page: page, Text: f.texts[page]}, nil
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	pages  []int
	result ai.Result
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req ai.Request) ai.Result {
	f.mu.Lock()
	f.pages = append(f.pages, req.Page)
	f.mu.Unlock()
	return f.result
}

func (f *fakeAnalyzer) analyzed() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.pages...)
}

func okRender(_ string, page int, _ render.Options) (render.Image, error) {
	return render.Image{Page: page, JPEG: []byte("jpeg"), Width: 100, Height: 140, DPI: 150}, nil
}

func newTestLedger(t *testing.T, daily float64) *budget.Ledger {
	t.Helper()
	l, err := budget.NewLedger(budget.Options{
		PerCallCostUSD:  0.00765,
		DailyLimitUSD:   daily,
		WeeklyLimitUSD:  25,
		MonthlyLimitUSD: 80,
	})
	require.NoError(t, err)
	return l
}

func newOrchestrator(t *testing.T, deps orchestrator.Dependencies) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.New(deps, orchestrator.Options{
		Limits:              selector.Limits{MaxPages: 7, MinPages: 3},
		ComplexityThreshold: 0.6,
		Concurrency:         2,
		RequestTimeout:      time.Second,
		AnalyzerMaxTokens:   1024,
	})
	require.NoError(t, err)
	return o
}

func TestNew_RejectsMissingDependencies(t *testing.T) {
	_, err := orchestrator.New(orchestrator.Dependencies{}, orchestrator.Options{
		Limits: selector.Limits{MaxPages: 7, MinPages: 3},
	})
	assert.Error(t, err)
}

func TestNew_RejectsInvalidLimits(t *testing.T) {
	deps := orchestrator.Dependencies{
		Reader:   &fakeReader{pages: 1},
		Analyzer: &fakeAnalyzer{},
		Ledger:   newTestLedger(t, 5),
		Render:   okRender,
	}
	_, err := orchestrator.New(deps, orchestrator.Options{
		Limits: selector.Limits{MaxPages: 2, MinPages: 5},
	})
	assert.Error(t, err)
}

func TestProcess_UnreadableDocumentFallsBackToText(t *testing.T) {
	deps := orchestrator.Dependencies{
		Reader:   &fakeReader{countErr: errors.New("not a pdf")},
		Analyzer: &fakeAnalyzer{},
		Ledger:   newTestLedger(t, 5),
		Render:   okRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "broken.pdf")
	require.NoError(t, err)
	assert.True(t, res.TextOnlyFallback)
	assert.Zero(t, res.TotalPages)
	assert.Zero(t, res.Analyzed)
	assert.Empty(t, res.Pages)
}

func TestProcess_HappyPathAnalyzesScoredPages(t *testing.T) {
	analyzer := &fakeAnalyzer{result: ai.Result{
		Success:  true,
		Content:  "a revenue chart",
		Provider: "anthropic",
		Model:    "claude-3-5-haiku-20241022",
		CostUSD:  0.003,
		Duration: 40 * time.Millisecond,
	}}
	ledger := newTestLedger(t, 5)
	deps := orchestrator.Dependencies{
		Reader: &fakeReader{
			pages: 12,
			texts: map[int]string{
				2: "revenue revenue revenue",
				3: "forecast and runway",
			},
		},
		Analyzer: analyzer,
		Ledger:   ledger,
		Render:   okRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "deck.pdf")
	require.NoError(t, err)

	assert.Equal(t, 12, res.TotalPages)
	assert.Equal(t, selector.ModeCategory, res.Mode)
	assert.ElementsMatch(t, []int{2, 3}, analyzer.analyzed())
	assert.Equal(t, 2, res.Analyzed)
	assert.Equal(t, 2, res.Succeeded)
	assert.False(t, res.TextOnlyFallback)
	assert.InDelta(t, 0.006, res.TotalCostUSD, 1e-9)
	assert.InDelta(t, 1-2.0/12.0, res.SavingsRatio, 1e-9)

	// Every analyzer call leaves an audit record.
	assert.Len(t, ledger.Records(), 2)
}

func TestProcess_SmallDocumentAnalyzesEveryPage(t *testing.T) {
	analyzer := &fakeAnalyzer{result: ai.Result{Success: true, CostUSD: 0.001}}
	deps := orchestrator.Dependencies{
		Reader:   &fakeReader{pages: 4, texts: map[int]string{}},
		Analyzer: analyzer,
		Ledger:   newTestLedger(t, 5),
		Render:   okRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "short.pdf")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Analyzed)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, analyzer.analyzed())
}

func TestProcess_AllAnalyzerFailuresDegradeToText(t *testing.T) {
	analyzer := &fakeAnalyzer{result: ai.Result{
		Success: false,
		Err:     "rate_limited",
		CostUSD: 0.0004,
	}}
	ledger := newTestLedger(t, 5)
	deps := orchestrator.Dependencies{
		Reader:   &fakeReader{pages: 5, texts: map[int]string{1: "market market"}},
		Analyzer: analyzer,
		Ledger:   ledger,
		Render:   okRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "deck.pdf")
	require.NoError(t, err)

	assert.Zero(t, res.Succeeded)
	assert.True(t, res.TextOnlyFallback)
	assert.NotZero(t, res.Analyzed)
	for _, pa := range res.Pages {
		assert.False(t, pa.Success)
		assert.NotEmpty(t, pa.Err)
	}
	// Partial spend from failed calls is still on the ledger.
	assert.Len(t, ledger.Records(), res.Analyzed)
}

func TestProcess_ExhaustedBudgetSkipsAnalysis(t *testing.T) {
	ledger := newTestLedger(t, 0.005) // below one per-call cost
	analyzer := &fakeAnalyzer{result: ai.Result{Success: true}}
	deps := orchestrator.Dependencies{
		Reader:   &fakeReader{pages: 30, texts: map[int]string{2: "revenue"}},
		Analyzer: analyzer,
		Ledger:   ledger,
		Render:   okRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "deck.pdf")
	require.NoError(t, err)

	assert.True(t, res.TextOnlyFallback)
	assert.Zero(t, res.Analyzed)
	assert.Empty(t, analyzer.analyzed())
	assert.Empty(t, ledger.Records())
}

func TestProcess_ShrinksToAffordablePages(t *testing.T) {
	// Daily limit funds exactly one call; the strongest financials page wins.
	ledger := newTestLedger(t, 0.01)
	analyzer := &fakeAnalyzer{result: ai.Result{Success: true, CostUSD: 0.00765}}
	deps := orchestrator.Dependencies{
		Reader: &fakeReader{
			pages: 20,
			texts: map[int]string{
				2: "revenue revenue revenue",
				5: "revenue",
				9: "team founder",
			},
		},
		Analyzer: analyzer,
		Ledger:   ledger,
		Render:   okRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "deck.pdf")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Analyzed)
	assert.Equal(t, []int{2}, analyzer.analyzed())
	assert.False(t, res.TextOnlyFallback)
}

func TestProcess_SmallDocumentStaysUnderBudget(t *testing.T) {
	// 5 pages would all be selected outright, but the daily limit funds only
	// two calls; the admission check must cover the full select-all count.
	ledger := newTestLedger(t, 0.02)
	analyzer := &fakeAnalyzer{result: ai.Result{Success: true, CostUSD: 0.00765}}
	deps := orchestrator.Dependencies{
		Reader:   &fakeReader{pages: 5, texts: map[int]string{2: "revenue"}},
		Analyzer: analyzer,
		Ledger:   ledger,
		Render:   okRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "deck.pdf")
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Analyzed, 2, "analysis must not exceed affordable pages")
	assert.Equal(t, []int{2}, analyzer.analyzed(), "the scored page wins the shrunken slot")

	daily, _, _ := ledger.Status()
	assert.True(t, daily.Spent.LessThanOrEqual(daily.Limit),
		"daily ceiling must hold: spent %s limit %s", daily.Spent, daily.Limit)
}

func TestProcess_SmallDocumentNoScoresStaysUnderBudget(t *testing.T) {
	// Same ceiling without any scored pages: the positional fallback must be
	// clamped to the affordable count too.
	ledger := newTestLedger(t, 0.02)
	analyzer := &fakeAnalyzer{result: ai.Result{Success: true, CostUSD: 0.00765}}
	deps := orchestrator.Dependencies{
		Reader:   &fakeReader{pages: 5, texts: map[int]string{}},
		Analyzer: analyzer,
		Ledger:   ledger,
		Render:   okRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "deck.pdf")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Analyzed)
	daily, _, _ := ledger.Status()
	assert.True(t, daily.Spent.LessThanOrEqual(daily.Limit))
}

func TestProcess_RenderFailureDropsPageWithoutSpend(t *testing.T) {
	ledger := newTestLedger(t, 5)
	analyzer := &fakeAnalyzer{result: ai.Result{Success: true}}
	failRender := func(string, int, render.Options) (render.Image, error) {
		return render.Image{}, errors.New("mupdf: cannot render")
	}
	deps := orchestrator.Dependencies{
		Reader:   &fakeReader{pages: 4, texts: map[int]string{}},
		Analyzer: analyzer,
		Ledger:   ledger,
		Render:   failRender,
	}
	o := newOrchestrator(t, deps)

	res, err := o.Process(context.Background(), "deck.pdf")
	require.NoError(t, err)

	assert.Zero(t, res.Succeeded)
	assert.True(t, res.TextOnlyFallback)
	assert.Empty(t, analyzer.analyzed(), "no analyzer call after a failed render")
	assert.Empty(t, ledger.Records(), "no spend without an analyzer call")
	for _, pa := range res.Pages {
		assert.Contains(t, pa.Err, "render")
	}
}
