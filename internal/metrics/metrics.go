package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analyzerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deckscope",
			Name:      "analyzer_requests_total",
			Help:      "Total vision analyzer requests by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	analyzerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deckscope",
			Name:      "analyzer_request_duration_seconds",
			Help:      "Duration of analyzer requests by provider and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	pagesAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deckscope",
			Name:      "pages_analyzed_total",
			Help:      "Pages sent to visual analysis by result (success, failure)",
		},
		[]string{"result"},
	)

	pagesSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deckscope",
			Name:      "pages_selected_total",
			Help:      "Pages selected for visual analysis by selection mode",
		},
		[]string{"mode"},
	)

	selectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "deckscope",
			Name:      "selection_duration_seconds",
			Help:      "Duration of page selection per document",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
		},
	)

	spendTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deckscope",
			Name:      "spend_usd_total",
			Help:      "Cumulative analyzer spend in USD",
		},
	)

	budgetUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "deckscope",
			Name:      "budget_utilization_ratio",
			Help:      "Budget utilization ratio per window (daily, weekly, monthly)",
		},
		[]string{"window"},
	)

	budgetRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deckscope",
			Name:      "budget_rejections_total",
			Help:      "Admission checks that could not afford the full candidate set",
		},
	)

	costSavings = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "deckscope",
			Name:      "cost_savings_ratio",
			Help:      "Per-document savings ratio versus analyzing every page",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(
		analyzerReqs, analyzerLatency,
		pagesAnalyzed, pagesSelected, selectionDuration,
		spendTotal, budgetUtilization, budgetRejections, costSavings,
	)
}

// Handler returns the http.Handler for /metrics.
func Handler() http.Handler { return promhttp.Handler() }

func ObserveAnalyzer(provider, model, result string, dur time.Duration) {
	analyzerReqs.WithLabelValues(provider, model, result).Inc()
	analyzerLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func IncPageAnalyzed(result string) { pagesAnalyzed.WithLabelValues(result).Inc() }

func AddPagesSelected(mode string, n int) { pagesSelected.WithLabelValues(mode).Add(float64(n)) }

func ObserveSelection(dur time.Duration) { selectionDuration.Observe(dur.Seconds()) }

func AddSpend(usd float64) { spendTotal.Add(usd) }

func SetBudgetUtilization(window string, r float64) { budgetUtilization.WithLabelValues(window).Set(r) }

func IncBudgetRejection() { budgetRejections.Inc() }

func ObserveSavings(ratio float64) { costSavings.Observe(ratio) }
