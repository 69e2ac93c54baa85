package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/local/deckscope/internal/metrics"
)

// Window identifies a budget time range.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
)

// Tier is the alerting status derived from daily utilization.
type Tier string

const (
	TierNormal   Tier = "NORMAL"
	TierWarning  Tier = "WARNING"
	TierCritical Tier = "CRITICAL"
)

// SpendRecord is one completed analyzer call. Immutable once recorded.
type SpendRecord struct {
	Timestamp  time.Time
	Page       int
	Cost       decimal.Decimal
	ImageBytes int
	Duration   time.Duration
	Success    bool
}

// WindowStatus is the derived budget state of a single window.
type WindowStatus struct {
	Window      Window          `json:"window"`
	Spent       decimal.Decimal `json:"spent"`
	Limit       decimal.Decimal `json:"limit"`
	Remaining   decimal.Decimal `json:"remaining"`
	Utilization float64         `json:"utilization"`
	Tier        Tier            `json:"tier"`
}

// Check is the result of an admission check for a candidate page count.
type Check struct {
	Pages              int
	EstimatedCost      decimal.Decimal
	Daily              WindowStatus
	Weekly             WindowStatus
	Monthly            WindowStatus
	Binding            Window
	CanAffordAll       bool
	MaxAffordablePages int
	Tier               Tier
}

// Options configures a ledger.
type Options struct {
	PerCallCostUSD    float64
	DailyLimitUSD     float64
	WeeklyLimitUSD    float64
	MonthlyLimitUSD   float64
	WarningThreshold  float64 // default 0.80
	CriticalThreshold float64 // default 0.95
	Now               func() time.Time
}

// Ledger tracks analyzer spend against daily/weekly/monthly ceilings.
// All state lives behind the mutex; spend totals are recomputed from the
// record list on every query. Process-lifetime only, no eviction.
type Ledger struct {
	mu      sync.Mutex
	records []SpendRecord

	perCall decimal.Decimal
	daily   decimal.Decimal
	weekly  decimal.Decimal
	monthly decimal.Decimal
	warn    float64
	crit    float64
	now     func() time.Time
}

// NewLedger creates an empty ledger. A non-positive per-call cost is a
// contract violation.
func NewLedger(opts Options) (*Ledger, error) {
	if opts.PerCallCostUSD <= 0 {
		return nil, fmt.Errorf("per-call cost must be positive: %f", opts.PerCallCostUSD)
	}
	if opts.DailyLimitUSD < 0 || opts.WeeklyLimitUSD < 0 || opts.MonthlyLimitUSD < 0 {
		return nil, fmt.Errorf("budget limits must be non-negative")
	}
	if opts.WarningThreshold <= 0 {
		opts.WarningThreshold = 0.80
	}
	if opts.CriticalThreshold <= 0 {
		opts.CriticalThreshold = 0.95
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		perCall: decimal.NewFromFloat(opts.PerCallCostUSD),
		daily:   decimal.NewFromFloat(opts.DailyLimitUSD),
		weekly:  decimal.NewFromFloat(opts.WeeklyLimitUSD),
		monthly: decimal.NewFromFloat(opts.MonthlyLimitUSD),
		warn:    opts.WarningThreshold,
		crit:    opts.CriticalThreshold,
		now:     opts.Now,
	}, nil
}

// PerCallCost returns the fixed cost charged per analyzer call.
func (l *Ledger) PerCallCost() decimal.Decimal { return l.perCall }

// Record appends a spend record unconditionally. Failed calls are recorded
// too, at whatever cost was actually incurred, for auditing.
func (l *Ledger) Record(rec SpendRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	daily, weekly, monthly := l.windowsLocked()
	l.mu.Unlock()

	cost, _ := rec.Cost.Float64()
	metrics.AddSpend(cost)
	metrics.SetBudgetUtilization(string(WindowDaily), daily.Utilization)
	metrics.SetBudgetUtilization(string(WindowWeekly), weekly.Utilization)
	metrics.SetBudgetUtilization(string(WindowMonthly), monthly.Utilization)

	log.Debug().
		Int("page", rec.Page).
		Str("cost", rec.Cost.StringFixed(5)).
		Bool("success", rec.Success).
		Dur("duration", rec.Duration).
		Str("daily_spent", daily.Spent.StringFixed(4)).
		Msg("spend recorded")
}

// Check reports whether pages analyzer calls fit the remaining budget on the
// most restrictive window. The ledger never truncates a candidate list; it
// only reports the largest affordable page count.
func (l *Ledger) Check(pages int) (Check, error) {
	if pages < 0 {
		return Check{}, fmt.Errorf("candidate page count must be non-negative: %d", pages)
	}

	l.mu.Lock()
	daily, weekly, monthly := l.windowsLocked()
	l.mu.Unlock()

	estimated := l.perCall.Mul(decimal.NewFromInt(int64(pages)))

	binding := WindowDaily
	minRemaining := daily.Remaining
	if weekly.Remaining.LessThan(minRemaining) {
		binding = WindowWeekly
		minRemaining = weekly.Remaining
	}
	if monthly.Remaining.LessThan(minRemaining) {
		binding = WindowMonthly
		minRemaining = monthly.Remaining
	}

	maxAffordable := 0
	if minRemaining.IsPositive() {
		maxAffordable = int(minRemaining.Div(l.perCall).IntPart())
	}

	check := Check{
		Pages:              pages,
		EstimatedCost:      estimated,
		Daily:              daily,
		Weekly:             weekly,
		Monthly:            monthly,
		Binding:            binding,
		CanAffordAll:       pages <= maxAffordable,
		MaxAffordablePages: maxAffordable,
		// Daily utilization is the alerting signal even when another
		// window binds admission.
		Tier: daily.Tier,
	}

	metrics.SetBudgetUtilization(string(WindowDaily), daily.Utilization)
	metrics.SetBudgetUtilization(string(WindowWeekly), weekly.Utilization)
	metrics.SetBudgetUtilization(string(WindowMonthly), monthly.Utilization)
	if !check.CanAffordAll {
		metrics.IncBudgetRejection()
	}

	return check, nil
}

// Status returns the current state of all three windows.
func (l *Ledger) Status() (daily, weekly, monthly WindowStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windowsLocked()
}

// Records returns a copy of the full audit trail.
func (l *Ledger) Records() []SpendRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SpendRecord, len(l.records))
	copy(out, l.records)
	return out
}

// windowsLocked recomputes all window aggregates. Callers hold l.mu.
func (l *Ledger) windowsLocked() (daily, weekly, monthly WindowStatus) {
	now := l.now()
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	daily = l.statusLocked(WindowDaily, dayStart, l.daily)
	weekly = l.statusLocked(WindowWeekly, now.Add(-7*24*time.Hour), l.weekly)
	monthly = l.statusLocked(WindowMonthly, now.Add(-30*24*time.Hour), l.monthly)

	// The tier is keyed on the daily window for every status.
	tier := tierFor(daily.Utilization, l.warn, l.crit)
	daily.Tier = tier
	weekly.Tier = tier
	monthly.Tier = tier
	return daily, weekly, monthly
}

func (l *Ledger) statusLocked(w Window, from time.Time, limit decimal.Decimal) WindowStatus {
	spent := decimal.Zero
	for _, rec := range l.records {
		if !rec.Timestamp.Before(from) {
			spent = spent.Add(rec.Cost)
		}
	}

	remaining := limit.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	utilization := 0.0
	if limit.IsPositive() {
		utilization, _ = spent.Div(limit).Float64()
	} else if spent.IsPositive() {
		utilization = 1.0
	}

	return WindowStatus{
		Window:      w,
		Spent:       spent,
		Limit:       limit,
		Remaining:   remaining,
		Utilization: utilization,
	}
}

func tierFor(utilization, warn, crit float64) Tier {
	switch {
	case utilization >= crit:
		return TierCritical
	case utilization >= warn:
		return TierWarning
	default:
		return TierNormal
	}
}
