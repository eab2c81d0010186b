// Package reporting rolls per-employee evaluations into venue dashboards
// and builds per-employee investigation reports for human review.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/engine"
)

const (
	defaultPeriodDays = 30
	defaultMaxWorkers = 4

	topRiskLimit = 5

	// Venue void-rate trend bands: recent half-period vs the prior half.
	trendIncreaseRatio = 1.3
	trendDecreaseRatio = 0.7

	// outlierSigma marks a ticket as an outlier against the employee's
	// personal baseline.
	outlierSigma = 2.0
	outlierLimit = 20

	// repeatDiscountMin is the discount count at which a single customer
	// becomes a collusion signal.
	repeatDiscountMin = 3
)

// Reporter builds venue dashboards and investigation reports.
type Reporter struct {
	repo       domain.Repository
	engine     *engine.Engine
	maxWorkers int
}

// NewReporter creates a reporter fanning out at most maxWorkers
// concurrent evaluations; maxWorkers <= 0 selects the default.
func NewReporter(repo domain.Repository, eng *engine.Engine, maxWorkers int) *Reporter {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &Reporter{
		repo:       repo,
		engine:     eng,
		maxWorkers: maxWorkers,
	}
}

// Dashboard evaluates every active employee of a venue over the trailing
// periodDays and aggregates the results. Individual evaluation failures
// degrade the rollup rather than failing it.
func (r *Reporter) Dashboard(ctx context.Context, venueID string, periodDays int) (*domain.VenueDashboard, error) {
	if periodDays <= 0 {
		periodDays = defaultPeriodDays
	}
	end := time.Now().UTC()
	return r.windowDashboard(ctx, venueID, end.AddDate(0, 0, -periodDays), end)
}

// windowDashboard builds the rollup for an explicit [start, end) window.
func (r *Reporter) windowDashboard(ctx context.Context, venueID string, start, end time.Time) (*domain.VenueDashboard, error) {
	if venueID == "" {
		return nil, errors.New("venue id is required")
	}

	staff, err := r.repo.ListEmployees(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	periodDays := int(math.Ceil(end.Sub(start).Hours() / 24))
	if periodDays <= 0 {
		periodDays = defaultPeriodDays
	}

	results := make([]*domain.EvaluationResult, len(staff))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore; evaluations of distinct
	// employees are independent.
	sem := make(chan struct{}, r.maxWorkers)

	for i, emp := range staff {
		wg.Add(1)
		go func(idx int, employeeID string) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			res, err := r.engine.Evaluate(ctx, venueID, employeeID, periodDays)
			if err != nil {
				slog.Warn("dashboard evaluation failed",
					"venue_id", venueID,
					"employee_id", employeeID,
					"error", err,
				)
				return
			}
			results[idx] = res
		}(i, emp.ID)
	}

	wg.Wait()

	dash := &domain.VenueDashboard{
		VenueID:          venueID,
		PeriodStart:      start,
		PeriodEnd:        end,
		StaffByRiskLevel: make(map[domain.RiskLevel]int),
		AlertsByCategory: make(map[domain.Category]int),
		GeneratedAt:      time.Now().UTC(),
	}

	var ranked []domain.StaffRisk
	for i, res := range results {
		if res == nil {
			dash.DegradedEvaluations++
			continue
		}
		dash.StaffEvaluated++
		dash.StaffByRiskLevel[res.Snapshot.RiskLevel]++
		ranked = append(ranked, domain.StaffRisk{
			EmployeeID: staff[i].ID,
			Name:       staff[i].Name,
			Role:       staff[i].Role,
			FraudIndex: res.Snapshot.FraudIndex,
			RiskLevel:  res.Snapshot.RiskLevel,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].FraudIndex > ranked[j].FraudIndex
	})
	if len(ranked) > topRiskLimit {
		ranked = ranked[:topRiskLimit]
	}
	dash.TopRisk = ranked

	if unacked, err := r.repo.CountUnacknowledgedAlerts(ctx, venueID); err != nil {
		slog.Warn("unacknowledged alert count unavailable", "venue_id", venueID, "error", err)
	} else {
		dash.UnacknowledgedAlerts = int(unacked)
	}

	rate, trend, err := r.voidRate(ctx, venueID, start, end)
	if err != nil {
		slog.Warn("venue void rate unavailable", "venue_id", venueID, "error", err)
		dash.VoidRateTrend = domain.VenueTrendStable
	} else {
		dash.VenueVoidRate = rate
		dash.VoidRateTrend = trend
	}

	alerts, err := r.repo.ListAlerts(ctx, venueID, domain.AlertFilter{Since: start})
	if err != nil {
		slog.Warn("alert listing unavailable", "venue_id", venueID, "error", err)
	}
	for _, a := range alerts {
		dash.AlertsByCategory[a.Category]++
	}

	return dash, nil
}

// voidRate computes the venue-wide void rate for the period and its
// half-period trend.
func (r *Reporter) voidRate(ctx context.Context, venueID string, start, end time.Time) (float64, domain.VenueTrend, error) {
	txs, err := r.repo.CountVenueTransactions(ctx, venueID, start, end)
	if err != nil {
		return 0, domain.VenueTrendStable, fmt.Errorf("count transactions: %w", err)
	}
	voids, err := r.repo.CountVenueVoids(ctx, venueID, start, end)
	if err != nil {
		return 0, domain.VenueTrendStable, fmt.Errorf("count voids: %w", err)
	}

	var rate float64
	if txs > 0 {
		rate = float64(voids) / float64(txs)
	}

	mid := start.Add(end.Sub(start) / 2)
	older, err := r.halfRate(ctx, venueID, start, mid)
	if err != nil {
		return rate, domain.VenueTrendStable, nil
	}
	recent, err := r.halfRate(ctx, venueID, mid, end)
	if err != nil {
		return rate, domain.VenueTrendStable, nil
	}

	return rate, classifyTrend(recent, older), nil
}

func (r *Reporter) halfRate(ctx context.Context, venueID string, start, end time.Time) (float64, error) {
	txs, err := r.repo.CountVenueTransactions(ctx, venueID, start, end)
	if err != nil {
		return 0, err
	}
	if txs == 0 {
		return 0, nil
	}
	voids, err := r.repo.CountVenueVoids(ctx, venueID, start, end)
	if err != nil {
		return 0, err
	}
	return float64(voids) / float64(txs), nil
}

// classifyTrend compares the recent half-period void rate to the older
// half. A zero older rate only trends up when voids actually appeared.
func classifyTrend(recent, older float64) domain.VenueTrend {
	if older == 0 {
		if recent > 0 {
			return domain.VenueTrendIncreasing
		}
		return domain.VenueTrendStable
	}
	switch ratio := recent / older; {
	case ratio > trendIncreaseRatio:
		return domain.VenueTrendIncreasing
	case ratio < trendDecreaseRatio:
		return domain.VenueTrendDecreasing
	default:
		return domain.VenueTrendStable
	}
}

// Investigate builds the per-employee deep dive: latest snapshot, trend,
// signal counts, streaks, repeat discount customers, ticket outliers,
// and open alerts.
func (r *Reporter) Investigate(ctx context.Context, venueID, employeeID string, start, end time.Time) (*domain.InvestigationReport, error) {
	if venueID == "" || employeeID == "" {
		return nil, errors.New("venue id and employee id are required")
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -defaultPeriodDays)
	}

	if _, err := r.repo.GetEmployee(ctx, venueID, employeeID); err != nil {
		return nil, fmt.Errorf("employee %s: %w", employeeID, err)
	}

	report := &domain.InvestigationReport{
		VenueID:      venueID,
		EmployeeID:   employeeID,
		PeriodStart:  start,
		PeriodEnd:    end,
		SignalCounts: make(map[domain.SignalKind]int),
		GeneratedAt:  time.Now().UTC(),
	}

	snapshot, err := r.repo.GetLatestSnapshot(ctx, venueID, employeeID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("latest snapshot unavailable",
			"venue_id", venueID,
			"employee_id", employeeID,
			"error", err,
		)
	}
	report.Snapshot = snapshot
	if snapshot != nil {
		report.Trend = r.engine.Trend(ctx, venueID, employeeID, snapshot.FraudIndex, nil)
	}

	for _, kind := range domain.SignalKinds() {
		n, err := r.repo.CountEmployeeSignals(ctx, venueID, employeeID, kind, start, end)
		if err != nil {
			slog.Warn("signal count unavailable",
				"venue_id", venueID,
				"employee_id", employeeID,
				"kind", string(kind),
				"error", err,
			)
			continue
		}
		report.SignalCounts[kind] = int(n)
	}

	txs, err := r.repo.GetTransactions(ctx, venueID, employeeID, start, end)
	if err != nil {
		slog.Warn("transactions unavailable for investigation",
			"venue_id", venueID,
			"employee_id", employeeID,
			"error", err,
		)
	} else {
		report.LongestStreak = longestStreak(txs)
		report.Outliers = r.outliers(ctx, venueID, employeeID, txs)
	}

	discounts, err := r.repo.GetDiscounts(ctx, venueID, employeeID, start, end)
	if err == nil {
		report.RepeatCustomers = repeatCustomers(discounts)
	}

	open, err := r.repo.ListAlerts(ctx, venueID, domain.AlertFilter{
		EmployeeID:         employeeID,
		UnacknowledgedOnly: true,
	})
	if err == nil {
		report.OpenAlerts = open
	}

	return report, nil
}

// Report builds the reporting payload envelope. With an employee ID it
// carries that employee's investigation; without one it carries the
// venue dashboard for the requested window.
func (r *Reporter) Report(ctx context.Context, venueID, employeeID string, start, end time.Time) (*domain.Report, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -defaultPeriodDays)
	}

	if employeeID == "" {
		dash, err := r.windowDashboard(ctx, venueID, start, end)
		if err != nil {
			return nil, err
		}
		return &domain.Report{
			VenueID:   venueID,
			Dashboard: dash,
		}, nil
	}

	inv, err := r.Investigate(ctx, venueID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	return &domain.Report{
		VenueID:       venueID,
		EmployeeID:    employeeID,
		Investigation: inv,
	}, nil
}

// outliers returns tickets beyond outlierSigma of the employee's baseline
// average. Without a baseline or a usable stddev there are no outliers.
func (r *Reporter) outliers(ctx context.Context, venueID, employeeID string, txs []*domain.Transaction) []domain.OutlierTransaction {
	baseline, err := r.repo.GetBaseline(ctx, venueID, employeeID)
	if err != nil || baseline == nil || baseline.TicketStddev <= 0 {
		return nil
	}

	var out []domain.OutlierTransaction
	for _, tx := range txs {
		z := math.Abs(tx.Amount-baseline.AvgTicket) / baseline.TicketStddev
		if z > outlierSigma {
			out = append(out, domain.OutlierTransaction{Transaction: tx, ZScore: z})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ZScore > out[j].ZScore })
	if len(out) > outlierLimit {
		out = out[:outlierLimit]
	}
	return out
}

// longestStreak is the longest run of consecutive transactions with
// identical type and amount.
func longestStreak(txs []*domain.Transaction) int {
	longest, run := 0, 0
	for i, tx := range txs {
		if i > 0 && tx.Type == txs[i-1].Type && tx.Amount == txs[i-1].Amount {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// repeatCustomers groups discounts by customer and keeps customers at or
// above the repeat floor, largest count first.
func repeatCustomers(discounts []*domain.Discount) []domain.RepeatDiscountCustomer {
	counts := make(map[string]*domain.RepeatDiscountCustomer)
	for _, d := range discounts {
		if d.CustomerID == "" {
			continue
		}
		c, ok := counts[d.CustomerID]
		if !ok {
			c = &domain.RepeatDiscountCustomer{CustomerID: d.CustomerID}
			counts[d.CustomerID] = c
		}
		c.Count++
		c.Total += d.Amount
	}

	var repeats []domain.RepeatDiscountCustomer
	for _, c := range counts {
		if c.Count >= repeatDiscountMin {
			repeats = append(repeats, *c)
		}
	}
	sort.Slice(repeats, func(i, j int) bool { return repeats[i].Count > repeats[j].Count })
	return repeats
}
