// Package baseline periodically recomputes per-employee behavioral
// baselines off the evaluation path.
package baseline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
)

const (
	windowDays      = 60
	defaultInterval = 24 * time.Hour

	// cacheTTL outlives the recompute interval so the hot path keeps a
	// cache hit between runs.
	cacheTTL = 25 * time.Hour

	// Employees with fewer transactions in the window have no meaningful
	// baseline yet.
	minSampleTransactions = 50
)

// Worker recomputes employee baselines for every registered venue on a
// fixed interval.
type Worker struct {
	repo     domain.Repository
	cache    domain.Cache
	interval time.Duration
	stop     chan struct{}
	running  atomic.Bool

	mu     sync.Mutex
	venues map[string]struct{}
}

// NewWorker creates a daily baseline recomputation worker.
func NewWorker(repo domain.Repository, cache domain.Cache) *Worker {
	return &Worker{
		repo:     repo,
		cache:    cache,
		interval: defaultInterval,
		stop:     make(chan struct{}),
		venues:   make(map[string]struct{}),
	}
}

// RegisterVenue adds a venue to the recomputation set. Registering an
// already-tracked venue is a no-op.
func (w *Worker) RegisterVenue(venueID string) {
	if venueID == "" {
		return
	}
	w.mu.Lock()
	w.venues[venueID] = struct{}{}
	w.mu.Unlock()
}

// Running reports whether the worker loop is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Start runs the recomputation loop until the context is canceled or
// Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.running.Store(true)
	defer w.running.Store(false)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.safeDoWork(ctx, w.recomputeAll)
		}
	}
}

// Stop signals the worker to stop.
func (w *Worker) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
}

func (w *Worker) safeDoWork(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in baseline worker", "panic", fmt.Sprint(r))
		}
	}()
	fn(ctx)
}

func (w *Worker) recomputeAll(ctx context.Context) {
	w.mu.Lock()
	venues := make([]string, 0, len(w.venues))
	for v := range w.venues {
		venues = append(venues, v)
	}
	w.mu.Unlock()

	for _, venueID := range venues {
		if err := w.RecomputeVenue(ctx, venueID); err != nil {
			slog.Error("baseline recomputation failed",
				"venue_id", venueID,
				"error", err,
			)
		}
	}
}

// RecomputeVenue rebuilds baselines for every active employee of a venue.
// Employees below the sample floor are skipped, not zeroed.
func (w *Worker) RecomputeVenue(ctx context.Context, venueID string) error {
	staff, err := w.repo.ListEmployees(ctx, venueID)
	if err != nil {
		return fmt.Errorf("list employees: %w", err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -windowDays)

	var computed int
	for _, emp := range staff {
		b, err := w.computeEmployee(ctx, venueID, emp.ID, start, end)
		if err != nil {
			slog.Warn("baseline skipped",
				"venue_id", venueID,
				"employee_id", emp.ID,
				"error", err,
			)
			continue
		}
		if b == nil {
			continue
		}

		if err := w.repo.SaveBaseline(ctx, venueID, b); err != nil {
			slog.Warn("baseline save failed",
				"venue_id", venueID,
				"employee_id", emp.ID,
				"error", err,
			)
			continue
		}
		if w.cache != nil {
			_ = w.cache.SetBaseline(ctx, venueID, b, cacheTTL)
		}
		computed++
	}

	slog.Info("baselines recomputed",
		"venue_id", venueID,
		"staff", len(staff),
		"computed", computed,
	)
	return nil
}

// computeEmployee derives one employee's baseline from the long window.
// Returns nil when the sample is too small.
func (w *Worker) computeEmployee(ctx context.Context, venueID, employeeID string, start, end time.Time) (*domain.Baseline, error) {
	txs, err := w.repo.GetTransactions(ctx, venueID, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	if len(txs) < minSampleTransactions {
		return nil, nil
	}

	voids, err := w.repo.GetVoids(ctx, venueID, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("read voids: %w", err)
	}
	discounts, err := w.repo.GetDiscounts(ctx, venueID, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("read discounts: %w", err)
	}
	entries, err := w.repo.GetTimeEntries(ctx, venueID, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("read time entries: %w", err)
	}

	mean, stddev := ticketStats(txs)

	var workedHours float64
	for _, e := range entries {
		workedHours += e.WorkedHours()
	}
	var hourlyTx float64
	if workedHours > 0 {
		hourlyTx = float64(len(txs)) / workedHours
	}

	return &domain.Baseline{
		VenueID:         venueID,
		EmployeeID:      employeeID,
		AvgVoidRate:     float64(len(voids)) / float64(len(txs)),
		AvgDiscountRate: float64(len(discounts)) / float64(len(txs)),
		AvgTicket:       mean,
		TicketStddev:    stddev,
		AvgHourlyTx:     hourlyTx,
		SampleDays:      activeDays(txs),
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// ticketStats returns the mean and population standard deviation of
// ticket amounts.
func ticketStats(txs []*domain.Transaction) (mean, stddev float64) {
	if len(txs) == 0 {
		return 0, 0
	}

	var sum float64
	for _, tx := range txs {
		sum += tx.Amount
	}
	mean = sum / float64(len(txs))

	var varianceSum float64
	for _, tx := range txs {
		diff := tx.Amount - mean
		varianceSum += diff * diff
	}
	stddev = math.Sqrt(varianceSum / float64(len(txs)))

	return mean, stddev
}

// activeDays counts distinct calendar days with at least one transaction.
func activeDays(txs []*domain.Transaction) int {
	days := make(map[string]struct{})
	for _, tx := range txs {
		days[tx.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}
