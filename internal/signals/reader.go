// Package signals assembles canonical signal records from the backing
// stores. Each adapter read is an explicit (records, error) pair; Collect
// applies the partial-failure policy, substituting an empty slice and
// recording the degraded kind so one unreachable source never fails a
// whole evaluation.
package signals

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
)

// Reader reads time-windowed signal records for one employee.
type Reader struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewReader creates a signal reader over the repository, with an optional
// cache consulted for baselines.
func NewReader(repo domain.Repository, cache domain.Cache) *Reader {
	return &Reader{repo: repo, cache: cache}
}

// Collect assembles the full signal set for an employee over [start, end).
// Individual source failures degrade to empty slices with a logged warning;
// the returned set is always usable.
func (r *Reader) Collect(ctx context.Context, venueID, employeeID string, start, end time.Time) *domain.SignalSet {
	set := &domain.SignalSet{
		VenueID:     venueID,
		EmployeeID:  employeeID,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	var err error

	if set.Transactions, err = r.repo.GetTransactions(ctx, venueID, employeeID, start, end); err != nil {
		r.degrade(set, domain.KindTransaction, err)
		set.Transactions = nil
	}
	if set.Voids, err = r.repo.GetVoids(ctx, venueID, employeeID, start, end); err != nil {
		r.degrade(set, domain.KindVoid, err)
		set.Voids = nil
	}
	if set.Discounts, err = r.repo.GetDiscounts(ctx, venueID, employeeID, start, end); err != nil {
		r.degrade(set, domain.KindDiscount, err)
		set.Discounts = nil
	}
	if set.Refunds, err = r.repo.GetRefunds(ctx, venueID, employeeID, start, end); err != nil {
		r.degrade(set, domain.KindRefund, err)
		set.Refunds = nil
	}
	if set.CashReports, err = r.repo.GetCashReports(ctx, venueID, employeeID, start, end); err != nil {
		r.degrade(set, domain.KindCashReport, err)
		set.CashReports = nil
	}
	if set.TimeEntries, err = r.repo.GetTimeEntries(ctx, venueID, employeeID, start, end); err != nil {
		r.degrade(set, domain.KindTimeEntry, err)
		set.TimeEntries = nil
	}
	if set.Overrides, err = r.repo.GetOverrides(ctx, venueID, employeeID, start, end); err != nil {
		r.degrade(set, domain.KindOverride, err)
		set.Overrides = nil
	}

	set.Baseline = r.Baseline(ctx, venueID, employeeID)

	return set
}

// Baseline returns the employee baseline, preferring the cache. A missing
// or unreadable baseline is nil: calculators then skip deviation checks
// rather than inventing one.
func (r *Reader) Baseline(ctx context.Context, venueID, employeeID string) *domain.Baseline {
	if r.cache != nil {
		b, err := r.cache.GetBaseline(ctx, venueID, employeeID)
		if err == nil && b != nil {
			return b
		}
		if err != nil {
			slog.Debug("baseline cache read failed",
				"venue_id", venueID,
				"employee_id", employeeID,
				"error", err,
			)
		}
	}

	b, err := r.repo.GetBaseline(ctx, venueID, employeeID)
	if errors.Is(err, domain.ErrNotFound) {
		// New employees simply have no baseline yet.
		return nil
	}
	if err != nil {
		slog.Warn("baseline read failed, skipping deviation checks",
			"venue_id", venueID,
			"employee_id", employeeID,
			"error", err,
		)
		return nil
	}
	return b
}

func (r *Reader) degrade(set *domain.SignalSet, kind domain.SignalKind, err error) {
	set.Degraded = append(set.Degraded, kind)
	slog.Warn("signal source degraded, scoring over empty set",
		"venue_id", set.VenueID,
		"employee_id", set.EmployeeID,
		"kind", string(kind),
		"error", err,
	)
}
