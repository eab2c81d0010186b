package baseline

import (
	"context"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/open-hospitality/kestrel/internal/cache"
	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/repository"
)

func newTestWorker(t *testing.T) (*Worker, domain.Repository, domain.Cache) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-baseline-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	w := NewWorker(repo, c)
	return w, repo, c
}

// seedHistory writes shifts of ten transactions per day over the given
// number of days, one void and one discount per day.
func seedHistory(t *testing.T, repo domain.Repository, venueID, employeeID string, days int) {
	t.Helper()
	ctx := context.Background()

	if err := repo.SaveEmployee(ctx, venueID, &domain.Employee{
		ID: employeeID, VenueID: venueID, Name: "Sam Vale", Role: "bartender", Active: true,
	}); err != nil {
		t.Fatalf("failed to save employee: %v", err)
	}

	now := time.Now().UTC()
	for d := 0; d < days; d++ {
		day := now.AddDate(0, 0, -(d + 1))
		shiftStart := time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, time.UTC)

		for i := 0; i < 10; i++ {
			tx := &domain.Transaction{
				ID:         fmt.Sprintf("tx-%03d-%02d", d, i),
				VenueID:    venueID,
				EmployeeID: employeeID,
				Type:       "sale",
				Amount:     20 + float64(i), // 20..29 each day
				TenderType: "card",
				Timestamp:  shiftStart.Add(time.Duration(i*30) * time.Minute),
			}
			if err := repo.SaveTransaction(ctx, venueID, tx); err != nil {
				t.Fatalf("failed to save transaction: %v", err)
			}
		}

		if err := repo.SaveVoid(ctx, venueID, &domain.Void{
			ID: fmt.Sprintf("void-%03d", d), VenueID: venueID, EmployeeID: employeeID,
			TransactionID: fmt.Sprintf("tx-%03d-00", d), Amount: 20,
			Timestamp: shiftStart.Add(time.Hour),
		}); err != nil {
			t.Fatalf("failed to save void: %v", err)
		}

		if err := repo.SaveDiscount(ctx, venueID, &domain.Discount{
			ID: fmt.Sprintf("disc-%03d", d), VenueID: venueID, EmployeeID: employeeID,
			TransactionID: fmt.Sprintf("tx-%03d-01", d), Amount: 5, Percent: 20, Approved: true,
			Timestamp: shiftStart.Add(2 * time.Hour),
		}); err != nil {
			t.Fatalf("failed to save discount: %v", err)
		}

		if err := repo.SaveTimeEntry(ctx, venueID, &domain.TimeEntry{
			ID: fmt.Sprintf("shift-%03d", d), VenueID: venueID, EmployeeID: employeeID,
			ClockIn:  shiftStart,
			ClockOut: shiftStart.Add(5 * time.Hour),
		}); err != nil {
			t.Fatalf("failed to save time entry: %v", err)
		}
	}
}

func TestRecomputeVenue(t *testing.T) {
	w, repo, c := newTestWorker(t)
	ctx := context.Background()

	seedHistory(t, repo, "venue-001", "emp-001", 10) // 100 transactions

	if err := w.RecomputeVenue(ctx, "venue-001"); err != nil {
		t.Fatalf("RecomputeVenue failed: %v", err)
	}

	b, err := repo.GetBaseline(ctx, "venue-001", "emp-001")
	if err != nil {
		t.Fatalf("GetBaseline failed: %v", err)
	}

	if got := b.AvgVoidRate; math.Abs(got-0.1) > 1e-9 {
		t.Errorf("expected void rate 0.1, got %f", got)
	}
	if got := b.AvgDiscountRate; math.Abs(got-0.1) > 1e-9 {
		t.Errorf("expected discount rate 0.1, got %f", got)
	}
	if got := b.AvgTicket; math.Abs(got-24.5) > 1e-9 {
		t.Errorf("expected avg ticket 24.5, got %f", got)
	}
	// Population stddev of 20..29 repeated.
	if got, want := b.TicketStddev, math.Sqrt(8.25); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected ticket stddev %f, got %f", want, got)
	}
	// 100 transactions over 50 worked hours.
	if got := b.AvgHourlyTx; math.Abs(got-2.0) > 1e-9 {
		t.Errorf("expected 2 transactions per hour, got %f", got)
	}
	if b.SampleDays != 10 {
		t.Errorf("expected 10 sample days, got %d", b.SampleDays)
	}
	if b.ComputedAt.IsZero() {
		t.Error("expected ComputedAt to be set")
	}

	cached, err := c.GetBaseline(ctx, "venue-001", "emp-001")
	if err != nil {
		t.Fatalf("cache GetBaseline failed: %v", err)
	}
	if cached == nil || cached.EmployeeID != "emp-001" {
		t.Error("expected baseline to be cached after recompute")
	}
}

func TestRecomputeSkipsThinSample(t *testing.T) {
	w, repo, _ := newTestWorker(t)
	ctx := context.Background()

	seedHistory(t, repo, "venue-001", "emp-001", 2) // 20 transactions, under the floor

	if err := w.RecomputeVenue(ctx, "venue-001"); err != nil {
		t.Fatalf("RecomputeVenue failed: %v", err)
	}

	if _, err := repo.GetBaseline(ctx, "venue-001", "emp-001"); err == nil {
		t.Error("expected no baseline for a thin sample")
	}
}

func TestRegisterVenue(t *testing.T) {
	w, _, _ := newTestWorker(t)

	w.RegisterVenue("venue-001")
	w.RegisterVenue("venue-001")
	w.RegisterVenue("")

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.venues) != 1 {
		t.Errorf("expected 1 tracked venue, got %d", len(w.venues))
	}
}

func TestStartStop(t *testing.T) {
	w, _, _ := newTestWorker(t)
	w.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for !w.Running() {
		select {
		case <-deadline:
			t.Fatal("worker never started")
		case <-time.After(time.Millisecond):
		}
	}

	w.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	if w.Running() {
		t.Error("expected worker to report stopped")
	}
}
