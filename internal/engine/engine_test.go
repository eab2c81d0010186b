package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/open-hospitality/kestrel/internal/alerts"
	"github.com/open-hospitality/kestrel/internal/bus"
	"github.com/open-hospitality/kestrel/internal/cache"
	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/repository"
	"github.com/open-hospitality/kestrel/internal/signals"
)

func newTestEngine(t *testing.T) (*Engine, domain.Repository, *bus.ChannelBus) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-engine-*.db")
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

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	reader := signals.NewReader(repo, cache.NewLRUCache(100))
	generator := alerts.NewGenerator(repo, nil)

	eng, err := New(repo, reader, domain.DefaultScoringConfig(), generator, eventBus)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng, repo, eventBus
}

func saveEmployee(t *testing.T, repo domain.Repository, venueID, employeeID string) {
	t.Helper()
	err := repo.SaveEmployee(context.Background(), venueID, &domain.Employee{
		ID: employeeID, VenueID: venueID, Name: "Test Server", Role: "server", Active: true,
	})
	if err != nil {
		t.Fatalf("failed to save employee: %v", err)
	}
}

// inHours returns a timestamp yesterday at 14:00 plus an offset, inside
// both the evaluation window and default operating hours.
func inHours(offset time.Duration) time.Time {
	y := time.Now().UTC().AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 14, 0, 0, 0, time.UTC).Add(offset)
}

func seedCleanSales(t *testing.T, repo domain.Repository, venueID, employeeID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		tx := &domain.Transaction{
			ID:         "tx-" + string(rune('a'+i)),
			VenueID:    venueID,
			EmployeeID: employeeID,
			Type:       "sale",
			Amount:     20 + float64(i),
			TenderType: "card",
			Timestamp:  inHours(time.Duration(i) * 10 * time.Minute),
		}
		if err := repo.SaveTransaction(ctx, venueID, tx); err != nil {
			t.Fatalf("failed to save transaction: %v", err)
		}
	}
}

func TestEvaluateUnknownEmployee(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.Evaluate(context.Background(), "venue-001", "ghost", 30)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEvaluateCleanEmployee(t *testing.T) {
	eng, repo, _ := newTestEngine(t)
	ctx := context.Background()

	saveEmployee(t, repo, "venue-001", "emp-001")
	seedCleanSales(t, repo, "venue-001", "emp-001", 10)

	result, err := eng.Evaluate(ctx, "venue-001", "emp-001", 30)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	s := result.Snapshot
	if s.FraudIndex != 0 {
		t.Errorf("expected zero index, got %v (scores %v)", s.FraudIndex, s.CategoryScores)
	}
	if s.RiskLevel != domain.RiskNormal {
		t.Errorf("expected normal risk, got %s", s.RiskLevel)
	}
	if s.TransactionsAnalyzed != 10 {
		t.Errorf("expected 10 transactions analyzed, got %d", s.TransactionsAnalyzed)
	}
	if len(s.DegradedSources) != 0 {
		t.Errorf("expected no degraded sources, got %v", s.DegradedSources)
	}
	if len(s.Recommendations) != 1 || s.Recommendations[0] != standardRecommendation {
		t.Errorf("expected standard recommendation, got %v", s.Recommendations)
	}

	// Snapshot must be persisted.
	latest, err := repo.GetLatestSnapshot(ctx, "venue-001", "emp-001")
	if err != nil {
		t.Fatalf("GetLatestSnapshot failed: %v", err)
	}
	if latest.ID != s.ID {
		t.Errorf("persisted snapshot %s does not match returned %s", latest.ID, s.ID)
	}
}

func TestEvaluateRiskyEmployee(t *testing.T) {
	eng, repo, _ := newTestEngine(t)
	ctx := context.Background()

	saveEmployee(t, repo, "venue-001", "emp-002")
	seedCleanSales(t, repo, "venue-001", "emp-002", 10)

	// Five high-value voids after payment at end of shift, two minutes
	// apart: the void score saturates at 100.
	for i := 0; i < 5; i++ {
		v := &domain.Void{
			ID:           "void-" + string(rune('a'+i)),
			VenueID:      "venue-001",
			EmployeeID:   "emp-002",
			Amount:       80,
			AfterPayment: true,
			EndOfShift:   true,
			Timestamp:    inHours(time.Duration(i) * 2 * time.Minute),
		}
		if err := repo.SaveVoid(ctx, "venue-001", v); err != nil {
			t.Fatalf("failed to save void: %v", err)
		}
	}

	// Four small shortages with heavy no-sale activity: cash scores 90.
	for i := 0; i < 4; i++ {
		cr := &domain.CashReport{
			ID:          "cash-" + string(rune('a'+i)),
			VenueID:     "venue-001",
			EmployeeID:  "emp-002",
			Variance:    -15,
			NoSaleCount: 5,
			Timestamp:   inHours(time.Duration(i) * time.Hour),
		}
		if err := repo.SaveCashReport(ctx, "venue-001", cr); err != nil {
			t.Fatalf("failed to save cash report: %v", err)
		}
	}

	result, err := eng.Evaluate(ctx, "venue-001", "emp-002", 30)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	s := result.Snapshot
	if s.CategoryScores[domain.CategoryVoid] != 100 {
		t.Errorf("expected void score 100, got %v", s.CategoryScores[domain.CategoryVoid])
	}
	if s.CategoryScores[domain.CategoryCash] != 90 {
		t.Errorf("expected cash score 90, got %v", s.CategoryScores[domain.CategoryCash])
	}
	// 100*0.20 + 90*0.25 = 42.5
	if s.FraudIndex != 42.5 {
		t.Errorf("expected index 42.5, got %v", s.FraudIndex)
	}
	if s.RiskLevel != domain.RiskMedium {
		t.Errorf("expected medium risk, got %s", s.RiskLevel)
	}
	if len(s.Concerns) != 2 {
		t.Errorf("expected void and cash concerns, got %v", s.Concerns)
	}

	// An index over the alert floor must leave a persisted alert.
	count, err := repo.CountUnacknowledgedAlerts(ctx, "venue-001")
	if err != nil {
		t.Fatalf("CountUnacknowledgedAlerts failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 unacknowledged alert, got %d", count)
	}
}

func TestEvaluateScoreDelta(t *testing.T) {
	eng, repo, _ := newTestEngine(t)
	ctx := context.Background()

	saveEmployee(t, repo, "venue-001", "emp-003")
	seedCleanSales(t, repo, "venue-001", "emp-003", 5)

	first, err := eng.Evaluate(ctx, "venue-001", "emp-003", 30)
	if err != nil {
		t.Fatalf("first Evaluate failed: %v", err)
	}
	if first.Snapshot.ScoreDelta != 0 {
		t.Errorf("first evaluation should have zero delta, got %v", first.Snapshot.ScoreDelta)
	}

	second, err := eng.Evaluate(ctx, "venue-001", "emp-003", 30)
	if err != nil {
		t.Fatalf("second Evaluate failed: %v", err)
	}
	if second.Snapshot.ScoreDelta != 0 {
		t.Errorf("unchanged behavior should have zero delta, got %v", second.Snapshot.ScoreDelta)
	}
	if second.Snapshot.ID == first.Snapshot.ID {
		t.Error("re-evaluation must produce a new snapshot, not an edit")
	}
}

func TestEvaluatePublishesEvent(t *testing.T) {
	eng, repo, eventBus := newTestEngine(t)
	ctx := context.Background()

	saveEmployee(t, repo, "venue-001", "emp-004")
	seedCleanSales(t, repo, "venue-001", "emp-004", 3)

	received := make(chan *domain.Message, 1)
	sub, err := eventBus.Subscribe(ctx, "venue-001", domain.TopicEvaluationCompleted, func(_ context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	result, err := eng.Evaluate(ctx, "venue-001", "emp-004", 30)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	select {
	case msg := <-received:
		var s domain.Snapshot
		if err := json.Unmarshal(msg.Payload, &s); err != nil {
			t.Fatalf("failed to unmarshal snapshot payload: %v", err)
		}
		if s.ID != result.Snapshot.ID {
			t.Errorf("published snapshot %s does not match returned %s", s.ID, result.Snapshot.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for evaluation event")
	}
}

func TestEvaluateDefaultPeriod(t *testing.T) {
	eng, repo, _ := newTestEngine(t)
	ctx := context.Background()

	saveEmployee(t, repo, "venue-001", "emp-005")

	result, err := eng.Evaluate(ctx, "venue-001", "emp-005", 0)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	window := result.Snapshot.PeriodEnd.Sub(result.Snapshot.PeriodStart)
	if days := window.Hours() / 24; days < 29 || days > 31 {
		t.Errorf("expected a 30-day default window, got %.1f days", days)
	}
}

func TestHistory(t *testing.T) {
	eng, repo, _ := newTestEngine(t)
	ctx := context.Background()

	saveEmployee(t, repo, "venue-001", "emp-006")
	for i := 0; i < 3; i++ {
		if _, err := eng.Evaluate(ctx, "venue-001", "emp-006", 30); err != nil {
			t.Fatalf("Evaluate %d failed: %v", i, err)
		}
	}

	history, err := eng.History(ctx, "venue-001", "emp-006", 30)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 snapshots, got %d", len(history))
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := domain.DefaultScoringConfig()
	cfg.Weights[domain.CategoryVoid] = 0.5 // weights no longer sum to 1

	_, err := New(nil, nil, cfg, nil, nil)
	if err == nil {
		t.Fatal("expected config validation error")
	}
}
