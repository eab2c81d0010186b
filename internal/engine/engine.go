// Package engine orchestrates a full fraud-index evaluation: signal
// collection, the seven category calculators, composite aggregation,
// trend and peer context, snapshot persistence, and alert side effects.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/open-hospitality/kestrel/internal/alerts"
	"github.com/open-hospitality/kestrel/internal/category"
	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/signals"
)

// defaultPeriodDays is the evaluation window when the caller passes none.
const defaultPeriodDays = 30

// Engine runs synchronous per-employee evaluations.
type Engine struct {
	repo        domain.Repository
	reader      *signals.Reader
	calculators []category.Calculator
	aggregator  *Aggregator
	thresholds  domain.Thresholds
	generator   *alerts.Generator
	bus         domain.EventBus
}

// New creates an evaluation engine. The scoring config must already be
// validated; New rejects an invalid one rather than scoring with it.
func New(repo domain.Repository, reader *signals.Reader, cfg domain.ScoringConfig, generator *alerts.Generator, bus domain.EventBus) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{
		repo:        repo,
		reader:      reader,
		calculators: category.All(),
		aggregator:  NewAggregator(cfg),
		thresholds:  cfg.Thresholds,
		generator:   generator,
		bus:         bus,
	}, nil
}

// Evaluate scores one employee over the trailing periodDays window,
// persists an immutable snapshot, and raises alerts when thresholds are
// crossed. Signal-source and persistence failures degrade; an unknown
// employee is a hard error.
func (e *Engine) Evaluate(ctx context.Context, venueID, employeeID string, periodDays int) (*domain.EvaluationResult, error) {
	if periodDays <= 0 {
		periodDays = defaultPeriodDays
	}

	emp, err := e.repo.GetEmployee(ctx, venueID, employeeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("employee %s at venue %s: %w", employeeID, venueID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("lookup employee %s: %w", employeeID, err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -periodDays)

	set := e.reader.Collect(ctx, venueID, emp.ID, start, end)

	scores := make(map[domain.Category]float64, len(e.calculators))
	for _, calc := range e.calculators {
		scores[calc.Category()] = calc.Score(set, e.thresholds)
	}

	composite := e.aggregator.Aggregate(scores)

	previous, err := e.repo.GetLatestSnapshot(ctx, venueID, emp.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("previous snapshot unavailable",
			"venue_id", venueID,
			"employee_id", emp.ID,
			"error", err,
		)
		previous = nil
	}

	snapshot := &domain.Snapshot{
		ID:                   uuid.New().String(),
		VenueID:              venueID,
		EmployeeID:           emp.ID,
		PeriodStart:          start,
		PeriodEnd:            end,
		CategoryScores:       scores,
		FraudIndex:           composite.FraudIndex,
		RiskLevel:            composite.RiskLevel,
		TransactionsAnalyzed: len(set.Transactions),
		Concerns:             composite.Concerns,
		Recommendations:      composite.Recommendations,
		DegradedSources:      set.Degraded,
		CreatedAt:            time.Now().UTC(),
	}
	if previous != nil {
		snapshot.ScoreDelta = snapshot.FraudIndex - previous.FraudIndex
	}

	trend := e.Trend(ctx, venueID, emp.ID, snapshot.FraudIndex, previous)
	snapshot.TrendDirection = trend.Direction

	peers := e.Peers(ctx, venueID, emp.ID, snapshot.FraudIndex)

	// Best-effort durability: a storage hiccup must not cost the caller
	// the computed result.
	if err := e.repo.SaveSnapshot(ctx, venueID, snapshot); err != nil {
		slog.Warn("snapshot persist failed, returning computed result",
			"venue_id", venueID,
			"employee_id", emp.ID,
			"error", err,
		)
	}

	if e.generator != nil {
		if _, err := e.generator.FromSnapshot(ctx, snapshot); err != nil {
			slog.Warn("alert generation failed",
				"venue_id", venueID,
				"employee_id", emp.ID,
				"error", err,
			)
		}
	}

	e.publishEvaluation(ctx, snapshot)

	slog.Info("employee evaluated",
		"venue_id", venueID,
		"employee_id", emp.ID,
		"fraud_index", snapshot.FraudIndex,
		"risk_level", string(snapshot.RiskLevel),
		"transactions", snapshot.TransactionsAnalyzed,
		"degraded_sources", len(set.Degraded),
	)

	return &domain.EvaluationResult{
		Snapshot: snapshot,
		Trend:    trend,
		Peers:    peers,
	}, nil
}

// History returns the employee's snapshot history for the trailing days,
// newest first.
func (e *Engine) History(ctx context.Context, venueID, employeeID string, days int) ([]*domain.Snapshot, error) {
	if days <= 0 {
		days = trendWindowDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return e.repo.GetSnapshots(ctx, venueID, employeeID, since)
}

func (e *Engine) publishEvaluation(ctx context.Context, s *domain.Snapshot) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, s.VenueID, domain.TopicEvaluationCompleted, payload); err != nil {
		slog.Warn("evaluation publish failed",
			"venue_id", s.VenueID,
			"employee_id", s.EmployeeID,
			"error", err,
		)
	}
}
