// Package alerts turns crossed thresholds into severity-tiered,
// acknowledgeable alerts backed by the repository.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/open-hospitality/kestrel/internal/domain"
)

// Subject-level severity thresholds on the composite fraud index.
// No alert is raised below the medium floor.
const (
	criticalIndex = 70.0
	highIndex     = 50.0
	mediumIndex   = 30.0
)

// Generator creates and manages alerts.
type Generator struct {
	repo domain.Repository
	bus  domain.EventBus
}

// NewGenerator creates an alert generator over the repository, publishing
// raised alerts to the bus when one is configured.
func NewGenerator(repo domain.Repository, bus domain.EventBus) *Generator {
	return &Generator{repo: repo, bus: bus}
}

// SeverityForIndex maps a composite fraud index to an alert severity.
// The empty string means no alert.
func SeverityForIndex(index float64) domain.Severity {
	switch {
	case index >= criticalIndex:
		return domain.SeverityCritical
	case index >= highIndex:
		return domain.SeverityHigh
	case index >= mediumIndex:
		return domain.SeverityMedium
	default:
		return ""
	}
}

// FromSnapshot raises a subject-level alert when the snapshot's fraud
// index crosses a severity threshold. Returns nil when no threshold is
// crossed.
func (g *Generator) FromSnapshot(ctx context.Context, s *domain.Snapshot) (*domain.Alert, error) {
	severity := SeverityForIndex(s.FraudIndex)
	if severity == "" {
		return nil, nil
	}

	topCategory, topScore := dominantCategory(s.CategoryScores)
	alert := &domain.Alert{
		ID:         uuid.New().String(),
		VenueID:    s.VenueID,
		EmployeeID: s.EmployeeID,
		Severity:   severity,
		Category:   topCategory,
		Message: fmt.Sprintf("Fraud index %.1f (%s); leading category %s at %.1f",
			s.FraudIndex, s.RiskLevel, topCategory, topScore),
		CreatedAt: time.Now().UTC(),
	}
	return alert, g.raise(ctx, alert)
}

// FromAssessment raises an event-level alert from a real-time monitor
// result that requires review.
func (g *Generator) FromAssessment(ctx context.Context, a *domain.RealTimeAssessment) (*domain.Alert, error) {
	if !a.RequiresReview && !a.RequiresImmediateAction {
		return nil, nil
	}

	severity := domain.SeverityMedium
	if a.RequiresImmediateAction {
		severity = domain.SeverityCritical
	} else if a.RiskScore >= 60 {
		severity = domain.SeverityHigh
	}

	alert := &domain.Alert{
		ID:            uuid.New().String(),
		VenueID:       a.VenueID,
		EmployeeID:    a.EmployeeID,
		Severity:      severity,
		Category:      domain.CategoryPattern,
		TransactionID: a.TransactionID,
		Message:       fmt.Sprintf("Live transaction flagged (score %.0f): %s", a.RiskScore, joinFlags(a.Flags)),
		CreatedAt:     time.Now().UTC(),
	}
	return alert, g.raise(ctx, alert)
}

// Get returns one alert by id.
func (g *Generator) Get(ctx context.Context, venueID, alertID string) (*domain.Alert, error) {
	return g.repo.GetAlert(ctx, venueID, alertID)
}

// List returns alerts matching the filter, newest first.
func (g *Generator) List(ctx context.Context, venueID string, filter domain.AlertFilter) ([]*domain.Alert, error) {
	return g.repo.ListAlerts(ctx, venueID, filter)
}

// Acknowledge marks an alert as handled. Acknowledging an already-
// acknowledged alert is an idempotent success and leaves the original
// acknowledgment untouched.
func (g *Generator) Acknowledge(ctx context.Context, venueID, alertID, acknowledgedBy, actionTaken, notes string) (*domain.AcknowledgeResult, error) {
	if acknowledgedBy == "" {
		return nil, fmt.Errorf("acknowledgedBy is required")
	}

	alert, err := g.repo.GetAlert(ctx, venueID, alertID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load alert %s: %w", alertID, err)
	}

	if alert.Acknowledged {
		return &domain.AcknowledgeResult{Alert: alert, AlreadyAcknowledged: true}, nil
	}

	now := time.Now().UTC()
	alert.Acknowledged = true
	alert.AcknowledgedBy = acknowledgedBy
	alert.AcknowledgedAt = &now
	alert.ActionTaken = actionTaken
	alert.Notes = notes

	if err := g.repo.UpdateAlertAck(ctx, venueID, alert); err != nil {
		return nil, fmt.Errorf("acknowledge alert %s: %w", alertID, err)
	}

	slog.Info("alert acknowledged",
		"venue_id", venueID,
		"alert_id", alertID,
		"acknowledged_by", acknowledgedBy,
	)
	return &domain.AcknowledgeResult{Alert: alert}, nil
}

func (g *Generator) raise(ctx context.Context, alert *domain.Alert) error {
	if err := g.repo.SaveAlert(ctx, alert.VenueID, alert); err != nil {
		return fmt.Errorf("save alert: %w", err)
	}

	slog.Info("alert raised",
		"venue_id", alert.VenueID,
		"employee_id", alert.EmployeeID,
		"severity", string(alert.Severity),
		"category", string(alert.Category),
	)

	if g.bus != nil {
		payload, err := json.Marshal(alert)
		if err == nil {
			if err := g.bus.Publish(ctx, alert.VenueID, domain.TopicAlertRaised, payload); err != nil {
				slog.Warn("alert publish failed",
					"venue_id", alert.VenueID,
					"alert_id", alert.ID,
					"error", err,
				)
			}
		}
	}
	return nil
}

func dominantCategory(scores map[domain.Category]float64) (domain.Category, float64) {
	top := domain.CategoryPattern
	var topScore float64
	for _, cat := range domain.Categories() {
		if scores[cat] > topScore {
			top = cat
			topScore = scores[cat]
		}
	}
	return top, topScore
}

func joinFlags(flags []string) string {
	if len(flags) == 0 {
		return "no flags"
	}
	out := flags[0]
	for _, f := range flags[1:] {
		out += ", " + f
	}
	return out
}
