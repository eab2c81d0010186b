// Package monitor provides advisory real-time checks on live POS events.
// Assessments never block a transaction; they flag it for review.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/rules"
)

const (
	pointsPerFlag  = 20.0
	maxScore       = 100.0
	reviewScore    = 40.0
	immediateScore = 80.0

	// Trailing no-sale burst detection
	noSaleBurstLimit  = 3
	noSaleBurstWindow = time.Hour

	longShiftHours = 12.0
	paddingLimit   = 30.0
)

// Monitor assesses live events against built-in checks and custom venue
// rules.
type Monitor struct {
	repo       domain.Repository
	cache      domain.Cache
	rules      *rules.Engine
	thresholds domain.Thresholds
}

// New creates a real-time monitor. The rule engine may be nil when custom
// rules are disabled.
func New(repo domain.Repository, cache domain.Cache, ruleEngine *rules.Engine, thresholds domain.Thresholds) *Monitor {
	return &Monitor{
		repo:       repo,
		cache:      cache,
		rules:      ruleEngine,
		thresholds: thresholds,
	}
}

// AssessTransaction scores a single live event. Each triggered check adds
// 20 points, capped at 100. A cache failure degrades the assessment to
// the checks that need no state rather than failing the event.
func (m *Monitor) AssessTransaction(ctx context.Context, event *domain.RealTimeEvent) (*domain.RealTimeAssessment, error) {
	if event == nil || event.VenueID == "" || event.EmployeeID == "" {
		return nil, fmt.Errorf("venueID and employeeID are required")
	}

	assessment := &domain.RealTimeAssessment{
		VenueID:    event.VenueID,
		EmployeeID: event.EmployeeID,
		AssessedAt: time.Now().UTC(),
	}
	if event.Transaction != nil {
		assessment.TransactionID = event.Transaction.ID
	}

	flags := m.builtinFlags(ctx, event, assessment)

	if m.rules != nil {
		flags = append(flags, m.rules.EvaluateEvent(ctx, event)...)
	}

	assessment.Flags = flags
	assessment.RiskScore = flagScore(len(flags))
	assessment.RequiresReview = assessment.RiskScore >= reviewScore
	assessment.RequiresImmediateAction = assessment.RiskScore >= immediateScore

	return assessment, nil
}

// AssessShift scores an ongoing shift. A repository failure degrades the
// assessment to zero with a warning; a missing shift is an error.
func (m *Monitor) AssessShift(ctx context.Context, venueID, employeeID, shiftID string) (*domain.ShiftAssessment, error) {
	if venueID == "" || employeeID == "" || shiftID == "" {
		return nil, fmt.Errorf("venueID, employeeID and shiftID are required")
	}

	assessment := &domain.ShiftAssessment{
		VenueID:    venueID,
		EmployeeID: employeeID,
		ShiftID:    shiftID,
		AssessedAt: time.Now().UTC(),
	}

	entry, err := m.repo.GetTimeEntry(ctx, venueID, shiftID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("shift %s: %w", shiftID, domain.ErrNotFound)
	}
	if err != nil {
		slog.Warn("shift assessment degraded",
			"venue_id", venueID,
			"shift_id", shiftID,
			"error", err,
		)
		assessment.Degraded = true
		return assessment, nil
	}

	var flags []string
	if entry.Manual {
		flags = append(flags, "manually edited time entry")
	}
	if entry.UnusualLocation {
		flags = append(flags, "clock-in from unusual location")
	}
	if entry.PaddingMinutes() > paddingLimit {
		flags = append(flags, "clocked well outside scheduled shift")
	}
	hours := entry.WorkedHours()
	if hours == 0 && !entry.ClockIn.IsZero() {
		// Open shift: measure elapsed time instead
		hours = time.Since(entry.ClockIn).Hours()
	}
	if hours > longShiftHours {
		flags = append(flags, "shift exceeds twelve hours")
	}

	assessment.Flags = flags
	assessment.RiskScore = flagScore(len(flags))
	assessment.RequiresReview = assessment.RiskScore >= reviewScore
	assessment.RequiresImmediateAction = assessment.RiskScore >= immediateScore

	return assessment, nil
}

func (m *Monitor) builtinFlags(ctx context.Context, event *domain.RealTimeEvent, assessment *domain.RealTimeAssessment) []string {
	var flags []string
	th := m.thresholds

	if v := event.Void; v != nil {
		if v.MinutesSinceOrder > th.LateVoidMin {
			flags = append(flags, "void long after order")
		}
		if v.Amount > th.HighValueVoid {
			flags = append(flags, "high-value void")
		}
		if v.AfterPayment {
			flags = append(flags, "void after payment")
		}
	}

	if d := event.Discount; d != nil {
		// Strict: exactly-at-threshold discounts flag only in the
		// batch calculator, not live.
		if d.Percent > th.LargeDiscountPct {
			flags = append(flags, "deep discount")
		}
		if !d.Approved {
			flags = append(flags, "unapproved discount")
		}
	}

	hour := event.Timestamp.Hour()
	if hour < th.OpenHour || hour >= th.CloseHour {
		flags = append(flags, "activity outside operating hours")
	}

	if event.NoSale {
		if m.cache == nil {
			assessment.Degraded = true
		} else {
			key := "nosale:" + event.EmployeeID
			count, err := m.cache.IncrementCounter(ctx, event.VenueID, key, noSaleBurstWindow)
			if err != nil {
				slog.Warn("no-sale burst check degraded",
					"venue_id", event.VenueID,
					"employee_id", event.EmployeeID,
					"error", err,
				)
				assessment.Degraded = true
			} else if count > noSaleBurstLimit {
				flags = append(flags, "no-sale drawer open burst")
			}
		}
	}

	return flags
}

func flagScore(flags int) float64 {
	score := float64(flags) * pointsPerFlag
	if score > maxScore {
		return maxScore
	}
	return score
}
