package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
)

const defaultAlertLimit = 100

// SaveSnapshot stores an evaluation snapshot with venue isolation.
// Snapshots are append-only; re-evaluation inserts a new row.
func (r *SQLRepository) SaveSnapshot(ctx context.Context, venueID string, s *domain.Snapshot) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	scores, _ := json.Marshal(s.CategoryScores)
	concerns, _ := json.Marshal(s.Concerns)
	recommendations, _ := json.Marshal(s.Recommendations)
	degraded, _ := json.Marshal(s.DegradedSources)

	query := `
		INSERT INTO fraud_snapshots (
			id, venue_id, employee_id, period_start, period_end,
			category_scores, fraud_index, risk_level,
			transactions_analyzed, score_delta, trend_direction,
			concerns, recommendations, degraded_sources, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		s.ID, venueID, s.EmployeeID, s.PeriodStart, s.PeriodEnd,
		string(scores), s.FraudIndex, string(s.RiskLevel),
		s.TransactionsAnalyzed, s.ScoreDelta, string(s.TrendDirection),
		string(concerns), string(recommendations), string(degraded), s.CreatedAt,
	)
	return err
}

// GetSnapshots retrieves an employee's snapshots since a cutoff, newest
// first.
func (r *SQLRepository) GetSnapshots(ctx context.Context, venueID, employeeID string, since time.Time) ([]*domain.Snapshot, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, period_start, period_end,
			   category_scores, fraud_index, risk_level,
			   transactions_analyzed, score_delta, trend_direction,
			   concerns, recommendations, degraded_sources, created_at
		FROM fraud_snapshots
		WHERE venue_id = ? AND employee_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, employeeID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// GetLatestSnapshot retrieves an employee's most recent snapshot.
func (r *SQLRepository) GetLatestSnapshot(ctx context.Context, venueID, employeeID string) (*domain.Snapshot, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, period_start, period_end,
			   category_scores, fraud_index, risk_level,
			   transactions_analyzed, score_delta, trend_direction,
			   concerns, recommendations, degraded_sources, created_at
		FROM fraud_snapshots
		WHERE venue_id = ? AND employee_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	s, err := scanSnapshot(r.db.QueryRowContext(ctx, r.rebind(query), venueID, employeeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetLatestVenueSnapshots retrieves the most recent snapshot per employee
// for a venue.
func (r *SQLRepository) GetLatestVenueSnapshots(ctx context.Context, venueID string) ([]*domain.Snapshot, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT s.id, s.venue_id, s.employee_id, s.period_start, s.period_end,
			   s.category_scores, s.fraud_index, s.risk_level,
			   s.transactions_analyzed, s.score_delta, s.trend_direction,
			   s.concerns, s.recommendations, s.degraded_sources, s.created_at
		FROM fraud_snapshots s
		JOIN (
			SELECT employee_id, MAX(created_at) AS latest
			FROM fraud_snapshots
			WHERE venue_id = ?
			GROUP BY employee_id
		) m ON s.employee_id = m.employee_id AND s.created_at = m.latest
		WHERE s.venue_id = ?
		ORDER BY s.fraud_index DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// SaveAlert stores an alert with venue isolation.
func (r *SQLRepository) SaveAlert(ctx context.Context, venueID string, a *domain.Alert) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO alerts (
			id, venue_id, employee_id, severity, category, message,
			transaction_id, shift_id, created_at,
			acknowledged, acknowledged_by, acknowledged_at, action_taken, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var ackAt sql.NullTime
	if a.AcknowledgedAt != nil {
		ackAt = sql.NullTime{Time: *a.AcknowledgedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, venueID, a.EmployeeID, string(a.Severity), string(a.Category), a.Message,
		a.TransactionID, a.ShiftID, a.CreatedAt,
		boolInt(a.Acknowledged), a.AcknowledgedBy, ackAt, a.ActionTaken, a.Notes,
	)
	return err
}

// GetAlert retrieves an alert by ID with venue isolation.
func (r *SQLRepository) GetAlert(ctx context.Context, venueID, alertID string) (*domain.Alert, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, severity, category, message,
			   transaction_id, shift_id, created_at,
			   acknowledged, acknowledged_by, acknowledged_at, action_taken, notes
		FROM alerts
		WHERE venue_id = ? AND id = ?
	`

	a, err := scanAlert(r.db.QueryRowContext(ctx, r.rebind(query), venueID, alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAlerts retrieves alerts matching the filter, newest first.
func (r *SQLRepository) ListAlerts(ctx context.Context, venueID string, filter domain.AlertFilter) ([]*domain.Alert, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	var where []string
	args := []any{venueID}

	where = append(where, "venue_id = ?")
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.UnacknowledgedOnly {
		where = append(where, "acknowledged = 0")
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, venue_id, employee_id, severity, category, message,
			   transaction_id, shift_id, created_at,
			   acknowledged, acknowledged_by, acknowledged_at, action_taken, notes
		FROM alerts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT ?
	`, strings.Join(where, " AND "))

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// UpdateAlertAck persists an alert's acknowledgment fields.
func (r *SQLRepository) UpdateAlertAck(ctx context.Context, venueID string, a *domain.Alert) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	var ackAt sql.NullTime
	if a.AcknowledgedAt != nil {
		ackAt = sql.NullTime{Time: *a.AcknowledgedAt, Valid: true}
	}

	query := `
		UPDATE alerts
		SET acknowledged = ?, acknowledged_by = ?, acknowledged_at = ?,
			action_taken = ?, notes = ?
		WHERE venue_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		boolInt(a.Acknowledged), a.AcknowledgedBy, ackAt,
		a.ActionTaken, a.Notes, venueID, a.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// CountUnacknowledgedAlerts counts open alerts for a venue.
func (r *SQLRepository) CountUnacknowledgedAlerts(ctx context.Context, venueID string) (int64, error) {
	if venueID == "" {
		return 0, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `SELECT COUNT(*) FROM alerts WHERE venue_id = ? AND acknowledged = 0`

	var n int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), venueID).Scan(&n)
	return n, err
}

// SaveBaseline upserts an employee's behavioral baseline.
func (r *SQLRepository) SaveBaseline(ctx context.Context, venueID string, b *domain.Baseline) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO baselines (
			venue_id, employee_id, avg_void_rate, avg_discount_rate,
			avg_ticket, ticket_stddev, avg_hourly_tx, sample_days, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue_id, employee_id) DO UPDATE SET
			avg_void_rate = excluded.avg_void_rate,
			avg_discount_rate = excluded.avg_discount_rate,
			avg_ticket = excluded.avg_ticket,
			ticket_stddev = excluded.ticket_stddev,
			avg_hourly_tx = excluded.avg_hourly_tx,
			sample_days = excluded.sample_days,
			computed_at = excluded.computed_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		venueID, b.EmployeeID, b.AvgVoidRate, b.AvgDiscountRate,
		b.AvgTicket, b.TicketStddev, b.AvgHourlyTx, b.SampleDays, b.ComputedAt,
	)
	return err
}

// GetBaseline retrieves an employee's behavioral baseline.
func (r *SQLRepository) GetBaseline(ctx context.Context, venueID, employeeID string) (*domain.Baseline, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT venue_id, employee_id, avg_void_rate, avg_discount_rate,
			   avg_ticket, ticket_stddev, avg_hourly_tx, sample_days, computed_at
		FROM baselines
		WHERE venue_id = ? AND employee_id = ?
	`

	var b domain.Baseline
	err := r.db.QueryRowContext(ctx, r.rebind(query), venueID, employeeID).Scan(
		&b.VenueID, &b.EmployeeID, &b.AvgVoidRate, &b.AvgDiscountRate,
		&b.AvgTicket, &b.TicketStddev, &b.AvgHourlyTx, &b.SampleDays, &b.ComputedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	var s domain.Snapshot
	var scores string
	var concerns, recommendations, degraded sql.NullString
	var riskLevel, trendDirection string

	if err := row.Scan(
		&s.ID, &s.VenueID, &s.EmployeeID, &s.PeriodStart, &s.PeriodEnd,
		&scores, &s.FraudIndex, &riskLevel,
		&s.TransactionsAnalyzed, &s.ScoreDelta, &trendDirection,
		&concerns, &recommendations, &degraded, &s.CreatedAt,
	); err != nil {
		return nil, err
	}

	s.RiskLevel = domain.RiskLevel(riskLevel)
	s.TrendDirection = domain.TrendDirection(trendDirection)
	if err := json.Unmarshal([]byte(scores), &s.CategoryScores); err != nil {
		return nil, fmt.Errorf("failed to parse category scores: %w", err)
	}
	if concerns.Valid && concerns.String != "" {
		json.Unmarshal([]byte(concerns.String), &s.Concerns)
	}
	if recommendations.Valid && recommendations.String != "" {
		json.Unmarshal([]byte(recommendations.String), &s.Recommendations)
	}
	if degraded.Valid && degraded.String != "" {
		json.Unmarshal([]byte(degraded.String), &s.DegradedSources)
	}

	return &s, nil
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var a domain.Alert
	var severity, category string
	var txID, shiftID, ackBy, action, notes sql.NullString
	var acknowledged int
	var ackAt sql.NullTime

	if err := row.Scan(
		&a.ID, &a.VenueID, &a.EmployeeID, &severity, &category, &a.Message,
		&txID, &shiftID, &a.CreatedAt,
		&acknowledged, &ackBy, &ackAt, &action, &notes,
	); err != nil {
		return nil, err
	}

	a.Severity = domain.Severity(severity)
	a.Category = domain.Category(category)
	a.TransactionID = txID.String
	a.ShiftID = shiftID.String
	a.Acknowledged = acknowledged == 1
	a.AcknowledgedBy = ackBy.String
	a.ActionTaken = action.String
	a.Notes = notes.String
	if ackAt.Valid {
		t := ackAt.Time
		a.AcknowledgedAt = &t
	}

	return &a, nil
}
