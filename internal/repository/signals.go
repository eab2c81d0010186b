package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
)

// Signal reads return records ordered by timestamp ascending within
// [start, end), matching the adapter contract.

// SaveTransaction stores a POS transaction with venue isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, venueID string, tx *domain.Transaction) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (id, venue_id, employee_id, type, amount, tender_type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, venueID, tx.EmployeeID, tx.Type, tx.Amount, tx.TenderType, tx.Timestamp,
	)
	return err
}

// GetTransactions retrieves an employee's transactions in [start, end).
func (r *SQLRepository) GetTransactions(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*domain.Transaction, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, type, amount, tender_type, timestamp
		FROM transactions
		WHERE venue_id = ? AND employee_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.VenueID, &tx.EmployeeID, &tx.Type,
			&tx.Amount, &tx.TenderType, &tx.Timestamp,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, &tx)
	}

	return transactions, rows.Err()
}

// SaveVoid stores a void record with venue isolation.
func (r *SQLRepository) SaveVoid(ctx context.Context, venueID string, v *domain.Void) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO voids (
			id, venue_id, employee_id, transaction_id, amount,
			minutes_since_order, after_payment, end_of_shift, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		v.ID, venueID, v.EmployeeID, v.TransactionID, v.Amount,
		v.MinutesSinceOrder, boolInt(v.AfterPayment), boolInt(v.EndOfShift), v.Timestamp,
	)
	return err
}

// GetVoids retrieves an employee's voids in [start, end).
func (r *SQLRepository) GetVoids(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*domain.Void, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, transaction_id, amount,
			   minutes_since_order, after_payment, end_of_shift, timestamp
		FROM voids
		WHERE venue_id = ? AND employee_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var voids []*domain.Void
	for rows.Next() {
		var v domain.Void
		var afterPayment, endOfShift int

		if err := rows.Scan(
			&v.ID, &v.VenueID, &v.EmployeeID, &v.TransactionID, &v.Amount,
			&v.MinutesSinceOrder, &afterPayment, &endOfShift, &v.Timestamp,
		); err != nil {
			return nil, err
		}

		v.AfterPayment = afterPayment == 1
		v.EndOfShift = endOfShift == 1
		voids = append(voids, &v)
	}

	return voids, rows.Err()
}

// SaveDiscount stores a discount record with venue isolation.
func (r *SQLRepository) SaveDiscount(ctx context.Context, venueID string, d *domain.Discount) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO discounts (
			id, venue_id, employee_id, transaction_id, amount,
			percent, approved, approved_by, customer_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		d.ID, venueID, d.EmployeeID, d.TransactionID, d.Amount,
		d.Percent, boolInt(d.Approved), d.ApprovedBy, d.CustomerID, d.Timestamp,
	)
	return err
}

// GetDiscounts retrieves an employee's discounts in [start, end).
func (r *SQLRepository) GetDiscounts(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*domain.Discount, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, transaction_id, amount,
			   percent, approved, approved_by, customer_id, timestamp
		FROM discounts
		WHERE venue_id = ? AND employee_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []*domain.Discount
	for rows.Next() {
		var d domain.Discount
		var approved int
		var approvedBy, customerID sql.NullString

		if err := rows.Scan(
			&d.ID, &d.VenueID, &d.EmployeeID, &d.TransactionID, &d.Amount,
			&d.Percent, &approved, &approvedBy, &customerID, &d.Timestamp,
		); err != nil {
			return nil, err
		}

		d.Approved = approved == 1
		d.ApprovedBy = approvedBy.String
		d.CustomerID = customerID.String
		discounts = append(discounts, &d)
	}

	return discounts, rows.Err()
}

// SaveRefund stores a refund record with venue isolation.
func (r *SQLRepository) SaveRefund(ctx context.Context, venueID string, rf *domain.Refund) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO refunds (
			id, venue_id, employee_id, transaction_id, amount,
			has_receipt, tender_type, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rf.ID, venueID, rf.EmployeeID, rf.TransactionID, rf.Amount,
		boolInt(rf.HasReceipt), rf.TenderType, rf.Timestamp,
	)
	return err
}

// GetRefunds retrieves an employee's refunds in [start, end).
func (r *SQLRepository) GetRefunds(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*domain.Refund, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, transaction_id, amount,
			   has_receipt, tender_type, timestamp
		FROM refunds
		WHERE venue_id = ? AND employee_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refunds []*domain.Refund
	for rows.Next() {
		var rf domain.Refund
		var hasReceipt int

		if err := rows.Scan(
			&rf.ID, &rf.VenueID, &rf.EmployeeID, &rf.TransactionID, &rf.Amount,
			&hasReceipt, &rf.TenderType, &rf.Timestamp,
		); err != nil {
			return nil, err
		}

		rf.HasReceipt = hasReceipt == 1
		refunds = append(refunds, &rf)
	}

	return refunds, rows.Err()
}

// SaveCashReport stores a drawer count with venue isolation.
func (r *SQLRepository) SaveCashReport(ctx context.Context, venueID string, cr *domain.CashReport) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO cash_reports (id, venue_id, employee_id, variance, no_sale_count, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		cr.ID, venueID, cr.EmployeeID, cr.Variance, cr.NoSaleCount, cr.Timestamp,
	)
	return err
}

// GetCashReports retrieves an employee's drawer counts in [start, end).
func (r *SQLRepository) GetCashReports(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*domain.CashReport, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, variance, no_sale_count, timestamp
		FROM cash_reports
		WHERE venue_id = ? AND employee_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*domain.CashReport
	for rows.Next() {
		var cr domain.CashReport
		if err := rows.Scan(
			&cr.ID, &cr.VenueID, &cr.EmployeeID, &cr.Variance, &cr.NoSaleCount, &cr.Timestamp,
		); err != nil {
			return nil, err
		}
		reports = append(reports, &cr)
	}

	return reports, rows.Err()
}

// SaveTimeEntry stores a time clock entry with venue isolation.
// Zero-valued clock-out and schedule bounds are stored as NULL.
func (r *SQLRepository) SaveTimeEntry(ctx context.Context, venueID string, te *domain.TimeEntry) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO time_entries (
			id, venue_id, employee_id, clock_in, clock_out,
			scheduled_start, scheduled_end, manual, unusual_location
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		te.ID, venueID, te.EmployeeID, te.ClockIn, nullTime(te.ClockOut),
		nullTime(te.ScheduledStart), nullTime(te.ScheduledEnd),
		boolInt(te.Manual), boolInt(te.UnusualLocation),
	)
	return err
}

// GetTimeEntries retrieves an employee's time entries clocked in within
// [start, end).
func (r *SQLRepository) GetTimeEntries(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*domain.TimeEntry, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, clock_in, clock_out,
			   scheduled_start, scheduled_end, manual, unusual_location
		FROM time_entries
		WHERE venue_id = ? AND employee_id = ? AND clock_in >= ? AND clock_in < ?
		ORDER BY clock_in
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.TimeEntry
	for rows.Next() {
		te, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, te)
	}

	return entries, rows.Err()
}

// GetTimeEntry retrieves one time entry by ID with venue isolation.
func (r *SQLRepository) GetTimeEntry(ctx context.Context, venueID, entryID string) (*domain.TimeEntry, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, clock_in, clock_out,
			   scheduled_start, scheduled_end, manual, unusual_location
		FROM time_entries
		WHERE venue_id = ? AND id = ?
	`

	te, err := scanTimeEntry(r.db.QueryRowContext(ctx, r.rebind(query), venueID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return te, nil
}

// SaveOverride stores a manager override with venue isolation.
func (r *SQLRepository) SaveOverride(ctx context.Context, venueID string, ov *domain.ManagerOverride) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO manager_overrides (id, venue_id, employee_id, approver_id, type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		ov.ID, venueID, ov.EmployeeID, ov.ApproverID, ov.Type, ov.Timestamp,
	)
	return err
}

// GetOverrides retrieves overrides recorded against an employee in [start, end).
func (r *SQLRepository) GetOverrides(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*domain.ManagerOverride, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, employee_id, approver_id, type, timestamp
		FROM manager_overrides
		WHERE venue_id = ? AND employee_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []*domain.ManagerOverride
	for rows.Next() {
		var ov domain.ManagerOverride
		if err := rows.Scan(
			&ov.ID, &ov.VenueID, &ov.EmployeeID, &ov.ApproverID, &ov.Type, &ov.Timestamp,
		); err != nil {
			return nil, err
		}
		overrides = append(overrides, &ov)
	}

	return overrides, rows.Err()
}

// CountVenueTransactions counts all venue transactions in [start, end).
func (r *SQLRepository) CountVenueTransactions(ctx context.Context, venueID string, start, end time.Time) (int64, error) {
	return r.countVenue(ctx, "transactions", venueID, start, end)
}

// CountVenueVoids counts all venue voids in [start, end).
func (r *SQLRepository) CountVenueVoids(ctx context.Context, venueID string, start, end time.Time) (int64, error) {
	return r.countVenue(ctx, "voids", venueID, start, end)
}

func (r *SQLRepository) countVenue(ctx context.Context, table, venueID string, start, end time.Time) (int64, error) {
	if venueID == "" {
		return 0, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE venue_id = ? AND timestamp >= ? AND timestamp < ?",
		table,
	)

	var n int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), venueID, start, end).Scan(&n)
	return n, err
}

// signalTables maps signal kinds to their table and time column. Table
// names come from this fixed map, never from caller input.
var signalTables = map[domain.SignalKind][2]string{
	domain.KindTransaction: {"transactions", "timestamp"},
	domain.KindVoid:        {"voids", "timestamp"},
	domain.KindDiscount:    {"discounts", "timestamp"},
	domain.KindRefund:      {"refunds", "timestamp"},
	domain.KindCashReport:  {"cash_reports", "timestamp"},
	domain.KindTimeEntry:   {"time_entries", "clock_in"},
	domain.KindOverride:    {"manager_overrides", "timestamp"},
}

// CountEmployeeSignals counts one employee's records of a signal kind in
// [start, end).
func (r *SQLRepository) CountEmployeeSignals(ctx context.Context, venueID, employeeID string, kind domain.SignalKind, start, end time.Time) (int64, error) {
	if venueID == "" {
		return 0, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	t, ok := signalTables[kind]
	if !ok {
		return 0, fmt.Errorf("%w: unknown signal kind %q", ErrInvalidInput, kind)
	}

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE venue_id = ? AND employee_id = ? AND %s >= ? AND %s < ?",
		t[0], t[1], t[1],
	)

	var n int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), venueID, employeeID, start, end).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimeEntry(row rowScanner) (*domain.TimeEntry, error) {
	var te domain.TimeEntry
	var clockOut, schedStart, schedEnd sql.NullTime
	var manual, unusual int

	if err := row.Scan(
		&te.ID, &te.VenueID, &te.EmployeeID, &te.ClockIn, &clockOut,
		&schedStart, &schedEnd, &manual, &unusual,
	); err != nil {
		return nil, err
	}

	if clockOut.Valid {
		te.ClockOut = clockOut.Time
	}
	if schedStart.Valid {
		te.ScheduledStart = schedStart.Time
	}
	if schedEnd.Valid {
		te.ScheduledEnd = schedEnd.Time
	}
	te.Manual = manual == 1
	te.UnusualLocation = unusual == 1
	return &te, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
