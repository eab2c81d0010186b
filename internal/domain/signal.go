package domain

import (
	"time"
)

// SignalKind tags the variant of a signal record.
type SignalKind string

const (
	KindTransaction SignalKind = "transaction"
	KindVoid        SignalKind = "void"
	KindDiscount    SignalKind = "discount"
	KindRefund      SignalKind = "refund"
	KindCashReport  SignalKind = "cash_report"
	KindTimeEntry   SignalKind = "time_entry"
	KindOverride    SignalKind = "override"
)

// SignalKinds lists every signal variant in adapter fetch order.
func SignalKinds() []SignalKind {
	return []SignalKind{
		KindTransaction, KindVoid, KindDiscount, KindRefund,
		KindCashReport, KindTimeEntry, KindOverride,
	}
}

// Transaction is a completed POS ticket rung up by an employee.
type Transaction struct {
	ID         string    `json:"id"`
	VenueID    string    `json:"venueId"`
	EmployeeID string    `json:"employeeId"`
	Type       string    `json:"type"` // "sale", "refund", "void", ...
	Amount     float64   `json:"amount"`
	TenderType string    `json:"tenderType"` // "cash", "card", ...
	Timestamp  time.Time `json:"timestamp"`
}

// Void is a line or ticket void performed by an employee.
type Void struct {
	ID                string    `json:"id"`
	VenueID           string    `json:"venueId"`
	EmployeeID        string    `json:"employeeId"`
	TransactionID     string    `json:"transactionId"`
	Amount            float64   `json:"amount"`
	MinutesSinceOrder float64   `json:"minutesSinceOrder"`
	AfterPayment      bool      `json:"afterPayment"`
	EndOfShift        bool      `json:"endOfShift"`
	Timestamp         time.Time `json:"timestamp"`
}

// Discount is a price reduction applied to a ticket.
type Discount struct {
	ID            string    `json:"id"`
	VenueID       string    `json:"venueId"`
	EmployeeID    string    `json:"employeeId"`
	TransactionID string    `json:"transactionId"`
	Amount        float64   `json:"amount"`
	Percent       float64   `json:"percent"`
	Approved      bool      `json:"approved"`
	ApprovedBy    string    `json:"approvedBy,omitempty"`
	CustomerID    string    `json:"customerId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Refund is money returned to a customer.
type Refund struct {
	ID            string    `json:"id"`
	VenueID       string    `json:"venueId"`
	EmployeeID    string    `json:"employeeId"`
	TransactionID string    `json:"transactionId"`
	Amount        float64   `json:"amount"`
	HasReceipt    bool      `json:"hasReceipt"`
	TenderType    string    `json:"tenderType"`
	Timestamp     time.Time `json:"timestamp"`
}

// CashReport is a drawer count at shift close.
// Variance is counted minus expected: negative means a shortage.
type CashReport struct {
	ID          string    `json:"id"`
	VenueID     string    `json:"venueId"`
	EmployeeID  string    `json:"employeeId"`
	Variance    float64   `json:"variance"`
	NoSaleCount int       `json:"noSaleCount"`
	Timestamp   time.Time `json:"timestamp"`
}

// TimeEntry is a clock-in/clock-out pair for one shift.
// ClockOut and the scheduled bounds are zero for an open shift.
type TimeEntry struct {
	ID              string    `json:"id"`
	VenueID         string    `json:"venueId"`
	EmployeeID      string    `json:"employeeId"`
	ClockIn         time.Time `json:"clockIn"`
	ClockOut        time.Time `json:"clockOut,omitempty"`
	ScheduledStart  time.Time `json:"scheduledStart,omitempty"`
	ScheduledEnd    time.Time `json:"scheduledEnd,omitempty"`
	Manual          bool      `json:"manual"` // entry was corrected by hand
	UnusualLocation bool      `json:"unusualLocation"`
}

// WorkedHours returns the shift length in hours, 0 for an open shift.
func (e *TimeEntry) WorkedHours() float64 {
	if e.ClockOut.IsZero() || !e.ClockOut.After(e.ClockIn) {
		return 0
	}
	return e.ClockOut.Sub(e.ClockIn).Hours()
}

// PaddingMinutes returns minutes clocked outside the scheduled window
// (early in plus late out). Zero when no schedule is attached.
func (e *TimeEntry) PaddingMinutes() float64 {
	var pad float64
	if !e.ScheduledStart.IsZero() && e.ClockIn.Before(e.ScheduledStart) {
		pad += e.ScheduledStart.Sub(e.ClockIn).Minutes()
	}
	if !e.ScheduledEnd.IsZero() && !e.ClockOut.IsZero() && e.ClockOut.After(e.ScheduledEnd) {
		pad += e.ClockOut.Sub(e.ScheduledEnd).Minutes()
	}
	return pad
}

// ManagerOverride is a manager-approved exception (price change, comp,
// drawer open, void approval) recorded against an employee.
type ManagerOverride struct {
	ID         string    `json:"id"`
	VenueID    string    `json:"venueId"`
	EmployeeID string    `json:"employeeId"`
	ApproverID string    `json:"approverId"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// SignalSet is the full windowed signal view for one employee, as
// assembled by the signal adapters. Slices are ordered by timestamp.
// A degraded source appears in Degraded and contributes an empty slice;
// calculators treat absence of data as zero risk.
type SignalSet struct {
	VenueID     string
	EmployeeID  string
	PeriodStart time.Time
	PeriodEnd   time.Time

	Transactions []*Transaction
	Voids        []*Void
	Discounts    []*Discount
	Refunds      []*Refund
	CashReports  []*CashReport
	TimeEntries  []*TimeEntry
	Overrides    []*ManagerOverride

	// Baseline may be nil when no long-window history exists yet.
	Baseline *Baseline

	// Degraded lists signal kinds whose adapter read failed.
	Degraded []SignalKind
}

// PeriodDays returns the window length in whole days, minimum 1.
func (s *SignalSet) PeriodDays() int {
	days := int(s.PeriodEnd.Sub(s.PeriodStart).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}
