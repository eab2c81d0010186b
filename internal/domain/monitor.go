package domain

import "time"

// RealTimeEvent is a single newly-observed POS event fed to the real-time
// monitor. Transaction is always set; Void and Discount are attached when
// the event carries them. NoSale marks a drawer open without a sale.
type RealTimeEvent struct {
	VenueID     string       `json:"venueId"`
	EmployeeID  string       `json:"employeeId"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Void        *Void        `json:"void,omitempty"`
	Discount    *Discount    `json:"discount,omitempty"`
	NoSale      bool         `json:"noSale,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// RealTimeAssessment is the advisory result of a per-transaction check.
// RiskScore is 20 points per triggered rule, capped at 100.
type RealTimeAssessment struct {
	VenueID                 string    `json:"venueId"`
	EmployeeID              string    `json:"employeeId"`
	TransactionID           string    `json:"transactionId,omitempty"`
	RiskScore               float64   `json:"riskScore"`
	Flags                   []string  `json:"flags,omitempty"`
	RequiresReview          bool      `json:"requiresReview"`
	RequiresImmediateAction bool      `json:"requiresImmediateAction"`
	Degraded                bool      `json:"degraded,omitempty"`
	AssessedAt              time.Time `json:"assessedAt"`
}

// ShiftAssessment is the advisory result of an ongoing-shift check.
type ShiftAssessment struct {
	VenueID                 string    `json:"venueId"`
	EmployeeID              string    `json:"employeeId"`
	ShiftID                 string    `json:"shiftId"`
	RiskScore               float64   `json:"riskScore"`
	Flags                   []string  `json:"flags,omitempty"`
	RequiresReview          bool      `json:"requiresReview"`
	RequiresImmediateAction bool      `json:"requiresImmediateAction"`
	Degraded                bool      `json:"degraded,omitempty"`
	AssessedAt              time.Time `json:"assessedAt"`
}
