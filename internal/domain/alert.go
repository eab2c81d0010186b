package domain

import "time"

// Severity is the ordered alert severity set.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities for filtering and sorting.
// Unknown severities rank below "low".
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ValidSeverity reports whether s is a member of the fixed severity set.
func ValidSeverity(s Severity) bool {
	return SeverityRank(s) > 0
}

// Alert is a severity-tagged, acknowledgeable notification. Created by the
// alert generator or the real-time monitor; mutated only by acknowledgment.
type Alert struct {
	ID            string    `json:"id"`
	VenueID       string    `json:"venueId"`
	EmployeeID    string    `json:"employeeId"`
	Severity      Severity  `json:"severity"`
	Category      Category  `json:"category"`
	Message       string    `json:"message"`
	TransactionID string    `json:"transactionId,omitempty"`
	ShiftID       string    `json:"shiftId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ActionTaken    string     `json:"actionTaken,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// AlertFilter narrows alert listings. Zero values match everything.
type AlertFilter struct {
	EmployeeID         string
	Severity           Severity
	Category           Category
	UnacknowledgedOnly bool
	Since              time.Time
	Limit              int
}

// AcknowledgeResult reports the outcome of an acknowledgment.
// AlreadyAcknowledged distinguishes the idempotent no-op case.
type AcknowledgeResult struct {
	Alert               *Alert `json:"alert"`
	AlreadyAcknowledged bool   `json:"alreadyAcknowledged"`
}
