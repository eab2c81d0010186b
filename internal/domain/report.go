package domain

import "time"

// VenueTrend classifies movement of the venue-wide void rate.
type VenueTrend string

const (
	VenueTrendIncreasing VenueTrend = "increasing"
	VenueTrendDecreasing VenueTrend = "decreasing"
	VenueTrendStable     VenueTrend = "stable"
)

// StaffRisk is a dashboard row for one evaluated employee.
type StaffRisk struct {
	EmployeeID string    `json:"employeeId"`
	Name       string    `json:"name,omitempty"`
	Role       string    `json:"role,omitempty"`
	FraudIndex float64   `json:"fraudIndex"`
	RiskLevel  RiskLevel `json:"riskLevel"`
}

// VenueDashboard is the venue-wide rollup for a period.
type VenueDashboard struct {
	VenueID     string    `json:"venueId"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`

	StaffEvaluated       int               `json:"staffEvaluated"`
	StaffByRiskLevel     map[RiskLevel]int `json:"staffByRiskLevel"`
	UnacknowledgedAlerts int               `json:"unacknowledgedAlerts"`
	VenueVoidRate        float64           `json:"venueVoidRate"`
	TopRisk              []StaffRisk       `json:"topRisk"`
	AlertsByCategory     map[Category]int  `json:"alertsByCategory"`
	VoidRateTrend        VenueTrend        `json:"voidRateTrend"`

	// DegradedEvaluations counts employees whose evaluation failed
	// outright; the dashboard is best-effort over the rest.
	DegradedEvaluations int `json:"degradedEvaluations,omitempty"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// OutlierTransaction is a ticket far outside the employee's baseline.
type OutlierTransaction struct {
	Transaction *Transaction `json:"transaction"`
	ZScore      float64      `json:"zScore"`
}

// RepeatDiscountCustomer is a customer receiving repeated discounts from
// the same employee, a classic collusion pattern.
type RepeatDiscountCustomer struct {
	CustomerID string  `json:"customerId"`
	Count      int     `json:"count"`
	Total      float64 `json:"total"`
}

// InvestigationReport is the per-employee deep dive for human review.
type InvestigationReport struct {
	VenueID     string    `json:"venueId"`
	EmployeeID  string    `json:"employeeId"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`

	Snapshot *Snapshot    `json:"snapshot,omitempty"`
	Trend    *TrendReport `json:"trend,omitempty"`

	SignalCounts    map[SignalKind]int       `json:"signalCounts"`
	LongestStreak   int                      `json:"longestStreak"`
	RepeatCustomers []RepeatDiscountCustomer `json:"repeatCustomers,omitempty"`
	Outliers        []OutlierTransaction     `json:"outliers,omitempty"`
	OpenAlerts      []*Alert                 `json:"openAlerts,omitempty"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// Report is the venue- or employee-scoped reporting payload.
// Employee reports carry Investigation; venue reports carry Dashboard.
type Report struct {
	VenueID       string               `json:"venueId"`
	EmployeeID    string               `json:"employeeId,omitempty"`
	Dashboard     *VenueDashboard      `json:"dashboard,omitempty"`
	Investigation *InvestigationReport `json:"investigation,omitempty"`
}
