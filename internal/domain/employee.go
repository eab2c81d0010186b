package domain

import "time"

// Employee is the identity under evaluation. Maintained by the staffing
// collaborator; read-only to this engine.
type Employee struct {
	ID      string    `json:"id"`
	VenueID string    `json:"venueId"`
	Name    string    `json:"name"`
	Role    string    `json:"role"`
	Active  bool      `json:"active"`
	HiredAt time.Time `json:"hiredAt,omitempty"`
}

// Baseline holds an employee's long-window historical averages, used for
// deviation detection by the Pattern-Anomaly calculator and the Real-Time
// Monitor. Recomputed periodically by the baseline worker, never on the
// evaluation path.
type Baseline struct {
	VenueID         string    `json:"venueId"`
	EmployeeID      string    `json:"employeeId"`
	AvgVoidRate     float64   `json:"avgVoidRate"`
	AvgDiscountRate float64   `json:"avgDiscountRate"`
	AvgTicket       float64   `json:"avgTicket"`
	TicketStddev    float64   `json:"ticketStddev"`
	AvgHourlyTx     float64   `json:"avgHourlyTx"`
	SampleDays      int       `json:"sampleDays"`
	ComputedAt      time.Time `json:"computedAt"`
}
