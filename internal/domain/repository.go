// Package domain defines the core types and store interfaces for Kestrel.
package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced employee, venue, alert, or
// snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for data persistence.
// All methods require venueID for strict venue isolation. Signal reads
// return records ordered by timestamp ascending within [start, end).
type Repository interface {
	// Staff roster (read-only to the engine)
	GetEmployee(ctx context.Context, venueID, employeeID string) (*Employee, error)
	ListEmployees(ctx context.Context, venueID string) ([]*Employee, error)
	SaveEmployee(ctx context.Context, venueID string, e *Employee) error

	// Signal record reads (the adapters' backing contract)
	GetTransactions(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*Transaction, error)
	GetVoids(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*Void, error)
	GetDiscounts(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*Discount, error)
	GetRefunds(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*Refund, error)
	GetCashReports(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*CashReport, error)
	GetTimeEntries(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*TimeEntry, error)
	GetOverrides(ctx context.Context, venueID, employeeID string, start, end time.Time) ([]*ManagerOverride, error)
	GetTimeEntry(ctx context.Context, venueID, entryID string) (*TimeEntry, error)

	// Venue-wide signal counts for dashboard rollups
	CountVenueTransactions(ctx context.Context, venueID string, start, end time.Time) (int64, error)
	CountVenueVoids(ctx context.Context, venueID string, start, end time.Time) (int64, error)
	CountEmployeeSignals(ctx context.Context, venueID, employeeID string, kind SignalKind, start, end time.Time) (int64, error)

	// Signal record writes (ingestion path)
	SaveTransaction(ctx context.Context, venueID string, tx *Transaction) error
	SaveVoid(ctx context.Context, venueID string, v *Void) error
	SaveDiscount(ctx context.Context, venueID string, d *Discount) error
	SaveRefund(ctx context.Context, venueID string, rf *Refund) error
	SaveCashReport(ctx context.Context, venueID string, cr *CashReport) error
	SaveTimeEntry(ctx context.Context, venueID string, te *TimeEntry) error
	SaveOverride(ctx context.Context, venueID string, ov *ManagerOverride) error

	// Fraud score snapshots (append-only)
	SaveSnapshot(ctx context.Context, venueID string, s *Snapshot) error
	GetSnapshots(ctx context.Context, venueID, employeeID string, since time.Time) ([]*Snapshot, error)
	GetLatestSnapshot(ctx context.Context, venueID, employeeID string) (*Snapshot, error)
	GetLatestVenueSnapshots(ctx context.Context, venueID string) ([]*Snapshot, error)

	// Alerts
	SaveAlert(ctx context.Context, venueID string, a *Alert) error
	GetAlert(ctx context.Context, venueID, alertID string) (*Alert, error)
	ListAlerts(ctx context.Context, venueID string, filter AlertFilter) ([]*Alert, error)
	UpdateAlertAck(ctx context.Context, venueID string, a *Alert) error
	CountUnacknowledgedAlerts(ctx context.Context, venueID string) (int64, error)

	// Baselines
	SaveBaseline(ctx context.Context, venueID string, b *Baseline) error
	GetBaseline(ctx context.Context, venueID, employeeID string) (*Baseline, error)

	// Custom rule configurations
	SaveRuleConfig(ctx context.Context, venueID string, rule *RuleConfig) error
	ListRuleConfigs(ctx context.Context, venueID string) ([]*RuleConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
