package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaStaff = `
CREATE TABLE IF NOT EXISTS staff (
    id TEXT NOT NULL,
    venue_id TEXT NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    hired_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, venue_id)
);

CREATE INDEX IF NOT EXISTS idx_staff_venue ON staff(venue_id);
CREATE INDEX IF NOT EXISTS idx_staff_active ON staff(venue_id, active);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount REAL NOT NULL,
    tender_type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_employee ON transactions(venue_id, employee_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_venue_ts ON transactions(venue_id, timestamp);
`

const schemaVoids = `
CREATE TABLE IF NOT EXISTS voids (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    amount REAL NOT NULL,
    minutes_since_order REAL NOT NULL,
    after_payment INTEGER NOT NULL DEFAULT 0,
    end_of_shift INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_voids_employee ON voids(venue_id, employee_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_voids_venue_ts ON voids(venue_id, timestamp);
`

const schemaDiscounts = `
CREATE TABLE IF NOT EXISTS discounts (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    amount REAL NOT NULL,
    percent REAL NOT NULL,
    approved INTEGER NOT NULL DEFAULT 0,
    approved_by TEXT,
    customer_id TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discounts_employee ON discounts(venue_id, employee_id, timestamp);
`

const schemaRefunds = `
CREATE TABLE IF NOT EXISTS refunds (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    amount REAL NOT NULL,
    has_receipt INTEGER NOT NULL DEFAULT 1,
    tender_type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_refunds_employee ON refunds(venue_id, employee_id, timestamp);
`

const schemaCashReports = `
CREATE TABLE IF NOT EXISTS cash_reports (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    variance REAL NOT NULL,
    no_sale_count INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cash_reports_employee ON cash_reports(venue_id, employee_id, timestamp);
`

const schemaTimeEntries = `
CREATE TABLE IF NOT EXISTS time_entries (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    clock_in TIMESTAMP NOT NULL,
    clock_out TIMESTAMP,
    scheduled_start TIMESTAMP,
    scheduled_end TIMESTAMP,
    manual INTEGER NOT NULL DEFAULT 0,
    unusual_location INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_time_entries_employee ON time_entries(venue_id, employee_id, clock_in);
`

const schemaOverrides = `
CREATE TABLE IF NOT EXISTS manager_overrides (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    approver_id TEXT NOT NULL,
    type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_overrides_employee ON manager_overrides(venue_id, employee_id, timestamp);
`

const schemaSnapshots = `
CREATE TABLE IF NOT EXISTS fraud_snapshots (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    period_start TIMESTAMP NOT NULL,
    period_end TIMESTAMP NOT NULL,
    category_scores TEXT NOT NULL,
    fraud_index REAL NOT NULL,
    risk_level TEXT NOT NULL,
    transactions_analyzed INTEGER NOT NULL DEFAULT 0,
    score_delta REAL NOT NULL DEFAULT 0,
    trend_direction TEXT NOT NULL DEFAULT 'stable',
    concerns TEXT,
    recommendations TEXT,
    degraded_sources TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_employee ON fraud_snapshots(venue_id, employee_id, created_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_venue ON fraud_snapshots(venue_id, created_at);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    category TEXT NOT NULL,
    message TEXT NOT NULL,
    transaction_id TEXT,
    shift_id TEXT,
    created_at TIMESTAMP NOT NULL,
    acknowledged INTEGER NOT NULL DEFAULT 0,
    acknowledged_by TEXT,
    acknowledged_at TIMESTAMP,
    action_taken TEXT,
    notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_alerts_venue ON alerts(venue_id, created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_employee ON alerts(venue_id, employee_id, created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_unacked ON alerts(venue_id, acknowledged);
`

const schemaBaselines = `
CREATE TABLE IF NOT EXISTS baselines (
    venue_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    avg_void_rate REAL NOT NULL DEFAULT 0,
    avg_discount_rate REAL NOT NULL DEFAULT 0,
    avg_ticket REAL NOT NULL DEFAULT 0,
    ticket_stddev REAL NOT NULL DEFAULT 0,
    avg_hourly_tx REAL NOT NULL DEFAULT 0,
    sample_days INTEGER NOT NULL DEFAULT 0,
    computed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (venue_id, employee_id)
);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    venue_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    flag TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, venue_id)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_venue ON rule_configs(venue_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaStaff,
		schemaTransactions,
		schemaVoids,
		schemaDiscounts,
		schemaRefunds,
		schemaCashReports,
		schemaTimeEntries,
		schemaOverrides,
		schemaSnapshots,
		schemaAlerts,
		schemaBaselines,
		schemaRuleConfigs,
	}
}
