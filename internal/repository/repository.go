// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/open-hospitality/kestrel/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveEmployee upserts a staff roster record with venue isolation.
func (r *SQLRepository) SaveEmployee(ctx context.Context, venueID string, e *domain.Employee) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO staff (id, venue_id, name, role, active, hired_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, venue_id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			active = excluded.active,
			hired_at = excluded.hired_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		e.ID, venueID, e.Name, e.Role, boolInt(e.Active), e.HiredAt,
	)
	return err
}

// GetEmployee retrieves a staff record by ID with venue isolation.
func (r *SQLRepository) GetEmployee(ctx context.Context, venueID, employeeID string) (*domain.Employee, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, name, role, active, hired_at
		FROM staff
		WHERE venue_id = ? AND id = ?
	`

	var e domain.Employee
	var active int

	err := r.db.QueryRowContext(ctx, r.rebind(query), venueID, employeeID).Scan(
		&e.ID, &e.VenueID, &e.Name, &e.Role, &active, &e.HiredAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Active = active == 1
	return &e, nil
}

// ListEmployees retrieves all active staff for a venue.
func (r *SQLRepository) ListEmployees(ctx context.Context, venueID string) ([]*domain.Employee, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, name, role, active, hired_at
		FROM staff
		WHERE venue_id = ? AND active = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []*domain.Employee
	for rows.Next() {
		var e domain.Employee
		var active int

		if err := rows.Scan(&e.ID, &e.VenueID, &e.Name, &e.Role, &active, &e.HiredAt); err != nil {
			return nil, err
		}

		e.Active = active == 1
		staff = append(staff, &e)
	}

	return staff, rows.Err()
}

// SaveRuleConfig upserts a custom rule configuration with venue isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, venueID string, rule *domain.RuleConfig) error {
	if venueID == "" {
		return fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, venue_id, name, description, expression, flag, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, venue_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			flag = excluded.flag,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, venueID, rule.Name, rule.Description,
		rule.Expression, rule.Flag, boolInt(rule.Enabled),
		now, now,
	)
	return err
}

// ListRuleConfigs retrieves all active rule configurations for a venue.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, venueID string) ([]*domain.RuleConfig, error) {
	if venueID == "" {
		return nil, fmt.Errorf("%w: venueID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, venue_id, name, description, expression, flag, enabled
		FROM rule_configs
		WHERE venue_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var description, flag sql.NullString
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.VenueID, &cfg.Name, &description,
			&cfg.Expression, &flag, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Description = description.String
		cfg.Flag = flag.String
		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
