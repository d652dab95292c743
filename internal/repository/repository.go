// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openplan-finance/compass/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

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

	repo := &SQLRepository{db: db, driver: cfg.Driver}

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

// rebind converts ?-placeholders to $n for postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// SaveCalculation stores an engine run with tenant isolation.
func (r *SQLRepository) SaveCalculation(ctx context.Context, tenantID string, calc *domain.Calculation) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	metadata, _ := json.Marshal(calc.Metadata)

	query := `
		INSERT INTO calculations (id, tenant_id, kind, input, result, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		calc.ID, tenantID, string(calc.Kind),
		string(calc.Input), string(calc.Result),
		calc.CreatedAt, string(metadata),
	)
	return err
}

// GetCalculation retrieves a calculation by ID with tenant isolation.
func (r *SQLRepository) GetCalculation(ctx context.Context, tenantID string, calcID string) (*domain.Calculation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, kind, input, result, created_at, metadata
		FROM calculations
		WHERE tenant_id = ? AND id = ?
	`

	var calc domain.Calculation
	var kind, input, result, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, calcID).Scan(
		&calc.ID, &calc.TenantID, &kind, &input, &result, &calc.CreatedAt, &metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	calc.Kind = domain.CalculationKind(kind)
	calc.Input = json.RawMessage(input)
	calc.Result = json.RawMessage(result)
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &calc.Metadata)
	}

	return &calc, nil
}

// ListCalculations retrieves calculations for a tenant, optionally
// filtered by kind, created at or after since.
func (r *SQLRepository) ListCalculations(ctx context.Context, tenantID string, kind domain.CalculationKind, since time.Time) ([]*domain.Calculation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, kind, input, result, created_at, metadata
		FROM calculations
		WHERE tenant_id = ? AND created_at >= ?
	`
	args := []any{tenantID, since}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Calculation
	for rows.Next() {
		var calc domain.Calculation
		var k, input, result, metadata string
		if err := rows.Scan(&calc.ID, &calc.TenantID, &k, &input, &result, &calc.CreatedAt, &metadata); err != nil {
			return nil, err
		}
		calc.Kind = domain.CalculationKind(k)
		calc.Input = json.RawMessage(input)
		calc.Result = json.RawMessage(result)
		if metadata != "" {
			json.Unmarshal([]byte(metadata), &calc.Metadata)
		}
		out = append(out, &calc)
	}
	return out, rows.Err()
}

// SavePolicyRule upserts a policy rule with tenant isolation.
func (r *SQLRepository) SavePolicyRule(ctx context.Context, tenantID string, rule *domain.PolicyRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)
	now := time.Now().UTC()

	// Delete-then-insert keeps the upsert portable across drivers.
	del := `DELETE FROM policy_rules WHERE tenant_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, r.rebind(del), tenantID, rule.ID); err != nil {
		return err
	}

	query := `
		INSERT INTO policy_rules (id, tenant_id, name, description, version, expression, bands, weight, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description, rule.Version,
		rule.Expression, string(bands), rule.Weight, boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetPolicyRule retrieves a policy rule by ID with tenant isolation.
func (r *SQLRepository) GetPolicyRule(ctx context.Context, tenantID string, ruleID string) (*domain.PolicyRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM policy_rules
		WHERE tenant_id = ? AND id = ?
	`

	rule, err := scanPolicyRule(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListPolicyRules retrieves all policy rules for a tenant.
func (r *SQLRepository) ListPolicyRules(ctx context.Context, tenantID string) ([]*domain.PolicyRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM policy_rules
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PolicyRule
	for rows.Next() {
		rule, err := scanPolicyRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicyRule(row rowScanner) (*domain.PolicyRule, error) {
	var rule domain.PolicyRule
	var bands string
	var enabled int

	err := row.Scan(&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &bands, &rule.Weight, &enabled)
	if err != nil {
		return nil, err
	}

	if bands != "" {
		json.Unmarshal([]byte(bands), &rule.Bands)
	}
	rule.Enabled = enabled != 0
	return &rule, nil
}

// SaveTemplate upserts a benchmark template. Templates are global, not
// tenant-scoped: they describe industries, not customers.
func (r *SQLRepository) SaveTemplate(ctx context.Context, tpl *domain.BenchmarkTemplate) error {
	if tpl.Industry == "" {
		return fmt.Errorf("%w: industry is required", ErrInvalidInput)
	}

	defaults, _ := json.Marshal(tpl.Defaults)
	bands, _ := json.Marshal(tpl.Bands)
	now := time.Now().UTC()

	del := `DELETE FROM benchmark_templates WHERE industry = ?`
	if _, err := r.db.ExecContext(ctx, r.rebind(del), tpl.Industry); err != nil {
		return err
	}

	query := `
		INSERT INTO benchmark_templates (industry, name, defaults, bands, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tpl.Industry, tpl.Name, string(defaults), string(bands), now, now,
	)
	return err
}

// GetTemplate retrieves a benchmark template by industry.
func (r *SQLRepository) GetTemplate(ctx context.Context, industry string) (*domain.BenchmarkTemplate, error) {
	query := `
		SELECT industry, name, defaults, bands
		FROM benchmark_templates
		WHERE industry = ?
	`

	var tpl domain.BenchmarkTemplate
	var defaults, bands string

	err := r.db.QueryRowContext(ctx, r.rebind(query), industry).Scan(
		&tpl.Industry, &tpl.Name, &defaults, &bands,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(defaults), &tpl.Defaults)
	json.Unmarshal([]byte(bands), &tpl.Bands)
	return &tpl, nil
}

// ListTemplates retrieves all benchmark templates.
func (r *SQLRepository) ListTemplates(ctx context.Context) ([]*domain.BenchmarkTemplate, error) {
	query := `
		SELECT industry, name, defaults, bands
		FROM benchmark_templates
		ORDER BY industry
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.BenchmarkTemplate
	for rows.Next() {
		var tpl domain.BenchmarkTemplate
		var defaults, bands string
		if err := rows.Scan(&tpl.Industry, &tpl.Name, &defaults, &bands); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(defaults), &tpl.Defaults)
		json.Unmarshal([]byte(bands), &tpl.Bands)
		out = append(out, &tpl)
	}
	return out, rows.Err()
}

// SaveHealthProfile upserts a health profile with tenant isolation.
func (r *SQLRepository) SaveHealthProfile(ctx context.Context, tenantID string, profile *domain.HealthProfile) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	weights, _ := json.Marshal(profile.Weights)
	now := time.Now().UTC()

	del := `DELETE FROM health_profiles WHERE tenant_id = ? AND id = ?`
	if _, err := r.db.ExecContext(ctx, r.rebind(del), tenantID, profile.ID); err != nil {
		return err
	}

	query := `
		INSERT INTO health_profiles (id, tenant_id, name, weights, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		profile.ID, tenantID, profile.Name, string(weights), boolToInt(profile.Enabled), now, now,
	)
	return err
}

// GetHealthProfile retrieves a health profile with tenant isolation.
func (r *SQLRepository) GetHealthProfile(ctx context.Context, tenantID string, profileID string) (*domain.HealthProfile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, weights, enabled
		FROM health_profiles
		WHERE tenant_id = ? AND id = ?
	`

	var profile domain.HealthProfile
	var weights string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, profileID).Scan(
		&profile.ID, &profile.TenantID, &profile.Name, &weights, &enabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(weights), &profile.Weights)
	profile.Enabled = enabled != 0
	return &profile, nil
}

// Ping checks database health.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
