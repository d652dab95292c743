// Package domain defines the core types and interfaces for Compass.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Calculation results, stored alongside the input that produced them.
	SaveCalculation(ctx context.Context, tenantID string, calc *Calculation) error
	GetCalculation(ctx context.Context, tenantID string, calcID string) (*Calculation, error)
	ListCalculations(ctx context.Context, tenantID string, kind CalculationKind, since time.Time) ([]*Calculation, error)

	// Policy rule operations.
	SavePolicyRule(ctx context.Context, tenantID string, rule *PolicyRule) error
	GetPolicyRule(ctx context.Context, tenantID string, ruleID string) (*PolicyRule, error)
	ListPolicyRules(ctx context.Context, tenantID string) ([]*PolicyRule, error)

	// Benchmark templates: industry presets with percentile bands.
	// Read-mostly; the engine never mutates a loaded template.
	SaveTemplate(ctx context.Context, tpl *BenchmarkTemplate) error
	GetTemplate(ctx context.Context, industry string) (*BenchmarkTemplate, error)
	ListTemplates(ctx context.Context) ([]*BenchmarkTemplate, error)

	// Health profiles for the weighted score aggregation.
	SaveHealthProfile(ctx context.Context, tenantID string, profile *HealthProfile) error
	GetHealthProfile(ctx context.Context, tenantID string, profileID string) (*HealthProfile, error)

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
