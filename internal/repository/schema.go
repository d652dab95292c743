package repository

// Schema definitions for the Compass database.
// Compatible with both SQLite and PostgreSQL.

const schemaCalculations = `
CREATE TABLE IF NOT EXISTS calculations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    input TEXT NOT NULL,
    result TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculations_tenant ON calculations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_calculations_kind ON calculations(tenant_id, kind);
CREATE INDEX IF NOT EXISTS idx_calculations_created ON calculations(tenant_id, created_at);
`

const schemaPolicyRules = `
CREATE TABLE IF NOT EXISTS policy_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_policy_rules_tenant ON policy_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_policy_rules_enabled ON policy_rules(tenant_id, enabled);
`

const schemaBenchmarkTemplates = `
CREATE TABLE IF NOT EXISTS benchmark_templates (
    industry TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    defaults TEXT NOT NULL,
    bands TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaHealthProfiles = `
CREATE TABLE IF NOT EXISTS health_profiles (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    weights TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_health_profiles_tenant ON health_profiles(tenant_id);
`

// AllSchemas returns every schema statement in creation order.
func AllSchemas() []string {
	return []string{
		schemaCalculations,
		schemaPolicyRules,
		schemaBenchmarkTemplates,
		schemaHealthProfiles,
	}
}
