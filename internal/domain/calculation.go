package domain

import (
	"encoding/json"
	"time"
)

// CalculationKind identifies which engine produced a stored result.
type CalculationKind string

const (
	KindMetrics     CalculationKind = "metrics"
	KindScenarios   CalculationKind = "scenarios"
	KindLoan        CalculationKind = "loan"
	KindForecast    CalculationKind = "forecast"
	KindBreakEven   CalculationKind = "breakeven"
	KindComposite   CalculationKind = "composite"
	KindSensitivity CalculationKind = "sensitivity"
	KindAssessment  CalculationKind = "assessment"
)

/// Calculation is a persisted engine run: the input that produced a
// result is stored alongside the result itself.
type Calculation struct {
	ID       string          `json:"id"`
	TenantID string          `json:"tenantId"`
	Kind     CalculationKind `json:"kind"`

	Input  json.RawMessage `json:"input"`
	Result json.RawMessage `json:"result"`

	CreatedAt time.Time           `json:"createdAt"`
	Metadata  CalculationMetadata `json:"metadata"`
}

// EngineVersion tags persisted calculations and assessments.
const EngineVersion = "compass-1.0"

// CalculationMetadata records how a result was produced.
type CalculationMetadata struct {
	TraceID       string `json:"traceId"`
	ComputeMs     int64  `json:"computeMs"`
	Offloaded     bool   `json:"offloaded"`
	CacheHit      bool   `json:"cacheHit,omitempty"`
	EngineVersion string `json:"engineVersion"`
}

// Assessment is the aggregated health view of a scenario: standard
// metrics classified against benchmarks, policy rule verdicts, and the
// weighted health score.
type Assessment struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	Metrics       Metrics        `json:"metrics"`
	Comparisons   []Comparison   `json:"comparisons,omitempty"`
	MetricScores  []MetricScore  `json:"metricScores,omitempty"`
	PolicyResults []PolicyResult `json:"policyResults,omitempty"`

	// HealthScore is the weighted 0-100 aggregate; Rating is its tier.
	HealthScore float64  `json:"healthScore"`
	Rating      string   `json:"rating"`
	Reasons     []string `json:"reasons,omitempty"`

	Timestamp time.Time           `json:"timestamp"`
	Metadata  CalculationMetadata `json:"metadata"`
}

// Health rating tiers keyed on the weighted score.
const (
	RatingStrong = "strong"
	RatingSolid  = "solid"
	RatingWatch  = "watch"
	RatingAtRisk = "atRisk"
)
