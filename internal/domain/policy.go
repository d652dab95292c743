package domain

// PolicyRule is a tenant-configurable check evaluated against computed
// metrics with a CEL expression, e.g. "npv < 0.0 || payback_months > 48.0".
type PolicyRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression must return bool, int, or double.
	Expression string `json:"expression"`

	// Bands map the expression's numeric outcome to a verdict.
	Bands []PolicyBand `json:"bands"`

	// Weight of this rule in the health assessment.
	Weight float64 `json:"weight"`

	Enabled bool `json:"enabled"`
}

// PolicyBand maps a score range to a verdict. Lower bound inclusive,
// upper bound exclusive; a nil upper bound means unbounded.
type PolicyBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Verdict    string   `json:"verdict"`
	Reason     string   `json:"reason"`
}

// PolicyResult is the output of evaluating one rule.
type PolicyResult struct {
	RuleID    string  `json:"ruleId"`
	TenantID  string  `json:"tenantId"`
	Verdict   string  `json:"verdict"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
	Weight    float64 `json:"weight"`
	ProcessMs int64   `json:"processMs"`
}

// Policy verdicts.
const (
	VerdictPass  = "pass"
	VerdictWarn  = "warn"
	VerdictFlag  = "flag"
	VerdictError = "error"
)
