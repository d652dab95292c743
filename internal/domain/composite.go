package domain

// FrictionInputs feed the Operational Friction Index (OFI): the annual
// cost of manual work relative to revenue.
type FrictionInputs struct {
	ManualHoursPerWeek float64 `json:"manualHoursPerWeek"`
	HourlyCost         float64 `json:"hourlyCost"`
	CurrentRevenue     float64 `json:"currentRevenue"`
}

// TechDebtInputs feed the Tech-Debt Financial Drag Index (TFDI).
// MaintenanceHoursPerSprint must not exceed TotalDevHoursPerSprint.
type TechDebtInputs struct {
	MaintenanceHoursPerSprint float64 `json:"maintenanceHoursPerSprint"`
	TotalDevHoursPerSprint    float64 `json:"totalDevHoursPerSprint"`
	TeamAnnualCost            float64 `json:"teamAnnualCost"`
	IncidentCostPerMonth      float64 `json:"incidentCostPerMonth"`
}

// EfficiencyInputs feed the Strategic Efficiency Ratio (SER):
// period-over-period revenue growth against burn-rate change.
type EfficiencyInputs struct {
	CurrentRevenue   float64 `json:"currentRevenue"`
	PreviousRevenue  float64 `json:"previousRevenue"`
	CurrentBurnRate  float64 `json:"currentBurnRate"`
	PreviousBurnRate float64 `json:"previousBurnRate"`
}

// CompositeInputs carries the per-index input blocks. Each index is
// computed independently from its own block; nil blocks are skipped.
type CompositeInputs struct {
	Friction   *FrictionInputs   `json:"friction,omitempty"`
	TechDebt   *TechDebtInputs   `json:"techDebt,omitempty"`
	Efficiency *EfficiencyInputs `json:"efficiency,omitempty"`
}

// Index ratings.
const (
	RatingOptimal    = "optimal"
	RatingAcceptable = "acceptable"
	RatingCritical   = "critical"
)

// IndexValue is one computed composite index, rounded to 4 decimals at
// the result boundary.
type IndexValue struct {
	Value  float64 `json:"value"`
	Rating string  `json:"rating"`
}

// CompositeResult holds whichever indices were requested.
type CompositeResult struct {
	Friction   *IndexValue `json:"friction,omitempty"`
	TechDebt   *IndexValue `json:"techDebt,omitempty"`
	Efficiency *IndexValue `json:"efficiency,omitempty"`
}
