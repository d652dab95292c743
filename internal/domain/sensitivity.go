package domain

// Variable names accepted by the sensitivity sweep. Each maps to one
// field of ScenarioInput that is scaled by (1 + variation/100).
const (
	VarInitialInvestment = "initialInvestment"
	VarYearlyRevenue     = "yearlyRevenue"
	VarOperatingCosts    = "operatingCosts"
	VarMaintenanceCosts  = "maintenanceCosts"
)

// DefaultSensitivityVariables is the standard sweep set.
func DefaultSensitivityVariables() []string {
	return []string{
		VarInitialInvestment,
		VarYearlyRevenue,
		VarOperatingCosts,
		VarMaintenanceCosts,
	}
}

// DefaultVariations is the standard perturbation grid in percent.
func DefaultVariations() []float64 {
	return []float64{-30, -20, -10, 0, 10, 20, 30}
}

// SensitivityPoint is one cell of the sweep matrix.
type SensitivityPoint struct {
	Variable         string  `json:"variable"`
	VariationPercent float64 `json:"variationPercent"`
	NPV              float64 `json:"npv"`
	ROI              float64 `json:"roi"`
}

// TornadoEntry ranks one variable by its NPV impact across the extreme
// variations. Range is |PositiveImpact - NegativeImpact|.
type TornadoEntry struct {
	Variable       string  `json:"variable"`
	NegativeImpact float64 `json:"negativeImpact"`
	PositiveImpact float64 `json:"positiveImpact"`
	Range          float64 `json:"range"`
}

// SensitivityResult is the full sweep output. Points are grouped by
// variable in sweep order; Tornado is sorted descending by Range.
type SensitivityResult struct {
	BaseMetrics Metrics            `json:"baseMetrics"`
	Points      []SensitivityPoint `json:"points"`
	Tornado     []TornadoEntry     `json:"tornado"`
}
