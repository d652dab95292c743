package domain

// ScenarioInput holds the assumptions for a single investment scenario.
// All monetary fields are annual amounts in the caller's currency.
// Inputs are treated as immutable for the duration of a calculation.
type ScenarioInput struct {
	// InitialInvestment is the upfront capital outlay.
	InitialInvestment float64 `json:"initialInvestment"`

	// DiscountRate is the annual discount rate in percent (0-100).
	DiscountRate float64 `json:"discountRate"`

	// ProjectDuration is the analysis horizon in months.
	ProjectDuration int `json:"projectDuration"`

	// YearlyRevenue is the first-year revenue before growth.
	YearlyRevenue float64 `json:"yearlyRevenue"`

	// RevenueGrowth is the annual revenue growth rate in percent.
	RevenueGrowth float64 `json:"revenueGrowth"`

	// OperatingCosts and MaintenanceCosts are annual cost totals.
	OperatingCosts   float64 `json:"operatingCosts"`
	MaintenanceCosts float64 `json:"maintenanceCosts"`

	// Multiplier scales revenue only, used to derive best/worst cases.
	// Zero means "not set" and is normalized to 1.0.
	Multiplier float64 `json:"multiplier,omitempty"`
}

// WithMultiplier returns a copy of the input with the revenue multiplier set.
func (s ScenarioInput) WithMultiplier(m float64) ScenarioInput {
	out := s
	out.Multiplier = m
	return out
}

// EffectiveMultiplier normalizes the zero value to the 1.0 default.
func (s ScenarioInput) EffectiveMultiplier() float64 {
	if s.Multiplier == 0 {
		return 1.0
	}
	return s.Multiplier
}

// Metrics is the output of the standard metrics engine for one scenario.
type Metrics struct {
	ROI float64 `json:"roi"`
	NPV float64 `json:"npv"`

	// IRR is the annualized internal rate of return in percent. When the
	// Newton iteration does not converge, the last rate estimate is
	// annualized and returned with IRRConverged=false; callers should
	// treat it as an estimate rather than a certified root.
	IRR          float64 `json:"irr"`
	IRRConverged bool    `json:"irrConverged"`

	// PaybackMonths is fractional via linear interpolation at the
	// crossing month. If cumulative cash flow never recovers the
	// investment within the horizon, this equals ProjectDuration.
	PaybackMonths float64 `json:"paybackMonths"`

	MonthlyCashFlow    []float64 `json:"monthlyCashFlow"`
	CumulativeCashFlow []float64 `json:"cumulativeCashFlow"`
}

// ScenarioSet bundles the expected case with derived best/worst cases.
type ScenarioSet struct {
	Expected Metrics `json:"expected"`
	Best     Metrics `json:"best"`
	Worst    Metrics `json:"worst"`

	BestMultiplier  float64 `json:"bestMultiplier"`
	WorstMultiplier float64 `json:"worstMultiplier"`
}

// Default multipliers for derived best/worst cases.
const (
	DefaultBestMultiplier  = 1.2
	DefaultWorstMultiplier = 0.8
)
