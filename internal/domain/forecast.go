package domain

// ForecastInput describes a multi-month cash-flow projection request.
type ForecastInput struct {
	StartingCash    float64 `json:"startingCash"`
	MonthlyRevenue  float64 `json:"monthlyRevenue"`
	MonthlyExpenses float64 `json:"monthlyExpenses"`

	// GrowthRate and ExpenseGrowthRate are monthly-compounded annual
	// percentages applied per month starting at month 2. Optional.
	GrowthRate        float64 `json:"growthRate,omitempty"`
	ExpenseGrowthRate float64 `json:"expenseGrowthRate,omitempty"`

	// SeasonalFactors multiplies revenue per calendar month, cycling
	// every 12 months. Empty means all 1.0; valid range 0.1-3.0.
	SeasonalFactors []float64 `json:"seasonalFactors,omitempty"`

	// OneTimeExpenses and ExpectedReceivables are keyed by 1-based
	// forecast month. Receivables add to that month's revenue.
	OneTimeExpenses     map[int]float64 `json:"oneTimeExpenses,omitempty"`
	ExpectedReceivables map[int]float64 `json:"expectedReceivables,omitempty"`

	// ForecastMonths defaults to 12 when zero.
	ForecastMonths int `json:"forecastMonths,omitempty"`
}

// Bounds for seasonal factors.
const (
	SeasonalFactorMin = 0.1
	SeasonalFactorMax = 3.0
)

// DefaultForecastMonths is the projection horizon when unspecified.
const DefaultForecastMonths = 12

// ForecastMonth is one projected month.
type ForecastMonth struct {
	Month       int     `json:"month"` // 1-based
	Revenue     float64 `json:"revenue"`
	Expenses    float64 `json:"expenses"`
	NetCashFlow float64 `json:"netCashFlow"`
	EndingCash  float64 `json:"endingCash"`
	IsDeficit   bool    `json:"isDeficit"`
}

// ForecastResult is the projection plus its summary.
type ForecastResult struct {
	Months []ForecastMonth `json:"months"`

	LowestBalance      float64 `json:"lowestBalance"`
	LowestBalanceMonth int     `json:"lowestBalanceMonth"`
	DeficitMonths      []int   `json:"deficitMonths,omitempty"`
	AverageNetFlow     float64 `json:"averageNetFlow"`

	// MinimumReserve is the recommended cash buffer: 3x the absolute
	// average net flow when the average is negative, otherwise 2x
	// monthly expenses.
	MinimumReserve float64 `json:"minimumReserve"`

	// RunwayMonths counts full months before the balance first goes
	// negative. Equal to the horizon length when no deficit occurs.
	RunwayMonths int `json:"runwayMonths"`

	// IsHealthy means no deficit months and the lowest balance covers
	// the minimum reserve.
	IsHealthy bool `json:"isHealthy"`
}
