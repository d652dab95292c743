package domain

// LoanInput describes a loan to amortize.
type LoanInput struct {
	Principal  float64 `json:"principal"`
	AnnualRate float64 `json:"annualRate"` // percent
	TermMonths int     `json:"termMonths"`

	// OriginationFeePercent reduces net proceeds for the effective
	// annual rate approximation. Optional.
	OriginationFeePercent float64 `json:"originationFeePercent,omitempty"`

	// MonthlyRevenue and MonthlyExpenses enable the affordability
	// check when both are supplied. Optional.
	MonthlyRevenue  float64 `json:"monthlyRevenue,omitempty"`
	MonthlyExpenses float64 `json:"monthlyExpenses,omitempty"`
}

// AmortizationEntry is one month of a loan schedule. Balance is the
// remaining principal after the payment is applied.
type AmortizationEntry struct {
	Month     int     `json:"month"` // 1-based
	Payment   float64 `json:"payment"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Balance   float64 `json:"balance"`
}

// Affordability reports the debt service ratio when monthly revenue and
// expenses were supplied. A nil *Affordability means "unknown", not
// "not affordable".
type Affordability struct {
	// DebtServiceRatio is the payment as a percent of net monthly
	// cash flow (revenue - expenses).
	DebtServiceRatio float64 `json:"debtServiceRatio"`
	Affordable       bool    `json:"affordable"`
}

// MaxDebtServiceRatio is the affordability cutoff in percent.
const MaxDebtServiceRatio = 40.0

// LoanResult is the output of the amortization engine.
type LoanResult struct {
	MonthlyPayment float64 `json:"monthlyPayment"`
	TotalPayment   float64 `json:"totalPayment"`
	TotalInterest  float64 `json:"totalInterest"`

	// EffectiveAnnualRate is a simplified average-balance
	// approximation, not an exact closed-form APR.
	EffectiveAnnualRate float64 `json:"effectiveAnnualRate"`

	Schedule      []AmortizationEntry `json:"amortizationSchedule"`
	Affordability *Affordability      `json:"affordability,omitempty"`
}
