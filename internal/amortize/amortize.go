// Package amortize implements loan payment and amortization schedule
// calculations plus the affordability check.
package amortize

import (
	"math"

	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/numeric"
	"github.com/openplan-finance/compass/internal/validate"
)

// Engine computes loan schedules. Stateless.
type Engine struct{}

// NewEngine creates an amortization engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Calculate validates the loan and builds the full result: payment,
// schedule, totals, effective rate approximation, and (when monthly
// revenue/expenses are supplied) the affordability check.
func (e *Engine) Calculate(in domain.LoanInput) (domain.LoanResult, error) {
	if err := validate.Loan(in); err != nil {
		return domain.LoanResult{}, err
	}

	payment := MonthlyPayment(in.Principal, in.AnnualRate, in.TermMonths)
	schedule, totalInterest := buildSchedule(in.Principal, in.AnnualRate, in.TermMonths, payment)

	totalPayment := payment * float64(in.TermMonths)

	res := domain.LoanResult{
		MonthlyPayment:      numeric.Round2(payment),
		TotalPayment:        numeric.Round2(totalPayment),
		TotalInterest:       numeric.Round2(totalInterest),
		EffectiveAnnualRate: numeric.Round2(effectiveAnnualRate(in, totalInterest)),
		Schedule:            schedule,
	}

	if in.MonthlyRevenue > 0 && in.MonthlyExpenses > 0 {
		res.Affordability = affordability(payment, in.MonthlyRevenue, in.MonthlyExpenses)
	}

	return res, nil
}

// MonthlyPayment applies the standard annuity formula. A zero rate
// falls back to straight-line to avoid the 0/0 in the formula.
func MonthlyPayment(principal, annualRate float64, termMonths int) float64 {
	monthlyRate := annualRate / 100 / 12
	if monthlyRate == 0 {
		return principal / float64(termMonths)
	}

	power := math.Pow(1+monthlyRate, float64(termMonths))
	return principal * monthlyRate * power / (power - 1)
}

// buildSchedule runs the month-by-month recurrence. The final balance
// is clamped to zero to absorb floating-point drift; the sum of
// principal paid equals the principal within a cent.
func buildSchedule(principal, annualRate float64, termMonths int, payment float64) ([]domain.AmortizationEntry, float64) {
	monthlyRate := annualRate / 100 / 12

	schedule := make([]domain.AmortizationEntry, 0, termMonths)
	balance := principal
	totalInterest := 0.0

	for month := 1; month <= termMonths; month++ {
		interest := balance * monthlyRate
		principalPaid := payment - interest
		balance -= principalPaid

		if month == termMonths || numeric.IsZero(balance) {
			// Absorb rounding drift into the last principal slice.
			principalPaid += balance
			balance = 0
		}

		totalInterest += interest
		schedule = append(schedule, domain.AmortizationEntry{
			Month:     month,
			Payment:   numeric.Round2(payment),
			Principal: numeric.Round2(principalPaid),
			Interest:  numeric.Round2(interest),
			Balance:   numeric.Round2(balance),
		})

		if balance == 0 {
			break
		}
	}

	return schedule, totalInterest
}

// effectiveAnnualRate is the simplified average-balance approximation:
// totalInterest / (netProceeds/2) / years, in percent. Documented as an
// approximation, not an exact closed-form APR.
func effectiveAnnualRate(in domain.LoanInput, totalInterest float64) float64 {
	fees := in.Principal * in.OriginationFeePercent / 100
	netProceeds := in.Principal - fees
	averageBalance := netProceeds / 2
	years := float64(in.TermMonths) / 12

	return numeric.SafeDiv(totalInterest, averageBalance*years, 0) * 100
}

// affordability computes the debt service ratio against net monthly
// cash flow. Returns nil when net cash flow is non-positive: the ratio
// is undefined there, and "unknown" must not read as "not affordable".
func affordability(payment, monthlyRevenue, monthlyExpenses float64) *domain.Affordability {
	net := monthlyRevenue - monthlyExpenses
	if net <= 0 {
		return nil
	}

	ratio := payment / net * 100
	return &domain.Affordability{
		DebtServiceRatio: numeric.Round2(ratio),
		Affordable:       ratio <= domain.MaxDebtServiceRatio,
	}
}
