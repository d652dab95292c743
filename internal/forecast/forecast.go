// Package forecast implements the multi-month cash-flow projection
// with growth, seasonality, one-time events, and deficit detection.
package forecast

import (
	"math"

	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/numeric"
	"github.com/openplan-finance/compass/internal/validate"
)

// Reserve heuristic multipliers: months of negative average flow to
// cover, or months of expenses to keep on hand.
const (
	reserveBurnMonths    = 3.0
	reserveExpenseMonths = 2.0
)

// Engine projects cash flow. Stateless.
type Engine struct{}

// NewEngine creates a forecast engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Calculate validates the request and runs the month-by-month
// projection with its summary.
func (e *Engine) Calculate(in domain.ForecastInput) (domain.ForecastResult, error) {
	if err := validate.Forecast(in); err != nil {
		return domain.ForecastResult{}, err
	}

	horizon := in.ForecastMonths
	if horizon == 0 {
		horizon = domain.DefaultForecastMonths
	}

	growth := in.GrowthRate / 100
	expenseGrowth := in.ExpenseGrowthRate / 100

	months := make([]domain.ForecastMonth, 0, horizon)
	var deficitMonths []int

	balance := in.StartingCash
	lowest := in.StartingCash
	lowestMonth := 0
	totalNet := 0.0
	runway := horizon

	for t := 1; t <= horizon; t++ {
		seasonal := 1.0
		if len(in.SeasonalFactors) == 12 {
			seasonal = in.SeasonalFactors[(t-1)%12]
		}

		revenue := in.MonthlyRevenue * math.Pow(1+growth, float64(t-1)) * seasonal
		revenue += in.ExpectedReceivables[t]

		expenses := in.MonthlyExpenses * math.Pow(1+expenseGrowth, float64(t-1))
		expenses += in.OneTimeExpenses[t]

		net := revenue - expenses
		balance += net
		totalNet += net

		deficit := balance < 0
		if deficit {
			deficitMonths = append(deficitMonths, t)
			if runway == horizon {
				runway = t - 1
			}
		}
		if balance < lowest || lowestMonth == 0 {
			lowest = balance
			lowestMonth = t
		}

		months = append(months, domain.ForecastMonth{
			Month:       t,
			Revenue:     numeric.Round2(revenue),
			Expenses:    numeric.Round2(expenses),
			NetCashFlow: numeric.Round2(net),
			EndingCash:  numeric.Round2(balance),
			IsDeficit:   deficit,
		})
	}

	avgNet := totalNet / float64(horizon)
	reserve := reserveExpenseMonths * in.MonthlyExpenses
	if avgNet < 0 {
		reserve = reserveBurnMonths * math.Abs(avgNet)
	}

	return domain.ForecastResult{
		Months:             months,
		LowestBalance:      numeric.Round2(lowest),
		LowestBalanceMonth: lowestMonth,
		DeficitMonths:      deficitMonths,
		AverageNetFlow:     numeric.Round2(avgNet),
		MinimumReserve:     numeric.Round2(reserve),
		RunwayMonths:       runway,
		IsHealthy:          len(deficitMonths) == 0 && lowest >= reserve,
	}, nil
}
