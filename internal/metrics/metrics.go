// Package metrics implements the standard investment metrics engine:
// monthly cash-flow projection, NPV, ROI, IRR, and payback period from
// a single scenario input.
package metrics

import (
	"math"

	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/numeric"
	"github.com/openplan-finance/compass/internal/validate"
)

// IRR solver parameters. The solver works on the monthly rate and
// annualizes at the end.
const (
	irrInitialGuess  = 0.10 / 12
	irrNPVTolerance  = 1e-4
	irrMaxIterations = 100
	irrDerivFloor    = 1e-10
	irrRateMin       = -0.99
	irrRateMax       = 10.0
)

// Engine computes standard metrics. It is stateless; every call
// allocates fresh result slices.
type Engine struct{}

// NewEngine creates a standard metrics engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Calculate validates the scenario and computes the full metric set.
func (e *Engine) Calculate(in domain.ScenarioInput) (domain.Metrics, error) {
	if err := validate.Scenario(in); err != nil {
		return domain.Metrics{}, err
	}

	cashflows := e.monthlyCashFlows(in)

	monthlyRate := in.DiscountRate / 100 / 12
	npv := npvAt(cashflows, in.InitialInvestment, monthlyRate)
	roi := numeric.SafeDiv(npv, in.InitialInvestment, 0) * 100

	irr, converged := solveIRR(cashflows, in.InitialInvestment)
	payback := paybackMonths(cashflows, in.InitialInvestment)

	cumulative := make([]float64, len(cashflows))
	running := -in.InitialInvestment
	for t, cf := range cashflows {
		running += cf
		cumulative[t] = numeric.Round2(running)
	}
	monthly := make([]float64, len(cashflows))
	for t, cf := range cashflows {
		monthly[t] = numeric.Round2(cf)
	}

	return domain.Metrics{
		ROI:                numeric.Round2(roi),
		NPV:                numeric.Round2(npv),
		IRR:                numeric.Round2(irr),
		IRRConverged:       converged,
		PaybackMonths:      numeric.Round2(payback),
		MonthlyCashFlow:    monthly,
		CumulativeCashFlow: cumulative,
	}, nil
}

// CalculateScenarios computes the expected case plus best/worst cases
// derived from the revenue multiplier. The three cases are independent
// and run in parallel.
func (e *Engine) CalculateScenarios(in domain.ScenarioInput, bestMult, worstMult float64) (domain.ScenarioSet, error) {
	if err := validate.Scenario(in); err != nil {
		return domain.ScenarioSet{}, err
	}
	if bestMult <= 0 {
		bestMult = domain.DefaultBestMultiplier
	}
	if worstMult <= 0 {
		worstMult = domain.DefaultWorstMultiplier
	}

	base := in.EffectiveMultiplier()
	inputs := []domain.ScenarioInput{
		in.WithMultiplier(base),
		in.WithMultiplier(base * bestMult),
		in.WithMultiplier(base * worstMult),
	}

	results := make([]domain.Metrics, len(inputs))
	errs := make([]error, len(inputs))
	done := make(chan int, len(inputs))
	for i, scenario := range inputs {
		go func(idx int, s domain.ScenarioInput) {
			results[idx], errs[idx] = e.Calculate(s)
			done <- idx
		}(i, scenario)
	}
	for range inputs {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return domain.ScenarioSet{}, err
		}
	}

	return domain.ScenarioSet{
		Expected:        results[0],
		Best:            results[1],
		Worst:           results[2],
		BestMultiplier:  bestMult,
		WorstMultiplier: worstMult,
	}, nil
}

// BreakEven computes the whole-unit break-even point. Units round up
// first; revenue is derived from the rounded unit count.
func (e *Engine) BreakEven(in domain.BreakEvenInput) (domain.BreakEvenResult, error) {
	if err := validate.BreakEven(in); err != nil {
		return domain.BreakEvenResult{}, err
	}

	margin := in.PricePerUnit - in.VariableCostPerUnit
	units := int(math.Ceil(in.FixedCosts / margin))

	return domain.BreakEvenResult{
		Units:              units,
		Revenue:            numeric.Round2(float64(units) * in.PricePerUnit),
		ContributionMargin: numeric.Round2(margin),
	}, nil
}

// monthlyCashFlows builds the net cash-flow series. Revenue starts at
// yearlyRevenue/12 and compounds monthly at the annual growth rate /12;
// the scenario multiplier scales revenue only.
func (e *Engine) monthlyCashFlows(in domain.ScenarioInput) []float64 {
	mult := in.EffectiveMultiplier()
	monthlyGrowth := in.RevenueGrowth / 100 / 12
	monthlyCosts := (in.OperatingCosts + in.MaintenanceCosts) / 12

	revenue := in.YearlyRevenue / 12
	flows := make([]float64, in.ProjectDuration)
	for t := 0; t < in.ProjectDuration; t++ {
		flows[t] = revenue*mult - monthlyCosts
		revenue *= 1 + monthlyGrowth
	}
	return flows
}

// npvAt discounts the series at the given monthly rate. At rate 0 this
// reduces to the raw sum minus the investment, which is required, not
// incidental.
func npvAt(cashflows []float64, investment, monthlyRate float64) float64 {
	npv := -investment
	for t, cf := range cashflows {
		npv += cf / math.Pow(1+monthlyRate, float64(t+1))
	}
	return npv
}

// npvDerivative is the analytic dNPV/drate used by the Newton step.
func npvDerivative(cashflows []float64, monthlyRate float64) float64 {
	d := 0.0
	for t, cf := range cashflows {
		d -= float64(t+1) * cf / math.Pow(1+monthlyRate, float64(t+2))
	}
	return d
}

// solveIRR runs Newton-Raphson on the monthly rate and annualizes the
// result. On non-convergence it returns the best available estimate
// with converged=false instead of failing; a diverging rate resets to
// the initial guess before annualizing.
func solveIRR(cashflows []float64, investment float64) (annualized float64, converged bool) {
	rate := irrInitialGuess

	for i := 0; i < irrMaxIterations; i++ {
		npv := npvAt(cashflows, investment, rate)
		if math.Abs(npv) < irrNPVTolerance {
			converged = true
			break
		}

		deriv := npvDerivative(cashflows, rate)
		if math.Abs(deriv) < irrDerivFloor {
			break
		}

		rate -= npv / deriv
		if rate <= irrRateMin || rate >= irrRateMax {
			rate = irrInitialGuess
			break
		}
	}

	if !converged {
		// One more residual check: the loop may have exhausted its
		// budget having already landed on the root.
		if math.Abs(npvAt(cashflows, investment, rate)) < irrNPVTolerance {
			converged = true
		}
	}

	return (math.Pow(1+rate, 12) - 1) * 100, converged
}

// paybackMonths finds the first month where cumulative cash flow,
// starting at -investment, reaches zero. Linear interpolation gives a
// fractional month; the horizon length is the not-achieved sentinel.
func paybackMonths(cashflows []float64, investment float64) float64 {
	cumulative := -investment
	for t, cf := range cashflows {
		prev := cumulative
		cumulative += cf
		if cumulative >= 0 {
			if cf == 0 {
				return float64(t + 1)
			}
			return float64(t) + (0-prev)/cf
		}
	}
	return float64(len(cashflows))
}
