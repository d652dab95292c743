// Package composite implements the proprietary ratio indices:
// operational friction (OFI), tech-debt financial drag (TFDI), and
// strategic efficiency (SER). Each index validates its own inputs and
// is computed independently.
package composite

import (
	"math"

	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/numeric"
	"github.com/openplan-finance/compass/internal/validate"
)

// Benchmark bands per index. OFI and TFDI are lower-is-better ratios;
// SER is higher-is-better.
const (
	ofiOptimal    = 0.03
	ofiAcceptable = 0.08

	tfdiOptimal    = 0.15
	tfdiAcceptable = 0.30

	serOptimal    = 2.0
	serAcceptable = 1.0

	weeksPerYear  = 52
	monthsPerYear = 12
	serBurnBonus  = 1.5
	serDenomFloor = 0.01
)

// Engine computes composite indices. Stateless.
type Engine struct{}

// NewEngine creates a composite index engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Calculate computes whichever index blocks are present. At least one
// block is required; each block is validated independently.
func (e *Engine) Calculate(in domain.CompositeInputs) (domain.CompositeResult, error) {
	var res domain.CompositeResult

	if in.Friction != nil {
		v, err := e.Friction(*in.Friction)
		if err != nil {
			return domain.CompositeResult{}, err
		}
		res.Friction = &v
	}
	if in.TechDebt != nil {
		v, err := e.TechDebt(*in.TechDebt)
		if err != nil {
			return domain.CompositeResult{}, err
		}
		res.TechDebt = &v
	}
	if in.Efficiency != nil {
		v, err := e.Efficiency(*in.Efficiency)
		if err != nil {
			return domain.CompositeResult{}, err
		}
		res.Efficiency = &v
	}

	if res.Friction == nil && res.TechDebt == nil && res.Efficiency == nil {
		return domain.CompositeResult{}, errNoIndexRequested
	}
	return res, nil
}

// Friction computes OFI: annualized manual-work cost over revenue.
// Lower is better.
func (e *Engine) Friction(in domain.FrictionInputs) (domain.IndexValue, error) {
	if err := validate.Friction(in); err != nil {
		return domain.IndexValue{}, err
	}

	annualManualCost := in.ManualHoursPerWeek * in.HourlyCost * weeksPerYear
	ofi := annualManualCost / in.CurrentRevenue

	return domain.IndexValue{
		Value:  numeric.Round4(ofi),
		Rating: rateLowerBetter(ofi, ofiOptimal, ofiAcceptable),
	}, nil
}

// TechDebt computes TFDI: the share of dev capacity consumed by
// maintenance plus annualized incident cost, normalized by team cost.
// Lower is better.
func (e *Engine) TechDebt(in domain.TechDebtInputs) (domain.IndexValue, error) {
	if err := validate.TechDebt(in); err != nil {
		return domain.IndexValue{}, err
	}

	maintenanceShare := in.MaintenanceHoursPerSprint / in.TotalDevHoursPerSprint
	drag := maintenanceShare*in.TeamAnnualCost + in.IncidentCostPerMonth*monthsPerYear
	tfdi := drag / in.TeamAnnualCost

	return domain.IndexValue{
		Value:  numeric.Round4(tfdi),
		Rating: rateLowerBetter(tfdi, tfdiOptimal, tfdiAcceptable),
	}, nil
}

// Efficiency computes SER: revenue growth rate over the absolute
// burn-rate change rate. A shrinking burn rate earns a 1.5x bonus.
// Higher is better. The denominator is floored to stay defined when
// burn is flat.
func (e *Engine) Efficiency(in domain.EfficiencyInputs) (domain.IndexValue, error) {
	if err := validate.Efficiency(in); err != nil {
		return domain.IndexValue{}, err
	}

	revenueGrowth := (in.CurrentRevenue - in.PreviousRevenue) / in.PreviousRevenue * 100
	burnChange := (in.CurrentBurnRate - in.PreviousBurnRate) / in.PreviousBurnRate * 100

	denom := math.Abs(burnChange)
	if denom < serDenomFloor {
		denom = serDenomFloor
	}

	ser := revenueGrowth / denom
	if burnChange < 0 {
		ser *= serBurnBonus
	}

	return domain.IndexValue{
		Value:  numeric.Round4(ser),
		Rating: rateHigherBetter(ser, serOptimal, serAcceptable),
	}, nil
}

func rateLowerBetter(v, optimal, acceptable float64) string {
	switch {
	case v < optimal:
		return domain.RatingOptimal
	case v < acceptable:
		return domain.RatingAcceptable
	default:
		return domain.RatingCritical
	}
}

func rateHigherBetter(v, optimal, acceptable float64) string {
	switch {
	case v > optimal:
		return domain.RatingOptimal
	case v > acceptable:
		return domain.RatingAcceptable
	default:
		return domain.RatingCritical
	}
}
