// Package sensitivity implements the multi-variable perturbation sweep
// and tornado ranking on top of the standard metrics engine.
package sensitivity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/metrics"
	"github.com/openplan-finance/compass/internal/validate"
)

// Engine sweeps scenario variables through percentage variations,
// recomputing the metrics engine for each cell. Cells are independent
// and run in parallel bounded by a semaphore.
type Engine struct {
	metrics    *metrics.Engine
	maxWorkers int
}

// NewEngine creates a sensitivity engine. maxWorkers bounds sweep
// parallelism; values <= 0 fall back to 8.
func NewEngine(m *metrics.Engine, maxWorkers int) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &Engine{metrics: m, maxWorkers: maxWorkers}
}

// Sweep perturbs each variable by each variation percent, one at a
// time, and records the resulting NPV and ROI. Nil variables or
// variations select the defaults. The variation=0 cell reproduces the
// unperturbed base metrics exactly because it runs through the same
// engine with an unmodified input.
func (e *Engine) Sweep(base domain.ScenarioInput, variables []string, variations []float64) (domain.SensitivityResult, error) {
	if err := validate.Scenario(base); err != nil {
		return domain.SensitivityResult{}, err
	}
	if len(variables) == 0 {
		variables = domain.DefaultSensitivityVariables()
	}
	if len(variations) == 0 {
		variations = domain.DefaultVariations()
	}
	for _, v := range variables {
		if !knownVariable(v) {
			return domain.SensitivityResult{}, fmt.Errorf("%w: unknown sensitivity variable %q", validate.ErrInvalidInput, v)
		}
	}

	baseMetrics, err := e.metrics.Calculate(base)
	if err != nil {
		return domain.SensitivityResult{}, err
	}

	points := make([]domain.SensitivityPoint, len(variables)*len(variations))
	errs := make([]error, len(points))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for vi, variable := range variables {
		for pi, variation := range variations {
			idx := vi*len(variations) + pi
			wg.Add(1)
			go func(idx int, variable string, variation float64) {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				perturbed := perturb(base, variable, variation)
				m, err := e.metrics.Calculate(perturbed)
				if err != nil {
					errs[idx] = err
					return
				}
				points[idx] = domain.SensitivityPoint{
					Variable:         variable,
					VariationPercent: variation,
					NPV:              m.NPV,
					ROI:              m.ROI,
				}
			}(idx, variable, variation)
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return domain.SensitivityResult{}, err
		}
	}

	tornado := buildTornado(points, variables, variations, baseMetrics.NPV)

	return domain.SensitivityResult{
		BaseMetrics: baseMetrics,
		Points:      points,
		Tornado:     tornado,
	}, nil
}

// buildTornado picks the largest-magnitude negative and positive
// variations as the representative extremes for each variable and
// ranks variables descending by NPV impact range.
func buildTornado(points []domain.SensitivityPoint, variables []string, variations []float64, baseNPV float64) []domain.TornadoEntry {
	negVar, posVar, ok := extremeVariations(variations)
	if !ok {
		return nil
	}

	npvAt := make(map[string]map[float64]float64, len(variables))
	for _, p := range points {
		if npvAt[p.Variable] == nil {
			npvAt[p.Variable] = make(map[float64]float64, len(variations))
		}
		npvAt[p.Variable][p.VariationPercent] = p.NPV
	}

	entries := make([]domain.TornadoEntry, 0, len(variables))
	for _, variable := range variables {
		neg := npvAt[variable][negVar] - baseNPV
		pos := npvAt[variable][posVar] - baseNPV
		r := pos - neg
		if r < 0 {
			r = -r
		}
		entries = append(entries, domain.TornadoEntry{
			Variable:       variable,
			NegativeImpact: neg,
			PositiveImpact: pos,
			Range:          r,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Range > entries[j].Range
	})
	return entries
}

// extremeVariations returns the most negative and most positive
// variations present in the grid. Both sides must exist for a tornado
// to be meaningful.
func extremeVariations(variations []float64) (neg, pos float64, ok bool) {
	for _, v := range variations {
		if v < neg {
			neg = v
		}
		if v > pos {
			pos = v
		}
	}
	return neg, pos, neg < 0 && pos > 0
}

// perturb clones the base input and scales exactly one field by
// (1 + variation/100).
func perturb(base domain.ScenarioInput, variable string, variationPercent float64) domain.ScenarioInput {
	factor := 1 + variationPercent/100
	out := base
	switch variable {
	case domain.VarInitialInvestment:
		out.InitialInvestment *= factor
	case domain.VarYearlyRevenue:
		out.YearlyRevenue *= factor
	case domain.VarOperatingCosts:
		out.OperatingCosts *= factor
	case domain.VarMaintenanceCosts:
		out.MaintenanceCosts *= factor
	}
	return out
}

func knownVariable(v string) bool {
	switch v {
	case domain.VarInitialInvestment, domain.VarYearlyRevenue,
		domain.VarOperatingCosts, domain.VarMaintenanceCosts:
		return true
	}
	return false
}
