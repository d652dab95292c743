package sensitivity

import (
	"errors"
	"testing"

	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/metrics"
	"github.com/openplan-finance/compass/internal/validate"
)

func newTestEngine() *Engine {
	return NewEngine(metrics.NewEngine(), 4)
}

func baseScenario() domain.ScenarioInput {
	return domain.ScenarioInput{
		InitialInvestment: 50000,
		DiscountRate:      8,
		ProjectDuration:   24,
		YearlyRevenue:     120000,
		RevenueGrowth:     5,
		OperatingCosts:    60000,
		MaintenanceCosts:  12000,
	}
}

func TestSweep(t *testing.T) {
	engine := newTestEngine()

	t.Run("DefaultGrid", func(t *testing.T) {
		res, err := engine.Sweep(baseScenario(), nil, nil)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}

		// 4 default variables x 7 default variations.
		if len(res.Points) != 28 {
			t.Fatalf("points = %d, want 28", len(res.Points))
		}

		seen := make(map[string]int)
		for _, p := range res.Points {
			seen[p.Variable]++
		}
		for _, v := range domain.DefaultSensitivityVariables() {
			if seen[v] != 7 {
				t.Errorf("variable %s has %d points, want 7", v, seen[v])
			}
		}
	})

	t.Run("ZeroVariationReproducesBase", func(t *testing.T) {
		res, err := engine.Sweep(baseScenario(), nil, nil)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}

		for _, p := range res.Points {
			if p.VariationPercent != 0 {
				continue
			}
			if p.NPV != res.BaseMetrics.NPV {
				t.Errorf("%s at 0%%: NPV = %v, want base %v", p.Variable, p.NPV, res.BaseMetrics.NPV)
			}
			if p.ROI != res.BaseMetrics.ROI {
				t.Errorf("%s at 0%%: ROI = %v, want base %v", p.Variable, p.ROI, res.BaseMetrics.ROI)
			}
		}
	})

	t.Run("RevenueDominatesTornado", func(t *testing.T) {
		res, err := engine.Sweep(baseScenario(), nil, nil)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}

		if len(res.Tornado) != 4 {
			t.Fatalf("tornado entries = %d, want 4", len(res.Tornado))
		}
		for i := 1; i < len(res.Tornado); i++ {
			if res.Tornado[i].Range > res.Tornado[i-1].Range {
				t.Errorf("tornado not sorted descending at %d", i)
			}
		}
		// Revenue is the largest line item, so perturbing it moves NPV
		// the most.
		if res.Tornado[0].Variable != domain.VarYearlyRevenue {
			t.Errorf("top tornado variable = %s, want %s", res.Tornado[0].Variable, domain.VarYearlyRevenue)
		}
	})

	t.Run("TornadoImpactSigns", func(t *testing.T) {
		res, err := engine.Sweep(baseScenario(), []string{domain.VarYearlyRevenue}, nil)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if len(res.Tornado) != 1 {
			t.Fatalf("tornado entries = %d, want 1", len(res.Tornado))
		}

		entry := res.Tornado[0]
		if entry.NegativeImpact >= 0 {
			t.Errorf("NegativeImpact = %v, want negative for a revenue cut", entry.NegativeImpact)
		}
		if entry.PositiveImpact <= 0 {
			t.Errorf("PositiveImpact = %v, want positive for a revenue boost", entry.PositiveImpact)
		}
		if entry.Range <= 0 {
			t.Errorf("Range = %v, want positive", entry.Range)
		}
	})

	t.Run("SingleSidedVariationsSkipTornado", func(t *testing.T) {
		res, err := engine.Sweep(baseScenario(), nil, []float64{0, 10, 20})
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if len(res.Points) != 12 {
			t.Errorf("points = %d, want 12", len(res.Points))
		}
		if res.Tornado != nil {
			t.Errorf("tornado = %v, want nil without both extremes", res.Tornado)
		}
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		_, err := engine.Sweep(baseScenario(), []string{"discountRate"}, nil)
		if !errors.Is(err, validate.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("InvalidBase", func(t *testing.T) {
		in := baseScenario()
		in.InitialInvestment = 0

		_, err := engine.Sweep(in, nil, nil)
		if !errors.Is(err, validate.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("PerturbedCellCannotGoInvalid", func(t *testing.T) {
		// A -30% investment perturbation keeps every field positive, so
		// the whole grid computes.
		in := baseScenario()
		in.InitialInvestment = 100

		res, err := engine.Sweep(in, nil, nil)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if len(res.Points) != 28 {
			t.Errorf("points = %d, want 28", len(res.Points))
		}
	})
}

func TestNewEngineWorkerFloor(t *testing.T) {
	e := NewEngine(metrics.NewEngine(), 0)
	if e.maxWorkers != 8 {
		t.Errorf("maxWorkers = %d, want fallback 8", e.maxWorkers)
	}
}
