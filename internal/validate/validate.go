// Package validate implements fail-fast input validation for the
// calculation engines. Every check names the offending field; nothing
// is clamped or coerced.
package validate

import (
	"errors"
	"fmt"

	"github.com/openplan-finance/compass/internal/domain"
	"github.com/openplan-finance/compass/internal/numeric"
)

// ErrInvalidInput is the sentinel wrapped by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

// FieldError identifies the field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

func fieldErr(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// finite rejects NaN and infinities.
func finite(field string, v float64) error {
	if !numeric.IsFinite(v) {
		return fieldErr(field, "must be a finite number")
	}
	return nil
}

// positive requires v > 0 and finite.
func positive(field string, v float64) error {
	if err := finite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return fieldErr(field, "must be positive")
	}
	return nil
}

// nonNegative requires v >= 0 and finite.
func nonNegative(field string, v float64) error {
	if err := finite(field, v); err != nil {
		return err
	}
	if v < 0 {
		return fieldErr(field, "must not be negative")
	}
	return nil
}

// percentRange requires 0 <= v <= 100 and finite.
func percentRange(field string, v float64) error {
	if err := finite(field, v); err != nil {
		return err
	}
	if v < 0 || v > 100 {
		return fieldErr(field, "must be between 0 and 100")
	}
	return nil
}

// Scenario validates a standard metrics scenario.
func Scenario(in domain.ScenarioInput) error {
	if err := positive("initialInvestment", in.InitialInvestment); err != nil {
		return err
	}
	if err := percentRange("discountRate", in.DiscountRate); err != nil {
		return err
	}
	if in.ProjectDuration <= 0 {
		return fieldErr("projectDuration", "must be positive")
	}
	if err := positive("yearlyRevenue", in.YearlyRevenue); err != nil {
		return err
	}
	if err := finite("revenueGrowth", in.RevenueGrowth); err != nil {
		return err
	}
	if err := nonNegative("operatingCosts", in.OperatingCosts); err != nil {
		return err
	}
	if err := nonNegative("maintenanceCosts", in.MaintenanceCosts); err != nil {
		return err
	}
	if in.Multiplier != 0 {
		if err := positive("multiplier", in.Multiplier); err != nil {
			return err
		}
	}
	return nil
}

// Loan validates an amortization request.
func Loan(in domain.LoanInput) error {
	if err := positive("principal", in.Principal); err != nil {
		return err
	}
	if err := percentRange("annualRate", in.AnnualRate); err != nil {
		return err
	}
	if in.TermMonths <= 0 {
		return fieldErr("termMonths", "must be positive")
	}
	if err := percentRange("originationFeePercent", in.OriginationFeePercent); err != nil {
		return err
	}
	if err := nonNegative("monthlyRevenue", in.MonthlyRevenue); err != nil {
		return err
	}
	if err := nonNegative("monthlyExpenses", in.MonthlyExpenses); err != nil {
		return err
	}
	return nil
}

// Forecast validates a cash-flow projection request.
func Forecast(in domain.ForecastInput) error {
	if err := finite("startingCash", in.StartingCash); err != nil {
		return err
	}
	if err := positive("monthlyRevenue", in.MonthlyRevenue); err != nil {
		return err
	}
	if err := positive("monthlyExpenses", in.MonthlyExpenses); err != nil {
		return err
	}
	if err := finite("growthRate", in.GrowthRate); err != nil {
		return err
	}
	if err := finite("expenseGrowthRate", in.ExpenseGrowthRate); err != nil {
		return err
	}
	if n := len(in.SeasonalFactors); n != 0 && n != 12 {
		return fieldErr("seasonalFactors", "must have exactly 12 entries")
	}
	for i, f := range in.SeasonalFactors {
		if !numeric.IsFinite(f) || f < domain.SeasonalFactorMin || f > domain.SeasonalFactorMax {
			return fieldErr(fmt.Sprintf("seasonalFactors[%d]", i), "must be between 0.1 and 3.0")
		}
	}
	for m, v := range in.OneTimeExpenses {
		if m < 1 {
			return fieldErr("oneTimeExpenses", "month keys must be >= 1")
		}
		if err := nonNegative(fmt.Sprintf("oneTimeExpenses[%d]", m), v); err != nil {
			return err
		}
	}
	for m, v := range in.ExpectedReceivables {
		if m < 1 {
			return fieldErr("expectedReceivables", "month keys must be >= 1")
		}
		if err := nonNegative(fmt.Sprintf("expectedReceivables[%d]", m), v); err != nil {
			return err
		}
	}
	if in.ForecastMonths < 0 {
		return fieldErr("forecastMonths", "must not be negative")
	}
	return nil
}

// BreakEven validates unit economics. Price must exceed variable cost;
// proceeding with a non-positive contribution margin would silently
// produce a nonsense unit count.
func BreakEven(in domain.BreakEvenInput) error {
	if err := positive("fixedCosts", in.FixedCosts); err != nil {
		return err
	}
	if err := positive("pricePerUnit", in.PricePerUnit); err != nil {
		return err
	}
	if err := nonNegative("variableCostPerUnit", in.VariableCostPerUnit); err != nil {
		return err
	}
	if in.PricePerUnit <= in.VariableCostPerUnit {
		return fieldErr("pricePerUnit", "must exceed variableCostPerUnit")
	}
	return nil
}

// Friction validates operational friction index inputs.
func Friction(in domain.FrictionInputs) error {
	if err := nonNegative("manualHoursPerWeek", in.ManualHoursPerWeek); err != nil {
		return err
	}
	if err := positive("hourlyCost", in.HourlyCost); err != nil {
		return err
	}
	if err := positive("currentRevenue", in.CurrentRevenue); err != nil {
		return err
	}
	return nil
}

// TechDebt validates tech-debt drag inputs. The maintenance/total
// hours relationship is checked as one combined precondition so a
// violation produces a single clear error.
func TechDebt(in domain.TechDebtInputs) error {
	if err := positive("totalDevHoursPerSprint", in.TotalDevHoursPerSprint); err != nil {
		return err
	}
	if err := nonNegative("maintenanceHoursPerSprint", in.MaintenanceHoursPerSprint); err != nil {
		return err
	}
	if in.MaintenanceHoursPerSprint > in.TotalDevHoursPerSprint {
		return fieldErr("maintenanceHoursPerSprint", "must not exceed totalDevHoursPerSprint")
	}
	if err := positive("teamAnnualCost", in.TeamAnnualCost); err != nil {
		return err
	}
	if err := nonNegative("incidentCostPerMonth", in.IncidentCostPerMonth); err != nil {
		return err
	}
	return nil
}

// Efficiency validates strategic efficiency ratio inputs.
func Efficiency(in domain.EfficiencyInputs) error {
	if err := positive("currentRevenue", in.CurrentRevenue); err != nil {
		return err
	}
	if err := positive("previousRevenue", in.PreviousRevenue); err != nil {
		return err
	}
	if err := positive("currentBurnRate", in.CurrentBurnRate); err != nil {
		return err
	}
	if err := positive("previousBurnRate", in.PreviousBurnRate); err != nil {
		return err
	}
	return nil
}
