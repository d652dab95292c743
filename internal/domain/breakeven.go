package domain

// BreakEvenInput describes a unit-economics break-even question.
type BreakEvenInput struct {
	FixedCosts          float64 `json:"fixedCosts"`
	PricePerUnit        float64 `json:"pricePerUnit"`
	VariableCostPerUnit float64 `json:"variableCostPerUnit"`
}

// BreakEvenResult reports the units required to cover fixed costs.
// Units are rounded up before revenue is derived, so Revenue is the
// revenue at the first whole unit count that breaks even.
type BreakEvenResult struct {
	Units              int     `json:"units"`
	Revenue            float64 `json:"revenue"`
	ContributionMargin float64 `json:"contributionMargin"`
}
