// Package numeric provides shared math helpers for the calculation
// engines. All engines round only at the result boundary: currency to
// 2 decimals, ratio indices to 4.
package numeric

import "math"

// CurrencyEpsilon is the cent-level tolerance for schedule invariants.
const CurrencyEpsilon = 0.01

// SafeDiv divides num by den, returning def when the denominator is
// zero or non-finite. Keeps downstream formulas total.
func SafeDiv(num, den, def float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return def
	}
	q := num / den
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return def
	}
	return q
}

// Round2 rounds to 2 decimals (currency boundary).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round4 rounds to 4 decimals (ratio index boundary).
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// IsFinite reports whether v is a usable number.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// WithinTolerance reports whether a and b differ by at most tol.
func WithinTolerance(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// IsZero reports whether v is zero within the currency tolerance.
func IsZero(v float64) bool {
	return math.Abs(v) <= CurrencyEpsilon
}
