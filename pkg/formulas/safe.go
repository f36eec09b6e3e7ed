package formulas

import "math"

// SafeRatio divides num by den, returning fallback when the denominator is
// zero, NaN or infinite. All guarded divisions in the engine go through this
// single primitive so the default-on-invalid-denominator policy stays uniform.
func SafeRatio(num, den, fallback float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return fallback
	}
	ratio := num / den
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return fallback
	}
	return ratio
}
