package formulas

// MaxDrawdown calculates the maximum drawdown from a series of fractional
// period returns using the cumulative-product method.
//
// Drawdown Formula:
//
//	Cumulative[i] = Π (1 + returns[0..i])
//	Drawdown[i]   = (Cumulative[i] - RunningMax[i]) / RunningMax[i]
//	Max Drawdown  = most negative drawdown over the series
//
// The result is negative or zero (e.g. -0.25 = 25% loss from peak).
func MaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	cumulative := 1.0
	runningMax := 1.0
	maxDrawdown := 0.0

	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > runningMax {
			runningMax = cumulative
		}
		drawdown := SafeRatio(cumulative-runningMax, runningMax, 0)
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}

// CumulativeReturn compounds a series of fractional period returns into a
// single total return over the window.
func CumulativeReturn(returns []float64) float64 {
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}
	return cumulative - 1
}
