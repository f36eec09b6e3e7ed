package formulas

import "math"

// SharpeRatio calculates the annualized Sharpe ratio of a return series
// against a benchmark return series of equal length.
//
// Sharpe Formula:
//
//	Excess[i] = returns[i] - benchmark[i]
//	Sharpe    = mean(Excess) / stddev(Excess) × sqrt(252)
//
// Returns 0 when the excess series has zero dispersion; a flat excess series
// carries no risk-adjusted information, it is not an error.
func SharpeRatio(returns, benchmark []float64) float64 {
	if len(returns) < 2 || len(returns) != len(benchmark) {
		return 0
	}

	excess := make([]float64, len(returns))
	for i := range returns {
		excess[i] = returns[i] - benchmark[i]
	}

	std := StdDev(excess)
	if std == 0 {
		return 0
	}

	return Mean(excess) / std * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatioFixed calculates the annualized Sharpe ratio against a fixed
// annual risk-free rate, compounded to its daily equivalent.
func SharpeRatioFixed(returns []float64, annualRiskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	dailyRF := DailyRateFromAnnual(annualRiskFree)
	benchmark := make([]float64, len(returns))
	for i := range benchmark {
		benchmark[i] = dailyRF
	}

	return SharpeRatio(returns, benchmark)
}
