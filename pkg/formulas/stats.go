package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the number of trading days used for annualization.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// CalculateReturns converts a value series to fractional period returns.
// Returns[i] = (Value[i+1] - Value[i]) / Value[i]
func CalculateReturns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}

	return returns
}

// DailyRateFromAnnual converts an annual rate to its compounded daily
// equivalent: (1+annual)^(1/252) - 1
func DailyRateFromAnnual(annual float64) float64 {
	return math.Pow(1+annual, 1.0/TradingDaysPerYear) - 1
}
