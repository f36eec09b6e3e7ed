// Package metrics computes the performance-report scalar set from a
// portfolio history series benchmarked against a reference rate series.
package metrics

import (
	"fmt"
	"math"

	"github.com/brquant/backtest/internal/modules/portfolio"
	"github.com/brquant/backtest/pkg/formulas"
)

// DefaultAnnualRiskFree is the fallback annual risk-free rate used when no
// benchmark series is supplied (13.5% a year, the long-run SELIC level the
// production configuration assumes).
const DefaultAnnualRiskFree = 0.135

// Report is the flat scalar set consumed by reporting. Valid is false when
// the history was too short to compute any return; every other field is then
// zero. Percentages are in percent, ratios are dimensionless.
type Report struct {
	TotalReturnPct      float64 `json:"total_return_pct"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct"`
	VolatilityAnnualPct float64 `json:"volatility_annual_pct"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	CalmarRatio         float64 `json:"calmar_ratio"`
	WinRatePct          float64 `json:"win_rate_pct"`
	BestDayPct          float64 `json:"best_day_pct"`
	WorstDayPct         float64 `json:"worst_day_pct"`
	BenchmarkReturnPct  float64 `json:"benchmark_return_pct"`
	OutperformancePct   float64 `json:"outperformance_pct"`
	NumPeriods          int     `json:"num_periods"`
	NumYears            float64 `json:"num_years"`
	Valid               bool    `json:"valid"`
}

// Calculate derives the performance report from a history series and an
// aligned benchmark daily-rate series of equal length and date axis.
// benchmark may be nil, in which case annualRiskFree stands in as a fixed
// rate. An annualRiskFree of zero is a sentinel meaning "use the default",
// not a zero-rate benchmark; a genuine zero-rate comparison is expressed by
// passing an all-zero benchmark series. Fewer than two history records yield
// an empty report, not an error: there is no return to compute.
func Calculate(history []portfolio.HistoryRecord, benchmark []float64, annualRiskFree float64) (Report, error) {
	if len(history) < 2 {
		return Report{}, nil
	}
	if benchmark != nil && len(benchmark) != len(history) {
		return Report{}, fmt.Errorf("benchmark series length %d does not match history length %d", len(benchmark), len(history))
	}
	if annualRiskFree == 0 {
		annualRiskFree = DefaultAnnualRiskFree
	}

	// Stored returns are percentages; the first record's return is zero by
	// convention and carries no information, so drop it.
	returns := make([]float64, 0, len(history)-1)
	for _, rec := range history[1:] {
		returns = append(returns, rec.DailyReturnPct/100)
	}

	initialValue := history[0].TotalValue
	finalValue := history[len(history)-1].TotalValue
	totalReturn := formulas.SafeRatio(finalValue, initialValue, 1) - 1

	numPeriods := len(history)
	years := float64(numPeriods) / formulas.TradingDaysPerYear

	annualized := 0.0
	if years > 0 && initialValue > 0 {
		annualized = math.Pow(finalValue/initialValue, 1/years) - 1
	}

	volatility := formulas.AnnualizedVolatility(returns)

	// Benchmark returns aligned with the dropped-first-record convention.
	var benchReturns []float64
	if benchmark != nil {
		benchReturns = benchmark[1:]
	} else {
		daily := formulas.DailyRateFromAnnual(annualRiskFree)
		benchReturns = make([]float64, len(returns))
		for i := range benchReturns {
			benchReturns[i] = daily
		}
	}

	sharpe := formulas.SharpeRatio(returns, benchReturns)
	maxDrawdown := formulas.MaxDrawdown(returns)
	calmar := 0.0
	if maxDrawdown != 0 {
		calmar = math.Abs(formulas.SafeRatio(annualized, maxDrawdown, 0))
	}

	wins := 0
	best := returns[0]
	worst := returns[0]
	for _, r := range returns {
		if r > 0 {
			wins++
		}
		if r > best {
			best = r
		}
		if r < worst {
			worst = r
		}
	}
	winRate := formulas.SafeRatio(float64(wins), float64(len(returns)), 0)

	var benchTotal float64
	if benchmark != nil {
		benchTotal = formulas.CumulativeReturn(benchReturns)
	} else {
		benchTotal = math.Pow(1+annualRiskFree, years) - 1
	}

	return Report{
		TotalReturnPct:      totalReturn * 100,
		AnnualizedReturnPct: annualized * 100,
		VolatilityAnnualPct: volatility * 100,
		SharpeRatio:         sharpe,
		MaxDrawdownPct:      maxDrawdown * 100,
		CalmarRatio:         calmar,
		WinRatePct:          winRate * 100,
		BestDayPct:          best * 100,
		WorstDayPct:         worst * 100,
		BenchmarkReturnPct:  benchTotal * 100,
		OutperformancePct:   (totalReturn - benchTotal) * 100,
		NumPeriods:          numPeriods,
		NumYears:            years,
		Valid:               true,
	}, nil
}
