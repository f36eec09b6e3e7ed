package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeRatio(t *testing.T) {
	assert.Equal(t, 5.0, SafeRatio(10, 2, 0))
	assert.Equal(t, 0.0, SafeRatio(10, 0, 0))
	assert.Equal(t, 1.0, SafeRatio(10, 0, 1))
	assert.Equal(t, 0.0, SafeRatio(10, math.NaN(), 0))
	assert.Equal(t, 0.0, SafeRatio(10, math.Inf(1), 0))
	assert.Equal(t, 0.0, SafeRatio(math.NaN(), 2, 0))
}

func TestMeanAndStdDev(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, Mean(data), 1e-12)
	// Sample standard deviation of 1..5
	assert.InDelta(t, math.Sqrt(2.5), StdDev(data), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev([]float64{42}))
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	assert.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)

	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestMaxDrawdownCumulativeMethod(t *testing.T) {
	// Returns [1%, -2%, 3%]: cumulative 1.01, 0.9898, 1.019494.
	// Peak 1.01, trough 0.9898 -> drawdown exactly -2%.
	dd := MaxDrawdown([]float64{0.01, -0.02, 0.03})
	assert.InDelta(t, -0.02, dd, 1e-9)

	// A naive min-of-returns would report -2% here too; this series makes
	// the compounding visible: two consecutive losses deepen the trough.
	dd = MaxDrawdown([]float64{0.05, -0.10, -0.10})
	assert.InDelta(t, -0.19, dd, 1e-9)

	assert.Equal(t, 0.0, MaxDrawdown(nil))
	assert.Equal(t, 0.0, MaxDrawdown([]float64{0.01, 0.02}))
}

func TestCumulativeReturn(t *testing.T) {
	total := CumulativeReturn([]float64{0.10, 0.10})
	assert.InDelta(t, 0.21, total, 1e-12)
	assert.Equal(t, 0.0, CumulativeReturn(nil))
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.01, 0.015}
	benchmark := []float64{0.0005, 0.0005, 0.0005, 0.0005}

	sharpe := SharpeRatio(returns, benchmark)
	assert.NotZero(t, sharpe)

	// Zero-dispersion excess series is defined as 0, not a division error.
	flat := []float64{0.001, 0.001, 0.001}
	assert.Equal(t, 0.0, SharpeRatio(flat, flat))

	// Length mismatch and short series degrade to 0.
	assert.Equal(t, 0.0, SharpeRatio(returns, benchmark[:2]))
	assert.Equal(t, 0.0, SharpeRatio(returns[:1], benchmark[:1]))
}

func TestSharpeRatioFixed(t *testing.T) {
	// Returns exactly at the daily risk-free rate leave no excess.
	daily := DailyRateFromAnnual(0.135)
	flat := []float64{daily, daily, daily}
	assert.Equal(t, 0.0, SharpeRatioFixed(flat, 0.135))

	above := []float64{daily + 0.01, daily + 0.005, daily + 0.02, daily + 0.01}
	assert.Greater(t, SharpeRatioFixed(above, 0.135), 0.0)
}

func TestDailyRateFromAnnual(t *testing.T) {
	daily := DailyRateFromAnnual(0.135)
	// Compounding back over 252 days recovers the annual rate.
	assert.InDelta(t, 0.135, math.Pow(1+daily, 252)-1, 1e-9)
}

func TestAnnualizedVolatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.01, -0.01}
	expected := StdDev(returns) * math.Sqrt(252)
	assert.InDelta(t, expected, AnnualizedVolatility(returns), 1e-12)
	assert.Equal(t, 0.0, AnnualizedVolatility(nil))
}
