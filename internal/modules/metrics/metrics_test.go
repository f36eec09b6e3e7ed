package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brquant/backtest/internal/modules/portfolio"
)

func record(dateStr string, totalValue, dailyReturnPct float64) portfolio.HistoryRecord {
	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		panic(err)
	}
	return portfolio.HistoryRecord{Date: d, TotalValue: totalValue, DailyReturnPct: dailyReturnPct}
}

func testHistory() []portfolio.HistoryRecord {
	// Daily returns 0%, +1%, -2%, +3% over four periods.
	return []portfolio.HistoryRecord{
		record("2024-01-02", 100.00, 0),
		record("2024-01-03", 101.00, 1),
		record("2024-01-04", 98.98, -2),
		record("2024-01-05", 101.9494, 3),
	}
}

func TestCalculateTooShort(t *testing.T) {
	report, err := Calculate(nil, nil, 0)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, Report{}, report)

	report, err = Calculate([]portfolio.HistoryRecord{record("2024-01-02", 100, 0)}, nil, 0)
	require.NoError(t, err)
	assert.False(t, report.Valid)
}

func TestCalculateBenchmarkLengthMismatch(t *testing.T) {
	_, err := Calculate(testHistory(), []float64{0.0005, 0.0005}, 0)
	require.Error(t, err)
}

func TestCalculateCoreNumbers(t *testing.T) {
	bench := []float64{0.0005, 0.0005, 0.0005, 0.0005}
	report, err := Calculate(testHistory(), bench, 0)
	require.NoError(t, err)
	require.True(t, report.Valid)

	assert.InDelta(t, 1.9494, report.TotalReturnPct, 1e-6)
	assert.Equal(t, 4, report.NumPeriods)
	assert.InDelta(t, 4.0/252.0, report.NumYears, 1e-12)

	// Annualized return compounds the four-period result to a full year.
	expectedAnnualized := (math.Pow(101.9494/100.0, 252.0/4.0) - 1) * 100
	assert.InDelta(t, expectedAnnualized, report.AnnualizedReturnPct, 1e-6)

	// The deepest cumulative trough is the single -2% day.
	assert.InDelta(t, -2.0, report.MaxDrawdownPct, 1e-6)
	assert.InDelta(t, report.AnnualizedReturnPct/2.0, report.CalmarRatio, 1e-6)

	// Two winning days out of three counted returns.
	assert.InDelta(t, 200.0/3.0, report.WinRatePct, 1e-6)
	assert.InDelta(t, 3.0, report.BestDayPct, 1e-9)
	assert.InDelta(t, -2.0, report.WorstDayPct, 1e-9)

	// Benchmark compounds the three aligned daily rates after the first
	// record is dropped.
	expectedBench := (math.Pow(1.0005, 3) - 1) * 100
	assert.InDelta(t, expectedBench, report.BenchmarkReturnPct, 1e-9)
	assert.InDelta(t, report.TotalReturnPct-expectedBench, report.OutperformancePct, 1e-9)

	assert.NotZero(t, report.SharpeRatio)
	assert.Greater(t, report.VolatilityAnnualPct, 0.0)
}

func TestCalculateFixedRateFallback(t *testing.T) {
	report, err := Calculate(testHistory(), nil, 0.135)
	require.NoError(t, err)
	require.True(t, report.Valid)

	// With no series the benchmark return compounds the annual rate over the
	// simulated fraction of a year.
	years := 4.0 / 252.0
	expectedBench := (math.Pow(1.135, years) - 1) * 100
	assert.InDelta(t, expectedBench, report.BenchmarkReturnPct, 1e-9)
}

func TestCalculateZeroRiskFreeUsesDefault(t *testing.T) {
	explicit, err := Calculate(testHistory(), nil, DefaultAnnualRiskFree)
	require.NoError(t, err)
	implicit, err := Calculate(testHistory(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, explicit, implicit)
}

func TestCalculateExplicitZeroRateBenchmark(t *testing.T) {
	// A zero annualRiskFree means "use the default"; a true zero-rate
	// comparison goes through an all-zero benchmark series instead.
	bench := []float64{0, 0, 0, 0}
	report, err := Calculate(testHistory(), bench, 0)
	require.NoError(t, err)
	require.True(t, report.Valid)

	assert.Equal(t, 0.0, report.BenchmarkReturnPct)
	assert.InDelta(t, report.TotalReturnPct, report.OutperformancePct, 1e-9)
}

func TestCalculateFlatHistory(t *testing.T) {
	history := []portfolio.HistoryRecord{
		record("2024-01-02", 100, 0),
		record("2024-01-03", 100, 0),
		record("2024-01-04", 100, 0),
	}
	report, err := Calculate(history, nil, 0.135)
	require.NoError(t, err)
	require.True(t, report.Valid)

	assert.Equal(t, 0.0, report.TotalReturnPct)
	assert.Equal(t, 0.0, report.MaxDrawdownPct)
	assert.Equal(t, 0.0, report.CalmarRatio)
	assert.Equal(t, 0.0, report.WinRatePct)
	assert.Equal(t, 0.0, report.VolatilityAnnualPct)
}
