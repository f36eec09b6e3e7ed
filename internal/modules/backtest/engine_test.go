package backtest

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/brquant/backtest/internal/modules/ledger"
	"github.com/brquant/backtest/internal/modules/portfolio"
	"github.com/brquant/backtest/internal/modules/snapshots"
)

func day(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func floatPtr(v float64) *float64 { return &v }

func newTestPortfolio(t *testing.T, capital float64) *portfolio.Portfolio {
	t.Helper()
	pf, err := portfolio.New(portfolio.Config{InitialCapital: capital}, zerolog.Nop())
	require.NoError(t, err)
	return pf
}

func setupRepos(t *testing.T) (*ledger.Repository, *snapshots.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, ledger.InitSchema(db))
	require.NoError(t, snapshots.InitSchema(db))

	return ledger.NewRepository(db, zerolog.Nop()), snapshots.NewRepository(db, zerolog.Nop())
}

func TestNewEngineRequiresPortfolio(t *testing.T) {
	_, err := NewEngine(Config{}, zerolog.Nop())
	require.Error(t, err)
}

func TestAdvancePeriodBuyAndRecord(t *testing.T) {
	pf := newTestPortfolio(t, 50_000_000)
	engine, err := NewEngine(Config{Portfolio: pf}, zerolog.Nop())
	require.NoError(t, err)

	result, err := engine.AdvancePeriod(
		day("2024-01-02"),
		map[string]float64{"PETR4.SA": 30.50},
		[]Decision{{
			Instrument:      "PETR4.SA",
			Action:          portfolio.ActionBuy,
			TargetWeightPct: 8.0,
			Price:           30.50,
			Reason:          portfolio.ReasonInitial,
		}},
		0.0005,
	)
	require.NoError(t, err)

	require.Len(t, result.DecisionTrades, 1)
	assert.Equal(t, portfolio.ActionBuy, result.DecisionTrades[0].Action)
	assert.Empty(t, result.ExitTrades)
	require.NotNil(t, result.InterestTrade)
	assert.Equal(t, portfolio.ActionInterest, result.InterestTrade.Action)

	assert.Equal(t, day("2024-01-02"), result.Record.Date)
	assert.Equal(t, 1, result.Record.NumPositions)
	assert.Equal(t, 0.0, result.Record.DailyReturnPct)
	require.Len(t, pf.History(), 1)
}

func TestAdvancePeriodExitBeforeDecision(t *testing.T) {
	// A stop-loss hit on the new period's prices must liquidate before the
	// period's decisions run, so the freed cash funds them.
	pf := newTestPortfolio(t, 1_000_000)
	engine, err := NewEngine(Config{Portfolio: pf}, zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.AdvancePeriod(
		day("2024-01-02"),
		map[string]float64{"PETR4.SA": 30.50},
		[]Decision{{
			Instrument:      "PETR4.SA",
			Action:          portfolio.ActionBuy,
			TargetWeightPct: 15.0,
			Price:           30.50,
			StopLoss:        floatPtr(29.50),
			Reason:          portfolio.ReasonInitial,
		}},
		0,
	)
	require.NoError(t, err)
	require.Equal(t, 1, pf.NumPositions())

	result, err := engine.AdvancePeriod(
		day("2024-01-03"),
		map[string]float64{"PETR4.SA": 29.00},
		[]Decision{{
			Instrument:      "VALE3.SA",
			Action:          portfolio.ActionBuy,
			TargetWeightPct: 10.0,
			Price:           65.00,
			Reason:          portfolio.ReasonSignal,
		}},
		0,
	)
	require.NoError(t, err)

	require.Len(t, result.ExitTrades, 1)
	assert.Equal(t, portfolio.ReasonStopLoss, result.ExitTrades[0].Reason)
	assert.InDelta(t, 29.00, result.ExitTrades[0].Price, 1e-12)

	require.Len(t, result.DecisionTrades, 1)
	assert.Equal(t, "VALE3.SA", result.DecisionTrades[0].Instrument)
	assert.Nil(t, pf.Position("PETR4.SA"))
}

func TestAdvancePeriodSellDecisionLiquidates(t *testing.T) {
	pf := newTestPortfolio(t, 1_000_000)
	engine, err := NewEngine(Config{Portfolio: pf}, zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.AdvancePeriod(
		day("2024-01-02"),
		map[string]float64{"PETR4.SA": 30.50},
		[]Decision{{
			Instrument:      "PETR4.SA",
			Action:          portfolio.ActionBuy,
			TargetWeightPct: 10.0,
			Price:           30.50,
			Reason:          portfolio.ReasonInitial,
		}},
		0,
	)
	require.NoError(t, err)

	result, err := engine.AdvancePeriod(
		day("2024-01-03"),
		map[string]float64{"PETR4.SA": 31.00},
		[]Decision{{
			Instrument: "PETR4.SA",
			Action:     portfolio.ActionSell,
			Price:      31.00,
			Reason:     portfolio.ReasonSignal,
		}},
		0,
	)
	require.NoError(t, err)

	require.Len(t, result.DecisionTrades, 1)
	assert.Equal(t, portfolio.ActionSell, result.DecisionTrades[0].Action)
	assert.Equal(t, 0, pf.NumPositions())
}

func TestAdvancePeriodRejectsUnknownAction(t *testing.T) {
	// A mistyped action must fail the run, never fall through to a buy.
	pf := newTestPortfolio(t, 1_000_000)
	engine, err := NewEngine(Config{Portfolio: pf}, zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.AdvancePeriod(
		day("2024-01-02"),
		map[string]float64{"PETR4.SA": 30.50},
		[]Decision{{
			Instrument:      "PETR4.SA",
			Action:          "SEL",
			TargetWeightPct: 8.0,
			Price:           30.50,
			Reason:          portfolio.ReasonSignal,
		}},
		0,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, 0, pf.NumPositions())
	assert.Empty(t, pf.Trades())
}

func TestAdvancePeriodEmptyActionIsBuy(t *testing.T) {
	pf := newTestPortfolio(t, 1_000_000)
	engine, err := NewEngine(Config{Portfolio: pf}, zerolog.Nop())
	require.NoError(t, err)

	result, err := engine.AdvancePeriod(
		day("2024-01-02"),
		map[string]float64{"PETR4.SA": 30.50},
		[]Decision{{
			Instrument:      "PETR4.SA",
			TargetWeightPct: 8.0,
			Price:           30.50,
			Reason:          portfolio.ReasonInitial,
		}},
		0,
	)
	require.NoError(t, err)
	require.Len(t, result.DecisionTrades, 1)
	assert.Equal(t, portfolio.ActionBuy, result.DecisionTrades[0].Action)
}

func TestAdvancePeriodRejectedDecisionIsSilent(t *testing.T) {
	pf := newTestPortfolio(t, 1_000_000)
	engine, err := NewEngine(Config{Portfolio: pf}, zerolog.Nop())
	require.NoError(t, err)

	// A target below the sizing floor produces no trade and no error.
	result, err := engine.AdvancePeriod(
		day("2024-01-02"),
		map[string]float64{"PETR4.SA": 30.50},
		[]Decision{{
			Instrument:      "PETR4.SA",
			Action:          portfolio.ActionBuy,
			TargetWeightPct: 0.5,
			Price:           30.50,
			Reason:          portfolio.ReasonInitial,
		}},
		0,
	)
	require.NoError(t, err)
	assert.Empty(t, result.DecisionTrades)
	assert.Equal(t, 0, pf.NumPositions())
}

func TestAdvancePeriodPersists(t *testing.T) {
	ledgerRepo, snapshotRepo := setupRepos(t)
	pf := newTestPortfolio(t, 50_000_000)
	engine, err := NewEngine(Config{
		Portfolio: pf,
		Ledger:    ledgerRepo,
		Snapshots: snapshotRepo,
	}, zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.AdvancePeriod(
		day("2024-01-02"),
		map[string]float64{"PETR4.SA": 30.50},
		[]Decision{{
			Instrument:      "PETR4.SA",
			Action:          portfolio.ActionBuy,
			TargetWeightPct: 8.0,
			Price:           30.50,
			Reason:          portfolio.ReasonInitial,
		}},
		0.0005,
	)
	require.NoError(t, err)

	// One buy plus one interest accrual in the ledger, one snapshot row.
	count, err := ledgerRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	records, err := snapshotRepo.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].NumPositions)
}

func TestFinishReportsAgainstBenchmark(t *testing.T) {
	pf := newTestPortfolio(t, 1_000_000)
	engine, err := NewEngine(Config{Portfolio: pf, AnnualRiskFree: 0.135}, zerolog.Nop())
	require.NoError(t, err)

	prices := []float64{30.00, 30.60, 30.30}
	for i, dateStr := range []string{"2024-01-02", "2024-01-03", "2024-01-04"} {
		decisions := []Decision{}
		if i == 0 {
			decisions = append(decisions, Decision{
				Instrument:      "PETR4.SA",
				Action:          portfolio.ActionBuy,
				TargetWeightPct: 15.0,
				Price:           prices[i],
				Reason:          portfolio.ReasonInitial,
			})
		}
		_, err := engine.AdvancePeriod(day(dateStr), map[string]float64{"PETR4.SA": prices[i]}, decisions, 0)
		require.NoError(t, err)
	}

	report, err := engine.Finish()
	require.NoError(t, err)
	require.True(t, report.Valid)
	assert.Equal(t, 3, report.NumPeriods)
	assert.NotZero(t, report.TotalReturnPct)
}

func TestFinishTooShortHistory(t *testing.T) {
	pf := newTestPortfolio(t, 1_000_000)
	engine, err := NewEngine(Config{Portfolio: pf}, zerolog.Nop())
	require.NoError(t, err)

	report, err := engine.Finish()
	require.NoError(t, err)
	assert.False(t, report.Valid)
}
