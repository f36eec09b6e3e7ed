// Package backtest drives a portfolio through simulated periods in the one
// order that keeps the return series consistent: mark prices, check exits,
// apply decisions, accrue interest, record state.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brquant/backtest/internal/modules/benchmark"
	"github.com/brquant/backtest/internal/modules/ledger"
	"github.com/brquant/backtest/internal/modules/metrics"
	"github.com/brquant/backtest/internal/modules/portfolio"
	"github.com/brquant/backtest/internal/modules/snapshots"
)

// ErrUnknownAction is returned when a decision carries an action other than
// BUY or SELL. Malformed upstream input fails the run instead of executing.
var ErrUnknownAction = errors.New("unknown decision action")

// Decision is one upstream sizing instruction for one instrument in one
// period. The ledger enforces its own min/max bounds regardless of what
// upstream requests. A SELL decision liquidates the full position at the
// given price; TargetWeightPct is ignored for sells. An empty Action is
// treated as BUY; anything else is rejected with ErrUnknownAction.
type Decision struct {
	Instrument      string                `json:"instrument"`
	Action          portfolio.TradeAction `json:"action"`
	TargetWeightPct float64               `json:"target_weight_pct"`
	Price           float64               `json:"price"`
	StopLoss        *float64              `json:"stop_loss,omitempty"`
	TakeProfit      *float64              `json:"take_profit,omitempty"`
	Reason          portfolio.TradeReason `json:"reason"`
}

// PeriodResult reports what one simulated period executed.
type PeriodResult struct {
	Date           time.Time               `json:"date"`
	ExitTrades     []portfolio.Trade       `json:"exit_trades"`
	DecisionTrades []portfolio.Trade       `json:"decision_trades"`
	InterestTrade  *portfolio.Trade        `json:"interest_trade,omitempty"`
	Record         portfolio.HistoryRecord `json:"record"`
}

// Config holds engine construction parameters. Ledger and Snapshots are
// optional; when set, executed trades and period records are persisted as
// the run advances.
type Config struct {
	Portfolio      *portfolio.Portfolio
	Benchmark      benchmark.Series // used by Finish for the metrics report
	AnnualRiskFree float64          // fallback when Benchmark is empty
	Ledger         *ledger.Repository
	Snapshots      *snapshots.Repository
}

// Engine owns one portfolio for one simulation run and is the single entry
// point for advancing simulated time. It exists so the five-step period
// sequence cannot be called out of order by the driver.
type Engine struct {
	pf             *portfolio.Portfolio
	bench          benchmark.Series
	annualRiskFree float64
	ledgerRepo     *ledger.Repository
	snapshotRepo   *snapshots.Repository
	log            zerolog.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(cfg Config, log zerolog.Logger) (*Engine, error) {
	if cfg.Portfolio == nil {
		return nil, fmt.Errorf("new engine: portfolio is required")
	}
	return &Engine{
		pf:             cfg.Portfolio,
		bench:          cfg.Benchmark,
		annualRiskFree: cfg.AnnualRiskFree,
		ledgerRepo:     cfg.Ledger,
		snapshotRepo:   cfg.Snapshots,
		log:            log.With().Str("service", "backtest").Logger(),
	}, nil
}

// Portfolio exposes the engine's portfolio for reporting.
func (e *Engine) Portfolio() *portfolio.Portfolio { return e.pf }

// AdvancePeriod runs one simulated period: mark prices, execute stop/take
// exits, apply upstream decisions, accrue interest on idle cash, record the
// period snapshot. Decisions that the sizing negotiation rejects execute no
// trade and appear in no result list; that is a routine outcome.
func (e *Engine) AdvancePeriod(date time.Time, prices map[string]float64, decisions []Decision, dailyRate float64) (PeriodResult, error) {
	result := PeriodResult{Date: date}

	if err := e.pf.Mark(prices); err != nil {
		return result, fmt.Errorf("advance period: %w", err)
	}

	exits, err := e.pf.CheckExits(date)
	if err != nil {
		return result, fmt.Errorf("advance period: %w", err)
	}
	result.ExitTrades = exits

	for _, d := range decisions {
		var trade *portfolio.Trade
		switch d.Action {
		case portfolio.ActionSell:
			trade, err = e.pf.Sell(d.Instrument, d.Price, date, 0, d.Reason)
		case portfolio.ActionBuy, "":
			trade, err = e.pf.Buy(d.Instrument, d.Price, d.TargetWeightPct, date, d.StopLoss, d.TakeProfit, d.Reason)
		default:
			return result, fmt.Errorf("advance period: decision for %s: %w (got %q)", d.Instrument, ErrUnknownAction, d.Action)
		}
		if err != nil {
			return result, fmt.Errorf("advance period: %w", err)
		}
		if trade != nil {
			result.DecisionTrades = append(result.DecisionTrades, *trade)
		}
	}

	interest, err := e.pf.AccrueInterest(date, dailyRate)
	if err != nil {
		return result, fmt.Errorf("advance period: %w", err)
	}
	result.InterestTrade = interest

	if err := e.pf.RecordState(date); err != nil {
		return result, fmt.Errorf("advance period: %w", err)
	}
	history := e.pf.History()
	result.Record = history[len(history)-1]

	if err := e.persist(result); err != nil {
		return result, err
	}

	return result, nil
}

// persist writes the period's trades and snapshot to the configured stores.
func (e *Engine) persist(result PeriodResult) error {
	if e.ledgerRepo != nil {
		trades := make([]portfolio.Trade, 0, len(result.ExitTrades)+len(result.DecisionTrades)+1)
		trades = append(trades, result.ExitTrades...)
		trades = append(trades, result.DecisionTrades...)
		if result.InterestTrade != nil {
			trades = append(trades, *result.InterestTrade)
		}
		if err := e.ledgerRepo.AppendAll(trades); err != nil {
			return fmt.Errorf("persist trades: %w", err)
		}
	}
	if e.snapshotRepo != nil {
		if err := e.snapshotRepo.Save(result.Record); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
	}
	return nil
}

// Finish aligns the benchmark onto the simulation's date axis and computes
// the performance report. With no benchmark observations the metrics fall
// back to the fixed annual risk-free rate.
func (e *Engine) Finish() (metrics.Report, error) {
	history := e.pf.History()

	var aligned []float64
	if e.bench.Len() > 0 {
		dates := make([]time.Time, len(history))
		for i, rec := range history {
			dates[i] = rec.Date
		}
		var err error
		aligned, err = e.bench.Align(dates)
		if err != nil {
			return metrics.Report{}, fmt.Errorf("finish: %w", err)
		}
	}

	report, err := metrics.Calculate(history, aligned, e.annualRiskFree)
	if err != nil {
		return metrics.Report{}, fmt.Errorf("finish: %w", err)
	}

	if !report.Valid {
		e.log.Warn().Int("periods", len(history)).Msg("History too short for metrics")
	}

	return report, nil
}
