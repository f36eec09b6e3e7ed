// Package portfolio implements the simulated portfolio ledger: cash,
// positions, trade history and per-period state snapshots.
package portfolio

import (
	"errors"
	"time"
)

// TradeAction identifies the kind of ledger entry
type TradeAction string

const (
	ActionBuy      TradeAction = "BUY"
	ActionSell     TradeAction = "SELL"
	ActionInterest TradeAction = "INTEREST"
)

// TradeReason records why a trade was executed
type TradeReason string

const (
	ReasonInitial    TradeReason = "INITIAL"
	ReasonRebalance  TradeReason = "REBALANCE"
	ReasonStopLoss   TradeReason = "STOP_LOSS"
	ReasonTakeProfit TradeReason = "TAKE_PROFIT"
	ReasonSignal     TradeReason = "SIGNAL"
	ReasonSelicYield TradeReason = "SELIC_YIELD"
)

// Fault errors indicate a programming error in the driver, not a market
// condition. Routine sizing rejections are not errors; they surface as a
// nil trade plus a reason string.
var (
	ErrInvalidPrice   = errors.New("price must be positive")
	ErrInvalidShares  = errors.New("share count must not be negative")
	ErrInvalidDate    = errors.New("date must not be zero")
	ErrInvalidCapital = errors.New("initial capital must be positive")
	ErrInvalidRate    = errors.New("rate must be a finite number")
)

// Trade is one executed transaction in the append-only ledger.
//
// TotalCost is signed from the portfolio's point of view: positive for cash
// leaving the portfolio (buys), negative for cash entering it (sell proceeds,
// interest). The ledger is the sole source of truth for realized cash
// movement.
type Trade struct {
	ID         string      `json:"id"`
	Date       time.Time   `json:"date"`
	Instrument string      `json:"instrument"`
	Action     TradeAction `json:"action"`
	Shares     int64       `json:"shares"`
	Price      float64     `json:"price"`
	Commission float64     `json:"commission"`
	TotalCost  float64     `json:"total_cost"`
	Reason     TradeReason `json:"reason"`
}

// HistoryRecord is one per-period snapshot of portfolio state, appended by
// RecordState. DailyReturnPct is 0 for the first record by convention.
type HistoryRecord struct {
	Date           time.Time `json:"date"`
	TotalValue     float64   `json:"total_value"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	NumPositions   int       `json:"num_positions"`
	DailyReturnPct float64   `json:"daily_return_pct"`
}

// Summary is the portfolio-level state consumed by reporting.
type Summary struct {
	InitialCapital float64 `json:"initial_capital"`
	CurrentValue   float64 `json:"current_value"`
	Cash           float64 `json:"cash"`
	PositionsValue float64 `json:"positions_value"`
	NumPositions   int     `json:"num_positions"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalReturnAbs float64 `json:"total_return_abs"`
	ExposurePct    float64 `json:"exposure_pct"`
	NumTrades      int     `json:"num_trades"`
}

// PositionView is the per-position summary row consumed by reporting.
type PositionView struct {
	Instrument   string    `json:"instrument"`
	Shares       int64     `json:"shares"`
	AvgCost      float64   `json:"avg_cost"`
	MarkPrice    float64   `json:"mark_price"`
	MarketValue  float64   `json:"market_value"`
	CostBasis    float64   `json:"cost_basis"`
	PnL          float64   `json:"pnl"`
	PnLPct       float64   `json:"pnl_pct"`
	WeightPct    float64   `json:"weight_pct"`
	EntryDate    time.Time `json:"entry_date"`
	StopLoss     *float64  `json:"stop_loss,omitempty"`
	TakeProfit   *float64  `json:"take_profit,omitempty"`
}
