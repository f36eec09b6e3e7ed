package portfolio

import (
	"time"

	"github.com/brquant/backtest/pkg/formulas"
)

// Position is one open holding in one instrument. It is a pure value object:
// all derived quantities are computed from shares, average cost and the last
// mark price. A position with zero shares never exists in the portfolio; it
// is removed, not retained.
type Position struct {
	Instrument string
	Shares     int64
	AvgCost    float64 // volume-weighted average entry price
	MarkPrice  float64 // latest observed price, updated only via Mark
	EntryDate  time.Time
	StopLoss   *float64
	TakeProfit *float64
}

// MarketValue is the current value of the holding at the last mark price.
func (p *Position) MarketValue() float64 {
	return float64(p.Shares) * p.MarkPrice
}

// CostBasis is the total amount paid for the holding.
func (p *Position) CostBasis() float64 {
	return float64(p.Shares) * p.AvgCost
}

// PnL is the unrealized profit or loss at the last mark price.
func (p *Position) PnL() float64 {
	return p.MarketValue() - p.CostBasis()
}

// PnLPct is the unrealized P&L as a percentage of cost basis.
func (p *Position) PnLPct() float64 {
	return formulas.SafeRatio(p.PnL(), p.CostBasis(), 0) * 100
}

// ShouldStopLoss reports whether the mark price has reached the stop level.
func (p *Position) ShouldStopLoss() bool {
	if p.StopLoss == nil {
		return false
	}
	return p.MarkPrice <= *p.StopLoss
}

// ShouldTakeProfit reports whether the mark price has reached the target level.
func (p *Position) ShouldTakeProfit() bool {
	if p.TakeProfit == nil {
		return false
	}
	return p.MarkPrice >= *p.TakeProfit
}
