package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brquant/backtest/pkg/formulas"
)

// Default sizing parameters, matching the production backtest configuration.
const (
	DefaultCommissionRate  = 0.001 // 0.1% per trade leg
	DefaultMinPositionSize = 0.01  // 1% of total value
	DefaultMaxPositionSize = 0.15  // 15% of total value
	DefaultBenchmarkSymbol = "SELIC"
)

// Config holds portfolio construction parameters.
type Config struct {
	InitialCapital  float64
	CommissionRate  float64 // fraction of gross trade value, charged on both legs
	MinPositionSize float64 // hard floor on a single position's target weight
	MaxPositionSize float64 // ceiling a target weight is clamped to
	BenchmarkSymbol string  // instrument tag for interest accrual trades
}

// Portfolio is the stateful simulation engine: it owns cash, the set of open
// positions and the append-only trade ledger, and enforces sizing limits on
// every buy.
//
// A Portfolio is single-writer by design. One simulation run owns one
// instance and drives it strictly sequentially: mark prices, check exits,
// apply decisions, accrue interest, record state. Parallel parameter sweeps
// must construct one Portfolio per run.
type Portfolio struct {
	initialCapital  float64
	cash            float64
	commissionRate  float64
	minPositionSize float64
	maxPositionSize float64
	benchmarkSymbol string

	positions map[string]*Position
	trades    []Trade
	history   []HistoryRecord

	log zerolog.Logger
}

// New creates a portfolio with the given configuration. Zero-valued sizing
// fields fall back to the defaults above.
func New(cfg Config, log zerolog.Logger) (*Portfolio, error) {
	if cfg.InitialCapital <= 0 || math.IsNaN(cfg.InitialCapital) || math.IsInf(cfg.InitialCapital, 0) {
		return nil, fmt.Errorf("new portfolio: %w (got %v)", ErrInvalidCapital, cfg.InitialCapital)
	}
	if cfg.CommissionRate == 0 {
		cfg.CommissionRate = DefaultCommissionRate
	}
	if cfg.MinPositionSize == 0 {
		cfg.MinPositionSize = DefaultMinPositionSize
	}
	if cfg.MaxPositionSize == 0 {
		cfg.MaxPositionSize = DefaultMaxPositionSize
	}
	if cfg.BenchmarkSymbol == "" {
		cfg.BenchmarkSymbol = DefaultBenchmarkSymbol
	}

	return &Portfolio{
		initialCapital:  cfg.InitialCapital,
		cash:            cfg.InitialCapital,
		commissionRate:  cfg.CommissionRate,
		minPositionSize: cfg.MinPositionSize,
		maxPositionSize: cfg.MaxPositionSize,
		benchmarkSymbol: cfg.BenchmarkSymbol,
		positions:       make(map[string]*Position),
		log:             log.With().Str("service", "portfolio").Logger(),
	}, nil
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// InitialCapital returns the starting capital.
func (p *Portfolio) InitialCapital() float64 { return p.initialCapital }

// NumPositions returns the number of open positions.
func (p *Portfolio) NumPositions() int { return len(p.positions) }

// PositionsValue is the market value of all open positions.
func (p *Portfolio) PositionsValue() float64 {
	var total float64
	for _, pos := range p.positions {
		total += pos.MarketValue()
	}
	return total
}

// TotalValue is cash plus the market value of all positions. It is the sole
// basis for every percentage calculation in the engine.
func (p *Portfolio) TotalValue() float64 {
	return p.cash + p.PositionsValue()
}

// Exposure is the fraction of total value held in positions, in percent.
func (p *Portfolio) Exposure() float64 {
	return formulas.SafeRatio(p.PositionsValue(), p.TotalValue(), 0) * 100
}

// Position returns the open position for an instrument, or nil.
func (p *Portfolio) Position(instrument string) *Position {
	return p.positions[instrument]
}

// Trades returns the append-only trade ledger.
func (p *Portfolio) Trades() []Trade { return p.trades }

// History returns the per-period snapshot series.
func (p *Portfolio) History() []HistoryRecord { return p.history }

// CanBuy validates a target weight against the sizing limits and available
// cash. It returns whether the buy is allowed, the affordable value to spend
// (never more than requested) and a human-readable reason on rejection.
//
// Rejections are routine sizing outcomes, not errors: below-minimum targets,
// economically meaningless top-ups and insufficient cash all come back as
// allowed=false.
func (p *Portfolio) CanBuy(instrument string, targetPct float64) (bool, float64, string) {
	totalValue := p.TotalValue()

	// The minimum is a hard floor, the maximum a clamp.
	if targetPct < p.minPositionSize*100 {
		return false, 0, fmt.Sprintf("target %.1f%% below minimum %.1f%%", targetPct, p.minPositionSize*100)
	}
	if targetPct > p.maxPositionSize*100 {
		targetPct = p.maxPositionSize * 100
	}

	targetValue := (targetPct / 100) * totalValue

	// Topping up an existing position: only the increment is bought, and an
	// increment below the sizing floor is not worth its commission.
	if pos, ok := p.positions[instrument]; ok {
		additional := targetValue - pos.MarketValue()
		if additional < totalValue*p.minPositionSize {
			return false, 0, fmt.Sprintf("increment of %.1f%% too small", formulas.SafeRatio(additional, totalValue, 0)*100)
		}
		targetValue = additional
	}

	requiredCash := targetValue * (1 + p.commissionRate)
	if requiredCash > p.cash {
		// Shrink to the maximum affordable.
		targetValue = p.cash / (1 + p.commissionRate)
		if targetValue < totalValue*p.minPositionSize {
			return false, 0, fmt.Sprintf("insufficient cash (have %.2f, need %.2f)", p.cash, requiredCash)
		}
	}

	return true, targetValue, "OK"
}

// Buy executes a buy order targeting a percentage of total portfolio value.
// It returns nil with no side effects when the sizing negotiation rejects the
// order or the affordable value rounds down to zero shares; this is a normal
// outcome. Stop and take levels on an existing position are overwritten only
// when explicitly supplied.
func (p *Portfolio) Buy(instrument string, price, targetPct float64, date time.Time, stopLoss, takeProfit *float64, reason TradeReason) (*Trade, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("buy %s: %w (got %v)", instrument, ErrInvalidPrice, price)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("buy %s: %w", instrument, ErrInvalidDate)
	}

	allowed, targetValue, why := p.CanBuy(instrument, targetPct)
	if !allowed {
		p.log.Debug().Str("instrument", instrument).Str("reason", why).Msg("Buy rejected")
		return nil, nil
	}

	shares := int64(targetValue / price)
	if shares == 0 {
		return nil, nil
	}

	// Recompute the exact cost for the integer share count. Rounding the
	// share count up against a nearly exhausted cash balance must never push
	// cash negative, so shrink shares when the exact cost overshoots.
	tradeValue := float64(shares) * price
	commission := tradeValue * p.commissionRate
	totalCost := tradeValue + commission

	if totalCost > p.cash {
		shares = int64(p.cash / (price * (1 + p.commissionRate)))
		if shares == 0 {
			return nil, nil
		}
		tradeValue = float64(shares) * price
		commission = tradeValue * p.commissionRate
		totalCost = tradeValue + commission
	}

	p.cash -= totalCost

	if pos, ok := p.positions[instrument]; ok {
		oldCost := pos.CostBasis()
		pos.Shares += shares
		pos.AvgCost = (oldCost + tradeValue) / float64(pos.Shares)
		pos.MarkPrice = price
		if stopLoss != nil {
			pos.StopLoss = stopLoss
		}
		if takeProfit != nil {
			pos.TakeProfit = takeProfit
		}
	} else {
		p.positions[instrument] = &Position{
			Instrument: instrument,
			Shares:     shares,
			AvgCost:    price,
			MarkPrice:  price,
			EntryDate:  date,
			StopLoss:   stopLoss,
			TakeProfit: takeProfit,
		}
	}

	trade := Trade{
		ID:         uuid.NewString(),
		Date:       date,
		Instrument: instrument,
		Action:     ActionBuy,
		Shares:     shares,
		Price:      price,
		Commission: commission,
		TotalCost:  totalCost,
		Reason:     reason,
	}
	p.trades = append(p.trades, trade)

	p.log.Info().
		Str("instrument", instrument).
		Int64("shares", shares).
		Float64("price", price).
		Float64("total_cost", totalCost).
		Str("reason", string(reason)).
		Msg("Buy executed")

	return &trade, nil
}

// Sell executes a sell order. A share count of zero sells the entire
// position; a requested count above the held quantity is clamped to it,
// never an oversell. Selling an instrument with no open position returns nil
// with no side effects.
func (p *Portfolio) Sell(instrument string, price float64, date time.Time, shares int64, reason TradeReason) (*Trade, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("sell %s: %w (got %v)", instrument, ErrInvalidPrice, price)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("sell %s: %w", instrument, ErrInvalidDate)
	}
	if shares < 0 {
		return nil, fmt.Errorf("sell %s: %w (got %d)", instrument, ErrInvalidShares, shares)
	}

	pos, ok := p.positions[instrument]
	if !ok {
		return nil, nil
	}

	if shares == 0 || shares > pos.Shares {
		shares = pos.Shares
	}
	if shares == 0 {
		return nil, nil
	}

	tradeValue := float64(shares) * price
	commission := tradeValue * p.commissionRate
	netProceeds := tradeValue - commission

	p.cash += netProceeds

	pos.Shares -= shares
	if pos.Shares == 0 {
		delete(p.positions, instrument)
	}

	trade := Trade{
		ID:         uuid.NewString(),
		Date:       date,
		Instrument: instrument,
		Action:     ActionSell,
		Shares:     shares,
		Price:      price,
		Commission: commission,
		TotalCost:  -netProceeds, // negative = cash inflow
		Reason:     reason,
	}
	p.trades = append(p.trades, trade)

	p.log.Info().
		Str("instrument", instrument).
		Int64("shares", shares).
		Float64("price", price).
		Float64("net_proceeds", netProceeds).
		Str("reason", string(reason)).
		Msg("Sell executed")

	return &trade, nil
}

// exitTrigger is a pending stop/take exit collected before execution.
type exitTrigger struct {
	instrument string
	price      float64
	reason     TradeReason
}

// CheckExits evaluates stop-loss and take-profit levels for every open
// position at its current mark price and executes a full-size sell for each
// one that triggered. Stop-loss is evaluated before take-profit. Triggers are
// collected first and executed after, so the position map is never mutated
// while iterating it. Instruments are visited in sorted order to keep runs
// deterministic.
func (p *Portfolio) CheckExits(date time.Time) ([]Trade, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("check exits: %w", ErrInvalidDate)
	}

	instruments := make([]string, 0, len(p.positions))
	for instrument := range p.positions {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)

	var triggers []exitTrigger
	for _, instrument := range instruments {
		pos := p.positions[instrument]
		switch {
		case pos.ShouldStopLoss():
			triggers = append(triggers, exitTrigger{instrument, pos.MarkPrice, ReasonStopLoss})
		case pos.ShouldTakeProfit():
			triggers = append(triggers, exitTrigger{instrument, pos.MarkPrice, ReasonTakeProfit})
		}
	}

	var executed []Trade
	for _, trig := range triggers {
		trade, err := p.Sell(trig.instrument, trig.price, date, 0, trig.reason)
		if err != nil {
			return executed, err
		}
		if trade != nil {
			executed = append(executed, *trade)
		}
	}

	return executed, nil
}

// AccrueInterest applies one period of the benchmark daily rate to idle cash
// and records the accrual as an INTEREST ledger entry. A non-positive cash
// balance accrues nothing.
func (p *Portfolio) AccrueInterest(date time.Time, dailyRate float64) (*Trade, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("accrue interest: %w", ErrInvalidDate)
	}
	if math.IsNaN(dailyRate) || math.IsInf(dailyRate, 0) {
		return nil, fmt.Errorf("accrue interest: %w (got %v)", ErrInvalidRate, dailyRate)
	}

	if p.cash <= 0 {
		return nil, nil
	}

	interest := p.cash * dailyRate
	p.cash += interest

	trade := Trade{
		ID:         uuid.NewString(),
		Date:       date,
		Instrument: p.benchmarkSymbol,
		Action:     ActionInterest,
		TotalCost:  -interest, // negative = cash inflow
		Reason:     ReasonSelicYield,
	}
	p.trades = append(p.trades, trade)

	return &trade, nil
}

// Mark updates the mark price of every held instrument present in the price
// map. Instruments absent from the map retain their last mark; staleness is
// the caller's concern, not an error here.
func (p *Portfolio) Mark(prices map[string]float64) error {
	for instrument, price := range prices {
		if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			return fmt.Errorf("mark %s: %w (got %v)", instrument, ErrInvalidPrice, price)
		}
	}
	for instrument, pos := range p.positions {
		if price, ok := prices[instrument]; ok {
			pos.MarkPrice = price
		}
	}
	return nil
}

// RecordState appends one history record for the period. It must be called
// exactly once per simulated period, after all marks and trades for the
// period are applied, or the daily return series loses its meaning.
func (p *Portfolio) RecordState(date time.Time) error {
	if date.IsZero() {
		return fmt.Errorf("record state: %w", ErrInvalidDate)
	}

	total := p.TotalValue()

	dailyReturn := 0.0
	if n := len(p.history); n > 0 {
		prev := p.history[n-1].TotalValue
		dailyReturn = formulas.SafeRatio(total, prev, 1) - 1
		dailyReturn *= 100
	}

	p.history = append(p.history, HistoryRecord{
		Date:           date,
		TotalValue:     total,
		Cash:           p.cash,
		PositionsValue: p.PositionsValue(),
		NumPositions:   len(p.positions),
		DailyReturnPct: dailyReturn,
	})

	return nil
}

// Summary returns the portfolio-level state for reporting.
func (p *Portfolio) Summary() Summary {
	total := p.TotalValue()
	return Summary{
		InitialCapital: p.initialCapital,
		CurrentValue:   total,
		Cash:           p.cash,
		PositionsValue: p.PositionsValue(),
		NumPositions:   len(p.positions),
		TotalReturnPct: (formulas.SafeRatio(total, p.initialCapital, 1) - 1) * 100,
		TotalReturnAbs: total - p.initialCapital,
		ExposurePct:    p.Exposure(),
		NumTrades:      len(p.trades),
	}
}

// PositionViews returns per-position summaries sorted by portfolio weight,
// heaviest first.
func (p *Portfolio) PositionViews() []PositionView {
	total := p.TotalValue()
	views := make([]PositionView, 0, len(p.positions))
	for _, pos := range p.positions {
		views = append(views, PositionView{
			Instrument:  pos.Instrument,
			Shares:      pos.Shares,
			AvgCost:     pos.AvgCost,
			MarkPrice:   pos.MarkPrice,
			MarketValue: pos.MarketValue(),
			CostBasis:   pos.CostBasis(),
			PnL:         pos.PnL(),
			PnLPct:      pos.PnLPct(),
			WeightPct:   formulas.SafeRatio(pos.MarketValue(), total, 0) * 100,
			EntryDate:   pos.EntryDate,
			StopLoss:    pos.StopLoss,
			TakeProfit:  pos.TakeProfit,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].WeightPct > views[j].WeightPct })
	return views
}
