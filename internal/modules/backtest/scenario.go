package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brquant/backtest/internal/modules/benchmark"
	"github.com/brquant/backtest/internal/modules/ledger"
	"github.com/brquant/backtest/internal/modules/metrics"
	"github.com/brquant/backtest/internal/modules/portfolio"
	"github.com/brquant/backtest/internal/modules/snapshots"
)

const dateLayout = "2006-01-02"

// ScenarioPeriod is one simulated period of a scenario: the closing prices
// observed, the upstream decisions for the period, and an optional explicit
// benchmark daily rate overriding the scenario-level series.
type ScenarioPeriod struct {
	Date      string             `json:"date"`
	Prices    map[string]float64 `json:"prices"`
	Decisions []Decision         `json:"decisions,omitempty"`
	DailyRate *float64           `json:"daily_rate,omitempty"`
}

// ScenarioRate is one external benchmark rate observation.
type ScenarioRate struct {
	Date string  `json:"date"`
	Rate float64 `json:"rate"`
}

// Scenario is a complete simulation request: portfolio parameters, the
// benchmark rate source and the period sequence. A zero AnnualBenchmarkRate
// selects the default annual rate; a genuine zero-rate benchmark is expressed
// with explicit zero-valued BenchmarkRates.
type Scenario struct {
	InitialCapital      float64          `json:"initial_capital"`
	CommissionRate      float64          `json:"commission_rate,omitempty"`
	MinPositionSize     float64          `json:"min_position_size,omitempty"`
	MaxPositionSize     float64          `json:"max_position_size,omitempty"`
	BenchmarkSymbol     string           `json:"benchmark_symbol,omitempty"`
	AnnualBenchmarkRate float64          `json:"annual_benchmark_rate,omitempty"`
	BenchmarkRates      []ScenarioRate   `json:"benchmark_rates,omitempty"`
	Periods             []ScenarioPeriod `json:"periods"`
}

// RunResult is the full output of one scenario run.
type RunResult struct {
	Summary   portfolio.Summary         `json:"summary"`
	Positions []portfolio.PositionView  `json:"positions"`
	Report    metrics.Report            `json:"report"`
	Trades    []portfolio.Trade         `json:"trades"`
	History   []portfolio.HistoryRecord `json:"history"`
}

// Run executes a scenario from start to finish. The ledger and snapshot
// repositories are optional; when set, results are persisted as the run
// advances. Scenario dates must parse and be strictly increasing; those are
// driver faults, not market conditions, so they fail loudly.
func Run(s Scenario, ledgerRepo *ledger.Repository, snapshotRepo *snapshots.Repository, log zerolog.Logger) (RunResult, error) {
	if len(s.Periods) == 0 {
		return RunResult{}, fmt.Errorf("run scenario: at least one period is required")
	}

	dates := make([]time.Time, len(s.Periods))
	for i, period := range s.Periods {
		d, err := time.Parse(dateLayout, period.Date)
		if err != nil {
			return RunResult{}, fmt.Errorf("run scenario: bad date %q: %w", period.Date, err)
		}
		if i > 0 && !d.After(dates[i-1]) {
			return RunResult{}, fmt.Errorf("run scenario: dates must be strictly increasing at %q", period.Date)
		}
		dates[i] = d
	}

	pf, err := portfolio.New(portfolio.Config{
		InitialCapital:  s.InitialCapital,
		CommissionRate:  s.CommissionRate,
		MinPositionSize: s.MinPositionSize,
		MaxPositionSize: s.MaxPositionSize,
		BenchmarkSymbol: s.BenchmarkSymbol,
	}, log)
	if err != nil {
		return RunResult{}, fmt.Errorf("run scenario: %w", err)
	}

	annualRate := s.AnnualBenchmarkRate
	if annualRate == 0 {
		annualRate = metrics.DefaultAnnualRiskFree
	}

	bench, rates, err := resolveRates(s, annualRate, dates)
	if err != nil {
		return RunResult{}, fmt.Errorf("run scenario: %w", err)
	}

	engine, err := NewEngine(Config{
		Portfolio:      pf,
		Benchmark:      bench,
		AnnualRiskFree: annualRate,
		Ledger:         ledgerRepo,
		Snapshots:      snapshotRepo,
	}, log)
	if err != nil {
		return RunResult{}, fmt.Errorf("run scenario: %w", err)
	}

	for i, period := range s.Periods {
		rate := rates[i]
		if period.DailyRate != nil {
			rate = *period.DailyRate
		}
		if _, err := engine.AdvancePeriod(dates[i], period.Prices, period.Decisions, rate); err != nil {
			return RunResult{}, fmt.Errorf("run scenario: period %s: %w", period.Date, err)
		}
	}

	report, err := engine.Finish()
	if err != nil {
		return RunResult{}, err
	}

	return RunResult{
		Summary:   pf.Summary(),
		Positions: pf.PositionViews(),
		Report:    report,
		Trades:    pf.Trades(),
		History:   pf.History(),
	}, nil
}

// resolveRates builds the benchmark series for the scenario and the per-period
// accrual rates aligned onto the scenario's date axis.
func resolveRates(s Scenario, annualRate float64, dates []time.Time) (benchmark.Series, []float64, error) {
	var bench benchmark.Series
	if len(s.BenchmarkRates) > 0 {
		points := make([]benchmark.RatePoint, len(s.BenchmarkRates))
		for i, r := range s.BenchmarkRates {
			d, err := time.Parse(dateLayout, r.Date)
			if err != nil {
				return benchmark.Series{}, nil, fmt.Errorf("bad benchmark date %q: %w", r.Date, err)
			}
			points[i] = benchmark.RatePoint{Date: d, Rate: r.Rate}
		}
		bench = benchmark.NewSeries(points)
	} else {
		bench = benchmark.FromAnnualRate(annualRate, dates)
	}

	rates, err := bench.Align(dates)
	if err != nil {
		return benchmark.Series{}, nil, err
	}
	return bench, rates, nil
}
