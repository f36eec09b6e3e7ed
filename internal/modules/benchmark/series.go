// Package benchmark handles the reference risk-free rate series: synthesis
// from a fixed annual rate and alignment onto a simulation's date axis.
package benchmark

import (
	"errors"
	"sort"
	"time"

	"github.com/brquant/backtest/pkg/formulas"
)

// ErrEmptySeries is returned when alignment is attempted against a source
// series with no observations at all.
var ErrEmptySeries = errors.New("benchmark series is empty")

// RatePoint is one daily observation of the reference rate, as a fraction
// (0.00035 ≈ 13.5% a year), not a percent.
type RatePoint struct {
	Date time.Time `json:"date"`
	Rate float64   `json:"rate"`
}

// Series is a date-indexed daily rate series, kept sorted by date.
type Series struct {
	points []RatePoint
}

// NewSeries builds a series from observations, sorting them by date.
func NewSeries(points []RatePoint) Series {
	sorted := make([]RatePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return Series{points: sorted}
}

// FromAnnualRate synthesizes a constant-rate series over the given dates,
// using the compounded daily equivalent (1+annual)^(1/252)-1.
func FromAnnualRate(annual float64, dates []time.Time) Series {
	daily := formulas.DailyRateFromAnnual(annual)
	points := make([]RatePoint, len(dates))
	for i, d := range dates {
		points[i] = RatePoint{Date: d, Rate: daily}
	}
	return NewSeries(points)
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.points) }

// Points returns the sorted observations.
func (s Series) Points() []RatePoint { return s.points }

// Mean returns the arithmetic mean rate of the series, 0 when empty.
func (s Series) Mean() float64 {
	if len(s.points) == 0 {
		return 0
	}
	var sum float64
	for _, pt := range s.points {
		sum += pt.Rate
	}
	return sum / float64(len(s.points))
}

// dateKey normalizes a timestamp to its calendar day for exact-date lookup.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Align reindexes the series onto the exact date axis of a simulation.
// Dates present in the source are copied; missing dates (holidays in one
// calendar but not the other) are forward-filled from the most recent known
// value; any remaining leading gap takes the source mean. The result always
// has one rate per requested date, which the Sharpe and benchmark-comparison
// calculations require.
func (s Series) Align(dates []time.Time) ([]float64, error) {
	if len(s.points) == 0 {
		return nil, ErrEmptySeries
	}

	byDate := make(map[string]float64, len(s.points))
	for _, pt := range s.points {
		byDate[dateKey(pt.Date)] = pt.Rate
	}

	aligned := make([]float64, len(dates))
	mean := s.Mean()
	known := false
	last := 0.0

	for i, d := range dates {
		if rate, ok := byDate[dateKey(d)]; ok {
			last = rate
			known = true
		}
		if known {
			aligned[i] = last
		} else {
			aligned[i] = mean
		}
	}

	return aligned, nil
}

// TradingDays returns the weekdays between start and end inclusive. It is a
// calendar approximation for synthesizing rate series; exchange holidays are
// not modeled.
func TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}
