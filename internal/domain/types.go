// Package domain defines the core value types shared across siglab: price
// bars, price series, positions, and nullable series elements.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Bars and series
// ---------------------------------------------------------------------------

// Bar is a single OHLC observation for one trading day.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Series is an ordered sequence of bars for a single asset, sorted ascending
// by Date. A Series is never reordered after it has been loaded.
type Series struct {
	Symbol string
	Bars   []Bar
}

// ErrUnsorted is returned by Validate when bar dates are not strictly
// increasing.
var ErrUnsorted = errors.New("bars not sorted ascending by date")

// NewSeries returns a Series for symbol over bars. The slice is used as-is.
func NewSeries(symbol string, bars []Bar) Series {
	return Series{Symbol: symbol, Bars: bars}
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Closes returns the close prices in bar order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high prices in bar order.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low prices in bar order.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Validate checks that dates are strictly increasing, which implies both
// ascending order and uniqueness.
func (s Series) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("%w: bar %d (%s) not after bar %d (%s)",
				ErrUnsorted, i, s.Bars[i].Date.Format("2006-01-02"),
				i-1, s.Bars[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Positions and nullable elements
// ---------------------------------------------------------------------------

// Position is a discrete trading position instruction.
type Position int8

const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

// String returns "short", "flat" or "long".
func (p Position) String() string {
	switch p {
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return "flat"
	}
}

// NullFloat is a series element that may be undefined, for example inside
// the warm-up period of a rolling window.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float returns a valid NullFloat holding v.
func Float(v float64) NullFloat { return NullFloat{Float64: v, Valid: true} }

// NullSignal is a position that may be undefined. Undefined signals are kept
// distinct from Flat until the backtest engine consumes them.
type NullSignal struct {
	Position Position
	Valid    bool
}

// Signal returns a valid NullSignal holding p.
func Signal(p Position) NullSignal { return NullSignal{Position: p, Valid: true} }

// OrFlat returns the position, or Flat when the signal is undefined.
func (s NullSignal) OrFlat() Position {
	if !s.Valid {
		return Flat
	}
	return s.Position
}
