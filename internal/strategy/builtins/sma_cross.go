// Package builtins provides the signal generators that ship with siglab.
package builtins

import (
	"siglab/internal/domain"
	"siglab/internal/indicator"
	"siglab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross is a long-only simple moving average crossover. It is long while
// the fast average is above the slow average and flat otherwise, including
// when the two are equal.
type SMACross struct {
	fast int
	slow int
}

// NewSMACross creates a new SMACross strategy with the given fast and slow
// moving average windows.
func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{
		fast: fast,
		slow: slow,
	}
}

// Name returns "sma".
func (s *SMACross) Name() string {
	return string(strategy.KindSMA)
}

// Generate computes both averages over close and compares them bar by bar.
// The signal is undefined until both averages are defined.
func (s *SMACross) Generate(series domain.Series) strategy.Output {
	closes := series.Closes()
	fast := indicator.SMA(closes, s.fast)
	slow := indicator.SMA(closes, s.slow)

	signals := make([]domain.NullSignal, len(closes))
	for i := range closes {
		if !fast[i].Valid || !slow[i].Valid {
			continue
		}
		if fast[i].Float64 > slow[i].Float64 {
			signals[i] = domain.Signal(domain.Long)
		} else {
			signals[i] = domain.Signal(domain.Flat)
		}
	}

	return strategy.Output{
		Signals: signals,
		Columns: []strategy.Column{
			{Name: "sma_fast", Values: fast},
			{Name: "sma_slow", Values: slow},
		},
	}
}
