package builtins

import (
	"siglab/internal/domain"
	"siglab/internal/strategy"
)

var _ strategy.Strategy = (*Momentum)(nil)

// Momentum is long when close is above the close lookback bars earlier and
// flat otherwise. It never goes short.
type Momentum struct {
	lookback int
}

// NewMomentum creates a Momentum strategy comparing against the close
// lookback bars ago.
func NewMomentum(lookback int) *Momentum {
	return &Momentum{lookback: lookback}
}

// Name returns "momentum".
func (m *Momentum) Name() string { return string(strategy.KindMomentum) }

// Generate leaves the first lookback bars undefined.
func (m *Momentum) Generate(series domain.Series) strategy.Output {
	closes := series.Closes()
	signals := make([]domain.NullSignal, len(closes))
	if m.lookback <= 0 {
		return strategy.Output{Signals: signals}
	}
	for i := m.lookback; i < len(closes); i++ {
		if closes[i] > closes[i-m.lookback] {
			signals[i] = domain.Signal(domain.Long)
		} else {
			signals[i] = domain.Signal(domain.Flat)
		}
	}
	return strategy.Output{Signals: signals}
}
