package builtins

import (
	"siglab/internal/domain"
	"siglab/internal/indicator"
	"siglab/internal/strategy"
)

var _ strategy.Strategy = (*Breakout)(nil)

// Breakout trades channel breaks. The channel is the highest high and lowest
// low of the lookback bars ending at the previous bar, so the current bar
// never contributes to its own breakout level.
type Breakout struct {
	lookback int
}

// NewBreakout creates a Breakout strategy over a channel of lookback bars.
func NewBreakout(lookback int) *Breakout {
	return &Breakout{lookback: lookback}
}

// Name returns "breakout".
func (b *Breakout) Name() string { return string(strategy.KindBreakout) }

// Generate is long when close exceeds the prior channel high, short when it
// falls below the prior channel low, and flat when it touches either level
// or stays inside.
func (b *Breakout) Generate(series domain.Series) strategy.Output {
	hh := indicator.RollingMax(indicator.Values(series.Highs()), b.lookback)
	ll := indicator.RollingMin(indicator.Values(series.Lows()), b.lookback)
	prevHH := indicator.Shift(hh, 1)
	prevLL := indicator.Shift(ll, 1)

	signals := make([]domain.NullSignal, series.Len())
	for i, bar := range series.Bars {
		if !prevHH[i].Valid || !prevLL[i].Valid {
			continue
		}
		switch {
		case bar.Close > prevHH[i].Float64:
			signals[i] = domain.Signal(domain.Long)
		case bar.Close < prevLL[i].Float64:
			signals[i] = domain.Signal(domain.Short)
		default:
			signals[i] = domain.Signal(domain.Flat)
		}
	}

	return strategy.Output{
		Signals: signals,
		Columns: []strategy.Column{
			{Name: "hh", Values: hh},
			{Name: "ll", Values: ll},
		},
	}
}
