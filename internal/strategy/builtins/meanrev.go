package builtins

import (
	"siglab/internal/domain"
	"siglab/internal/indicator"
	"siglab/internal/strategy"
)

var _ strategy.Strategy = (*MeanReversion)(nil)

// Epsilon is added to the rolling standard deviation so that a window of
// identical returns yields a large finite z-score instead of a division by
// zero.
const Epsilon = 1e-9

// MeanReversion fades large single-bar returns. The z-score of the current
// return against the trailing mean and standard deviation of returns decides
// the position: long below -threshold, short above +threshold.
type MeanReversion struct {
	lookback  int
	threshold float64
}

// NewMeanReversion creates a MeanReversion strategy over a window of
// lookback returns.
func NewMeanReversion(lookback int, threshold float64) *MeanReversion {
	return &MeanReversion{
		lookback:  lookback,
		threshold: threshold,
	}
}

// Name returns "meanrev".
func (m *MeanReversion) Name() string { return string(strategy.KindMeanRev) }

// Generate leaves a bar undefined when its return or either rolling
// statistic is undefined. Only the z-score is exported as a column; the
// engine's ret column already carries the close-to-close returns.
func (m *MeanReversion) Generate(series domain.Series) strategy.Output {
	ret := indicator.PctChange(series.Closes())
	mu := indicator.RollingMean(ret, m.lookback)
	sd := indicator.RollingStd(ret, m.lookback)

	z := make([]domain.NullFloat, len(ret))
	signals := make([]domain.NullSignal, len(ret))
	for i := range ret {
		if !ret[i].Valid || !mu[i].Valid || !sd[i].Valid {
			continue
		}
		z[i] = domain.Float((ret[i].Float64 - mu[i].Float64) / (sd[i].Float64 + Epsilon))
		signals[i] = domain.Signal(m.classify(z[i].Float64))
	}

	return strategy.Output{
		Signals: signals,
		Columns: []strategy.Column{
			{Name: "zscore", Values: z},
		},
	}
}

// classify maps a z-score to a position using strict inequalities, so a
// score exactly on the threshold is flat.
func (m *MeanReversion) classify(z float64) domain.Position {
	switch {
	case z < -m.threshold:
		return domain.Long
	case z > m.threshold:
		return domain.Short
	default:
		return domain.Flat
	}
}
