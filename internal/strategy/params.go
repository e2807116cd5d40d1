package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects one of the built-in signal generators.
type Kind string

const (
	KindSMA      Kind = "sma"
	KindMomentum Kind = "momentum"
	KindMeanRev  Kind = "meanrev"
	KindBreakout Kind = "breakout"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindSMA, KindMomentum, KindMeanRev, KindBreakout}

// Default parameter values.
const (
	DefaultSMAFast          = 10
	DefaultSMASlow          = 20
	DefaultMomentumLookback = 10
	DefaultMeanRevLookback  = 5
	DefaultMeanRevZ         = 1.0
	DefaultBreakoutLookback = 20
)

var (
	// ErrUnknownKind is returned for a strategy selector outside Kinds.
	ErrUnknownKind = errors.New("unknown strategy")
	// ErrInvalidParam is returned for out-of-range parameters.
	ErrInvalidParam = errors.New("invalid strategy parameter")
)

// ParseKind parses a strategy selector, ignoring case and surrounding space.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Params carries the strategy selector and the parameters of every variant.
// Only the fields belonging to Kind are read.
type Params struct {
	Kind             Kind     `json:"kind" yaml:"kind"`
	SMAFast          int      `json:"sma_fast,omitempty" yaml:"sma_fast"`
	SMASlow          int      `json:"sma_slow,omitempty" yaml:"sma_slow"`
	MomentumLookback int      `json:"momentum_lb,omitempty" yaml:"momentum_lb"`
	MeanRevLookback  int      `json:"meanrev_lb,omitempty" yaml:"meanrev_lb"`
	MeanRevZ         *float64 `json:"meanrev_z,omitempty" yaml:"meanrev_z"`
	BreakoutLookback int      `json:"breakout_lb,omitempty" yaml:"breakout_lb"`
}

// DefaultParams returns the default parameters with the SMA crossover
// selected.
func DefaultParams() Params {
	return Params{
		Kind:             KindSMA,
		SMAFast:          DefaultSMAFast,
		SMASlow:          DefaultSMASlow,
		MomentumLookback: DefaultMomentumLookback,
		MeanRevLookback:  DefaultMeanRevLookback,
		MeanRevZ:         Threshold(DefaultMeanRevZ),
		BreakoutLookback: DefaultBreakoutLookback,
	}
}

// Threshold returns a pointer to z for use as Params.MeanRevZ.
func Threshold(z float64) *float64 { return &z }

// MeanRevThreshold returns the mean reversion z-score threshold, or the
// default when none is set.
func (p Params) MeanRevThreshold() float64 {
	if p.MeanRevZ == nil {
		return DefaultMeanRevZ
	}
	return *p.MeanRevZ
}

// WithDefaults returns p with every zero-valued field replaced by its
// default. An empty Kind becomes KindSMA. MeanRevZ is defaulted only when
// nil, so an explicit zero threshold is kept.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.Kind == "" {
		p.Kind = d.Kind
	}
	if p.SMAFast == 0 {
		p.SMAFast = d.SMAFast
	}
	if p.SMASlow == 0 {
		p.SMASlow = d.SMASlow
	}
	if p.MomentumLookback == 0 {
		p.MomentumLookback = d.MomentumLookback
	}
	if p.MeanRevLookback == 0 {
		p.MeanRevLookback = d.MeanRevLookback
	}
	if p.MeanRevZ == nil {
		p.MeanRevZ = d.MeanRevZ
	}
	if p.BreakoutLookback == 0 {
		p.BreakoutLookback = d.BreakoutLookback
	}
	return p
}

// Validate checks the selector and the parameters used by it.
func (p Params) Validate() error {
	switch p.Kind {
	case KindSMA:
		if p.SMAFast <= 0 || p.SMASlow <= 0 {
			return fmt.Errorf("%w: sma windows must be positive (fast=%d, slow=%d)",
				ErrInvalidParam, p.SMAFast, p.SMASlow)
		}
	case KindMomentum:
		if p.MomentumLookback <= 0 {
			return fmt.Errorf("%w: momentum lookback must be positive (%d)",
				ErrInvalidParam, p.MomentumLookback)
		}
	case KindMeanRev:
		if p.MeanRevLookback <= 0 {
			return fmt.Errorf("%w: meanrev lookback must be positive (%d)",
				ErrInvalidParam, p.MeanRevLookback)
		}
		if z := p.MeanRevThreshold(); z < 0 {
			return fmt.Errorf("%w: meanrev z threshold must not be negative (%g)",
				ErrInvalidParam, z)
		}
	case KindBreakout:
		if p.BreakoutLookback <= 0 {
			return fmt.Errorf("%w: breakout lookback must be positive (%d)",
				ErrInvalidParam, p.BreakoutLookback)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
	return nil
}

// String returns a compact description such as "sma(10,20)".
func (p Params) String() string {
	switch p.Kind {
	case KindSMA:
		return fmt.Sprintf("sma(%d,%d)", p.SMAFast, p.SMASlow)
	case KindMomentum:
		return fmt.Sprintf("momentum(%d)", p.MomentumLookback)
	case KindMeanRev:
		return fmt.Sprintf("meanrev(%d,%g)", p.MeanRevLookback, p.MeanRevThreshold())
	case KindBreakout:
		return fmt.Sprintf("breakout(%d)", p.BreakoutLookback)
	default:
		return string(p.Kind)
	}
}
