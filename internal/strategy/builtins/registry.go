package builtins

import "siglab/internal/strategy"

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry) {
	r.Register(strategy.KindSMA, func(p strategy.Params) strategy.Strategy {
		return NewSMACross(p.SMAFast, p.SMASlow)
	})
	r.Register(strategy.KindMomentum, func(p strategy.Params) strategy.Strategy {
		return NewMomentum(p.MomentumLookback)
	})
	r.Register(strategy.KindMeanRev, func(p strategy.Params) strategy.Strategy {
		return NewMeanReversion(p.MeanRevLookback, p.MeanRevThreshold())
	})
	r.Register(strategy.KindBreakout, func(p strategy.Params) strategy.Strategy {
		return NewBreakout(p.BreakoutLookback)
	})
}

// NewRegistry returns a Registry holding all built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
