// Package backtest turns a position signal into per-bar strategy returns, an
// equity curve, and summary performance metrics.
//
// Bars are assumed to be daily: returns are annualized with a fixed
// trading-days-per-year factor and no frequency conversion is attempted.
package backtest

import (
	"errors"
	"fmt"
	"math"

	"siglab/internal/domain"
	"siglab/internal/indicator"
)

const (
	// TradingDaysPerYear annualizes per-bar statistics.
	TradingDaysPerYear = 252

	// Epsilon is added to the return standard deviation in the Sharpe ratio.
	Epsilon = 1e-9
)

// ErrLengthMismatch is returned when the signal slice is not aligned with
// the series.
var ErrLengthMismatch = errors.New("signal length does not match series length")

// Options holds the numeric constants used by the engine. Tests override
// them to check formulas on short synthetic series.
type Options struct {
	TradingDays float64
	Epsilon     float64
}

// DefaultOptions returns TradingDaysPerYear and Epsilon.
func DefaultOptions() Options {
	return Options{
		TradingDays: TradingDaysPerYear,
		Epsilon:     Epsilon,
	}
}

// Row is one bar of the annotated output series.
type Row struct {
	Bar      domain.Bar
	Signal   domain.NullSignal
	Ret      float64 // close-to-close return; 0 on the first bar
	StratRet float64 // previous bar's position times Ret
	Equity   float64 // compounded growth of 1.0 through this bar
}

// Metrics is the summary of a single backtest run. CAGR can be NaN when the
// equity curve ends below zero.
type Metrics struct {
	TotalReturn float64 `json:"TotalReturn"`
	CAGR        float64 `json:"CAGR"`
	MaxDrawdown float64 `json:"MaxDrawdown"`
	Sharpe      float64 `json:"Sharpe"`
}

// Result is the annotated series plus its metrics.
type Result struct {
	Rows    []Row
	Metrics Metrics
}

// FinalEquity returns the equity of the last bar, or 1 for an empty result.
func (r Result) FinalEquity() float64 {
	if len(r.Rows) == 0 {
		return 1
	}
	return r.Rows[len(r.Rows)-1].Equity
}

// Equity returns the equity curve.
func (r Result) Equity() []float64 {
	out := make([]float64, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Equity
	}
	return out
}

// StrategyReturns returns the per-bar strategy returns.
func (r Result) StrategyReturns() []float64 {
	out := make([]float64, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.StratRet
	}
	return out
}

// Run backtests signals against s with DefaultOptions.
func Run(s domain.Series, signals []domain.NullSignal) (Result, error) {
	return RunWithOptions(s, signals, DefaultOptions())
}

// RunWithOptions backtests signals against s.
//
// The position held during bar t is the signal of bar t-1, so a signal never
// earns the return of the bar that produced it. Undefined signals, and the
// missing signal before the first bar, count as flat.
func RunWithOptions(s domain.Series, signals []domain.NullSignal, opt Options) (Result, error) {
	if len(signals) != s.Len() {
		return Result{}, fmt.Errorf("%w: %d signals for %d bars", ErrLengthMismatch, len(signals), s.Len())
	}

	rows := make([]Row, s.Len())
	equity := 1.0
	for t, bar := range s.Bars {
		var ret, strat float64
		if t > 0 {
			ret = bar.Close/s.Bars[t-1].Close - 1
			strat = float64(signals[t-1].OrFlat()) * ret
		}
		equity *= 1 + strat
		rows[t] = Row{
			Bar:      bar,
			Signal:   signals[t],
			Ret:      ret,
			StratRet: strat,
			Equity:   equity,
		}
	}

	res := Result{Rows: rows}
	res.Metrics = ComputeMetrics(res.StrategyReturns(), res.Equity(), opt)
	return res, nil
}

// ComputeMetrics derives the summary metrics from aligned strategy returns
// and equity values. An empty input yields all-zero metrics.
func ComputeMetrics(stratRet, equity []float64, opt Options) Metrics {
	n := len(equity)
	if n == 0 {
		return Metrics{}
	}
	final := equity[n-1]

	return Metrics{
		TotalReturn: final - 1,
		CAGR:        math.Pow(final, opt.TradingDays/float64(n)) - 1,
		MaxDrawdown: MaxDrawdown(equity),
		Sharpe:      Sharpe(stratRet, opt),
	}
}

// MaxDrawdown returns the most negative fractional distance of equity from
// its running peak. It is zero when equity never falls below a prior peak.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	var dd float64
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if d := e/peak - 1; d < dd {
			dd = d
		}
	}
	return dd
}

// Sharpe returns the annualized ratio of mean to sample standard deviation
// of per-bar returns. Fewer than two returns have no deviation and are
// treated as zero deviation.
func Sharpe(returns []float64, opt Options) float64 {
	if len(returns) == 0 {
		return 0
	}
	mu := indicator.Mean(returns)
	sd := indicator.SampleStd(returns)
	return mu / (sd + opt.Epsilon) * math.Sqrt(opt.TradingDays)
}
