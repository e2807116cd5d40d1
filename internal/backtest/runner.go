package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"siglab/internal/domain"
	"siglab/internal/store"
	"siglab/internal/strategy"
)

// ErrNoBars is returned when the store holds no bars for a request.
var ErrNoBars = errors.New("no bars")

// Request selects a symbol, an optional date range, and a strategy.
type Request struct {
	Symbol string
	Start  time.Time // zero for unbounded
	End    time.Time // zero for unbounded
	Params strategy.Params
}

// Report is everything produced by one backtest: the strategy's intermediate
// columns, the annotated series, and the metrics.
type Report struct {
	Symbol  string
	Params  strategy.Params
	Columns []strategy.Column
	Result  Result
	RunID   int64 // set when the run was recorded
}

// Evaluate generates signals for s with the strategy selected by p and
// backtests them.
func Evaluate(s domain.Series, registry *strategy.Registry, p strategy.Params, opt Options) (*Report, error) {
	out, err := registry.Generate(s, p)
	if err != nil {
		return nil, err
	}
	res, err := RunWithOptions(s, out.Signals, opt)
	if err != nil {
		return nil, err
	}
	return &Report{
		Symbol:  s.Symbol,
		Params:  p,
		Columns: out.Columns,
		Result:  res,
	}, nil
}

// Runner replays stored bar data through a strategy and computes performance
// metrics, optionally recording each run.
type Runner struct {
	bars     store.BarStore
	runs     store.RunStore
	registry *strategy.Registry
	opts     Options
	log      *slog.Logger
}

// NewRunner creates a Runner that reads bars from the given store and looks
// up strategies in the provided registry. runs may be nil to skip recording.
func NewRunner(barStore store.BarStore, runs store.RunStore, registry *strategy.Registry, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		bars:     barStore,
		runs:     runs,
		registry: registry,
		opts:     DefaultOptions(),
		log:      log.With("component", "backtest"),
	}
}

// Registry returns the strategy registry used by the runner.
func (r *Runner) Registry() *strategy.Registry { return r.registry }

// Run loads bars for req.Symbol, generates signals, and backtests them.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}

	bars, err := r.bars.ReadBars(ctx, symbol, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoBars, symbol)
	}
	series := domain.NewSeries(symbol, bars)
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("bars for %s: %w", symbol, err)
	}

	rep, err := Evaluate(series, r.registry, req.Params, r.opts)
	if err != nil {
		return nil, err
	}

	m := rep.Result.Metrics
	r.log.Info("backtest complete",
		"symbol", symbol,
		"strategy", req.Params.String(),
		"bars", series.Len(),
		"total_return", m.TotalReturn,
		"cagr", m.CAGR,
		"max_drawdown", m.MaxDrawdown,
		"sharpe", m.Sharpe,
	)

	if r.runs != nil {
		id, err := r.runs.SaveRun(ctx, NewRunRecord(rep))
		if err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
		rep.RunID = id
	}
	return rep, nil
}

// RunAll runs every request with at most workers concurrent backtests.
// Reports are returned in request order; the first error is returned after
// all workers finish.
func (r *Runner) RunAll(ctx context.Context, reqs []Request, workers int) ([]*Report, error) {
	if workers <= 0 {
		workers = 1
	}
	reports := make([]*Report, len(reqs))
	errs := make([]error, len(reqs))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range reqs {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			reports[i], errs[i] = r.Run(ctx, reqs[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return reports, fmt.Errorf("%s: %w", reqs[i].Symbol, err)
		}
	}
	return reports, nil
}

// NewRunRecord summarizes a report for the run store.
func NewRunRecord(rep *Report) *store.RunRecord {
	params, _ := json.Marshal(rep.Params)
	rec := &store.RunRecord{
		Symbol:      rep.Symbol,
		Strategy:    string(rep.Params.Kind),
		Params:      string(params),
		Bars:        len(rep.Result.Rows),
		TotalReturn: rep.Result.Metrics.TotalReturn,
		CAGR:        rep.Result.Metrics.CAGR,
		MaxDrawdown: rep.Result.Metrics.MaxDrawdown,
		Sharpe:      rep.Result.Metrics.Sharpe,
	}
	if n := len(rep.Result.Rows); n > 0 {
		rec.FirstDate = rep.Result.Rows[0].Bar.Date
		rec.LastDate = rep.Result.Rows[n-1].Bar.Date
	}
	return rec
}
