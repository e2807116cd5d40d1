package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"siglab/internal/loader"
	"siglab/internal/store"
)

var (
	_ Gatherer = (*DailyBarGatherer)(nil)
	_ Gatherer = (*CSVImporter)(nil)
)

// ---------------------------------------------------------------------------
// DailyBarGatherer: incremental daily bars for a symbol list.
// ---------------------------------------------------------------------------

// DailyBarGatherer pulls daily bars for a fixed symbol list from a Source
// (normally loader.AlpacaSource) into a BarStore. Each symbol is fetched
// from the day after its last stored bar, so repeated runs only add new
// sessions.
type DailyBarGatherer struct {
	source     loader.Source
	store      store.BarStore
	symbols    []string
	start      time.Time
	endDate    EndDateFunc
	maxWorkers int
	stateDir   string
	log        *slog.Logger
}

// DailyOptions configures a DailyBarGatherer.
type DailyOptions struct {
	Symbols    []string
	Start      time.Time   // first session for symbols with no stored bars
	EndDate    EndDateFunc // nil uses PreviousWeekday
	MaxWorkers int         // default 4
	StateDir   string      // progress files; empty disables resume tracking
}

// NewDailyBarGatherer creates a DailyBarGatherer.
func NewDailyBarGatherer(src loader.Source, s store.BarStore, opts DailyOptions, log *slog.Logger) *DailyBarGatherer {
	if log == nil {
		log = slog.Default()
	}
	if opts.EndDate == nil {
		opts.EndDate = func() (time.Time, error) { return PreviousWeekday(time.Now()), nil }
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	symbols := make([]string, 0, len(opts.Symbols))
	for _, s := range opts.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return &DailyBarGatherer{
		source:     src,
		store:      s,
		symbols:    symbols,
		start:      opts.Start,
		endDate:    opts.EndDate,
		maxWorkers: opts.MaxWorkers,
		stateDir:   opts.StateDir,
		log:        log.With("gatherer", "daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "daily" }

// Run fetches new daily bars for every symbol and writes them to the store.
// It is idempotent within a day when a state directory is configured.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	end, err := g.endDate()
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	endStr := end.Format("2006-01-02")

	var tracker *progressTracker
	if g.stateDir != "" {
		if tracker, err = newProgressTracker(g.stateDir); err != nil {
			return fmt.Errorf("creating progress tracker: %w", err)
		}
		defer tracker.Close()

		if tracker.IsCompleted(endStr) {
			g.log.Info("already completed", "endDate", endStr)
			return nil
		}
		if last := tracker.LastCompleted(); last != "" && last != endStr {
			if err := tracker.Reset(); err != nil {
				return fmt.Errorf("resetting tracker: %w", err)
			}
		}
	}

	var remaining []string
	for _, sym := range g.symbols {
		if tracker != nil && tracker.IsTriedEmpty(sym) {
			continue
		}
		remaining = append(remaining, sym)
	}
	g.log.Info("starting daily gather", "endDate", endStr, "symbols", len(g.symbols), "remaining", len(remaining))

	symCh := make(chan string, len(remaining))
	for _, sym := range remaining {
		symCh <- sym
	}
	close(symCh)

	var (
		wg       sync.WaitGroup
		written  atomic.Int64
		empty    atomic.Int64
		failed   atomic.Int64
		runStart = time.Now()
	)
	for w := 0; w < min(g.maxWorkers, len(remaining)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range symCh {
				if ctx.Err() != nil {
					return
				}
				n, err := g.gatherSymbol(ctx, sym, end)
				switch {
				case errors.Is(err, loader.ErrEmpty):
					empty.Add(1)
					if tracker != nil {
						if err := tracker.MarkEmpty(sym); err != nil {
							g.log.Error("marking empty failed", "symbol", sym, "err", err)
						}
					}
				case err != nil:
					failed.Add(1)
					g.log.Error("gather failed", "symbol", sym, "err", err)
				default:
					written.Add(int64(n))
				}
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d symbols failed", n, len(remaining))
	}
	if tracker != nil {
		if err := tracker.MarkCompleted(endStr); err != nil {
			return fmt.Errorf("marking completed: %w", err)
		}
	}

	g.log.Info("complete",
		"bars", written.Load(),
		"empty", empty.Load(),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return nil
}

// gatherSymbol fetches bars after the last stored one up to end and writes
// them. It returns the number of bars written, or loader.ErrEmpty when the
// symbol has nothing new.
func (g *DailyBarGatherer) gatherSymbol(ctx context.Context, symbol string, end time.Time) (int, error) {
	from := g.start
	existing, err := g.store.ReadBars(ctx, symbol, time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("reading stored bars: %w", err)
	}
	if n := len(existing); n > 0 {
		from = existing[n-1].Date.AddDate(0, 0, 1)
	}
	if !from.IsZero() && from.After(end) {
		g.log.Debug("up to date", "symbol", symbol)
		return 0, nil
	}

	// End of day so the final session is included.
	series, err := g.source.Load(ctx, symbol, from, end.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		return 0, err
	}
	if err := g.store.WriteBars(ctx, series.Bars); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	g.log.Info("symbol done", "symbol", symbol, "bars", len(series.Bars))
	return len(series.Bars), nil
}

// ---------------------------------------------------------------------------
// CSVImporter: bulk-load CSV files into the store.
// ---------------------------------------------------------------------------

// CSVImporter copies every <SYMBOL>.csv in a directory into a BarStore.
type CSVImporter struct {
	source *loader.CSVSource
	store  store.BarStore
	log    *slog.Logger
}

// NewCSVImporter creates a CSVImporter reading from dir.
func NewCSVImporter(dir string, s store.BarStore, log *slog.Logger) *CSVImporter {
	if log == nil {
		log = slog.Default()
	}
	return &CSVImporter{
		source: loader.NewCSVSource(dir),
		store:  s,
		log:    log.With("gatherer", "csv"),
	}
}

// Name returns the gatherer identifier.
func (c *CSVImporter) Name() string { return "csv" }

// Run imports every CSV file. Bars already stored for the same date are
// replaced.
func (c *CSVImporter) Run(ctx context.Context) error {
	symbols, err := c.source.Symbols()
	if err != nil {
		return fmt.Errorf("listing csv files: %w", err)
	}
	for _, sym := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		series, err := c.source.Load(ctx, sym, time.Time{}, time.Time{})
		if err != nil {
			return fmt.Errorf("loading %s: %w", sym, err)
		}
		if err := c.store.WriteBars(ctx, series.Bars); err != nil {
			return fmt.Errorf("writing %s: %w", sym, err)
		}
		c.log.Info("imported", "symbol", sym, "bars", len(series.Bars))
	}
	return nil
}
