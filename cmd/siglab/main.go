package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"siglab/internal/backtest"
	"siglab/internal/config"
	"siglab/internal/domain"
	"siglab/internal/loader"
	"siglab/internal/report"
	"siglab/internal/store"
	"siglab/internal/strategy"
	"siglab/internal/strategy/builtins"
	"siglab/internal/util"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("siglab: %v", err)
	}
}

// options holds the parsed command line.
type options struct {
	configPath string
	data       string
	symbol     string
	start      string
	end        string
	out        string
	parquet    string
	quiet      bool
	params     strategy.Params
	set        map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("siglab", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{set: map[string]bool{}}
	d := strategy.DefaultParams()
	var (
		kind string
		z    float64
	)
	fs.StringVar(&o.configPath, "config", config.Path(), "configuration file (optional)")
	fs.StringVar(&o.data, "data", "", "CSV file with Date, Open, High, Low, Close[, Volume] columns")
	fs.StringVar(&o.symbol, "symbol", "", "read bars for this symbol from the parquet store instead of --data")
	fs.StringVar(&o.start, "start", "", "first date (YYYY-MM-DD)")
	fs.StringVar(&o.end, "end", "", "last date (YYYY-MM-DD)")
	fs.StringVar(&kind, "strategy", string(d.Kind), "strategy: sma, momentum, meanrev or breakout")
	fs.IntVar(&o.params.SMAFast, "sma_fast", d.SMAFast, "fast SMA window")
	fs.IntVar(&o.params.SMASlow, "sma_slow", d.SMASlow, "slow SMA window")
	fs.IntVar(&o.params.MomentumLookback, "momentum_lb", d.MomentumLookback, "momentum lookback")
	fs.IntVar(&o.params.MeanRevLookback, "meanrev_lb", d.MeanRevLookback, "mean reversion lookback")
	fs.Float64Var(&z, "meanrev_z", d.MeanRevThreshold(), "mean reversion z-score threshold")
	fs.IntVar(&o.params.BreakoutLookback, "breakout_lb", d.BreakoutLookback, "breakout lookback")
	fs.StringVar(&o.out, "out", "", "annotated CSV output (default out/equity.csv)")
	fs.StringVar(&o.parquet, "parquet", "", "also write the annotated series as parquet")
	fs.BoolVar(&o.quiet, "quiet", false, "only print the Metrics line")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	o.params.MeanRevZ = strategy.Threshold(z)

	k, err := strategy.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	o.params.Kind = k
	return o, nil
}

// mergeConfig fills options the user did not set on the command line from
// cfg.
func (o *options) mergeConfig(cfg *config.Config) {
	p := cfg.StrategyParams()
	pick := func(name string, dst *int, v int) {
		if !o.set[name] {
			*dst = v
		}
	}
	if !o.set["strategy"] {
		o.params.Kind = p.Kind
	}
	pick("sma_fast", &o.params.SMAFast, p.SMAFast)
	pick("sma_slow", &o.params.SMASlow, p.SMASlow)
	pick("momentum_lb", &o.params.MomentumLookback, p.MomentumLookback)
	pick("meanrev_lb", &o.params.MeanRevLookback, p.MeanRevLookback)
	pick("breakout_lb", &o.params.BreakoutLookback, p.BreakoutLookback)
	if !o.set["meanrev_z"] {
		o.params.MeanRevZ = p.MeanRevZ
	}
	if o.out == "" {
		o.out = cfg.Output.CSV
	}
	if o.parquet == "" {
		o.parquet = cfg.Output.Parquet
	}
	if o.start == "" {
		o.start = cfg.Data.StartDate
	}
	if o.end == "" {
		o.end = cfg.Data.EndDate
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	o.mergeConfig(cfg)

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	start, end, err := parseRange(o.start, o.end)
	if err != nil {
		return err
	}

	series, err := loadSeries(ctx, o, cfg, start, end)
	if err != nil {
		return err
	}
	if err := series.Validate(); err != nil {
		return fmt.Errorf("%s: %w", series.Symbol, err)
	}

	rep, err := backtest.Evaluate(series, builtins.NewRegistry(), o.params, backtest.DefaultOptions())
	if err != nil {
		return err
	}

	if err := report.WriteCSV(o.out, rep); err != nil {
		return fmt.Errorf("writing %s: %w", o.out, err)
	}
	if o.parquet != "" {
		if err := report.WriteParquet(o.parquet, rep); err != nil {
			return fmt.Errorf("writing %s: %w", o.parquet, err)
		}
	}

	if cfg.Storage.SQLitePath != "" {
		if err := recordRun(ctx, cfg.Storage.SQLitePath, rep); err != nil {
			logger.Warn("recording run failed", "error", err)
		}
	}

	logger.Debug("backtest complete", "symbol", rep.Symbol, "strategy", o.params.String(), "bars", len(rep.Result.Rows), "out", o.out)

	fmt.Fprintln(stdout, report.FormatMetrics(rep.Result.Metrics))
	if !o.quiet {
		return report.PrintMetrics(stderr, rep.Symbol, o.params.String(), rep.Result.Metrics)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func parseRange(start, end string) (s, e time.Time, err error) {
	if start != "" {
		if s, err = time.Parse("2006-01-02", start); err != nil {
			return s, e, fmt.Errorf("--start: %w", err)
		}
	}
	if end != "" {
		if e, err = time.Parse("2006-01-02", end); err != nil {
			return s, e, fmt.Errorf("--end: %w", err)
		}
	}
	return s, e, nil
}

func loadSeries(ctx context.Context, o *options, cfg *config.Config, start, end time.Time) (domain.Series, error) {
	switch {
	case o.data != "":
		s, err := loader.LoadCSV(o.data)
		if err != nil {
			return domain.Series{}, err
		}
		return loader.Trim(s, start, end), nil
	case o.symbol != "":
		src := loader.NewStoreSource(store.NewParquetStore(cfg.Storage.DataDir))
		return src.Load(ctx, o.symbol, start, end)
	default:
		return domain.Series{}, errors.New("one of --data or --symbol is required")
	}
}

func recordRun(ctx context.Context, path string, rep *backtest.Report) error {
	runs, err := store.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer runs.Close()
	id, err := runs.SaveRun(ctx, backtest.NewRunRecord(rep))
	if err != nil {
		return err
	}
	rep.RunID = id
	slog.Info("run recorded", "id", id, "db", path)
	return nil
}
