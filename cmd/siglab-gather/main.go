package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"siglab/internal/config"
	"siglab/internal/gather"
	"siglab/internal/loader"
	"siglab/internal/store"
	"siglab/internal/util"
)

func main() {
	csvDir := flag.String("csv", "", "import every <SYMBOL>.csv in this directory instead of calling Alpaca")
	symbols := flag.String("symbols", "", "comma-separated symbols (default: data.symbols from config)")
	workers := flag.Int("workers", 4, "concurrent symbol fetches")
	flag.Parse()

	cfg, err := config.LoadOptional(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ps := store.NewParquetStore(cfg.Storage.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var g gather.Gatherer
	if *csvDir != "" {
		g = gather.NewCSVImporter(*csvDir, ps, logger)
	} else {
		syms := cfg.Data.Symbols
		if *symbols != "" {
			syms = strings.Split(*symbols, ",")
		}
		if len(syms) == 0 {
			log.Fatalf("no symbols: set data.symbols or --symbols")
		}
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			log.Fatalf("alpaca credentials required (APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
		}
		start, _, _ := cfg.DateRange()
		if start.IsZero() {
			start = time.Now().UTC().AddDate(-5, 0, 0).Truncate(24 * time.Hour)
		}

		var endDate gather.EndDateFunc
		if cfg.Alpaca.BaseURL != "" {
			endDate = func() (time.Time, error) {
				return gather.LatestFinishedTradingDay(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
			}
		}

		src := loader.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed, cfg.Alpaca.RateLimitPerMin)
		g = gather.NewDailyBarGatherer(src, ps, gather.DailyOptions{
			Symbols:    syms,
			Start:      start,
			EndDate:    endDate,
			MaxWorkers: *workers,
			StateDir:   filepath.Join(cfg.Storage.DataDir, "daily"),
		}, logger)
	}

	logger.Info("starting siglab-gather", "gatherer", g.Name(), "dataDir", cfg.Storage.DataDir)
	if err := g.Run(ctx); err != nil {
		log.Fatalf("%s: %v", g.Name(), err)
	}
}
