package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"siglab/internal/api"
	"siglab/internal/backtest"
	"siglab/internal/config"
	"siglab/internal/store"
	"siglab/internal/strategy/builtins"
	"siglab/internal/util"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	bars := store.NewParquetStore(cfg.Storage.DataDir)

	var runs store.RunStore
	if cfg.Storage.SQLitePath != "" {
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening run store: %v", err)
		}
		defer sq.Close()
		runs = sq
	}

	runner := backtest.NewRunner(bars, runs, builtins.NewRegistry(), logger)
	srv := api.NewServer(cfg, runner, bars, runs, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting siglab-server", "http", cfg.HTTPAddr(), "grpc", cfg.GRPCAddr(), "dataDir", cfg.Storage.DataDir)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
	}
}
