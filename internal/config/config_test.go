package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"siglab/internal/strategy"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET",
		"ALPACA_BASE_URL", "ALPACA_DATA_URL", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"LOG_LEVEL", "SIGLAB_STRATEGY", "SIGLAB_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "siglab.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/siglab/data"
  sqlite_path: "/tmp/siglab/runs.db"
server:
  host: "0.0.0.0"
  port: 8081
  grpc_port: 9091
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "sip"
logging:
  level: "debug"
  format: "text"
data:
  csv_dir: "csv"
  symbols: ["AAPL", "MSFT"]
  start_date: "2020-01-01"
  end_date: "2020-12-31"
strategy:
  kind: meanrev
  meanrev_lb: 7
  meanrev_z: 1.5
output:
  csv: "out/run.csv"
  parquet: "out/run.parquet"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/siglab/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/siglab/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/siglab/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/siglab/runs.db")
	}

	// -- Server --
	if got := cfg.HTTPAddr(); got != "0.0.0.0:8081" {
		t.Errorf("HTTPAddr() = %q, want %q", got, "0.0.0.0:8081")
	}
	if got := cfg.GRPCAddr(); got != "0.0.0.0:9091" {
		t.Errorf("GRPCAddr() = %q, want %q", got, "0.0.0.0:9091")
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" || cfg.Alpaca.APISecret != "test-secret" {
		t.Errorf("Alpaca credentials = %q/%q, want test-key/test-secret", cfg.Alpaca.APIKey, cfg.Alpaca.APISecret)
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}
	if cfg.Alpaca.RateLimitPerMin != 200 {
		t.Errorf("Alpaca.RateLimitPerMin = %d, want 200", cfg.Alpaca.RateLimitPerMin)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want debug/text", cfg.Logging)
	}

	// -- Data --
	if len(cfg.Data.Symbols) != 2 || cfg.Data.Symbols[1] != "MSFT" {
		t.Errorf("Data.Symbols = %v, want [AAPL MSFT]", cfg.Data.Symbols)
	}
	start, end, err := cfg.DateRange()
	if err != nil {
		t.Fatalf("DateRange: %v", err)
	}
	if start.Year() != 2020 || end.Month() != 12 {
		t.Errorf("DateRange = %v..%v", start, end)
	}

	// -- Strategy --
	p := cfg.StrategyParams()
	if p.Kind != strategy.KindMeanRev {
		t.Errorf("Kind = %q, want %q", p.Kind, strategy.KindMeanRev)
	}
	if p.MeanRevLookback != 7 || p.MeanRevThreshold() != 1.5 {
		t.Errorf("meanrev = (%d, %v), want (7, 1.5)", p.MeanRevLookback, p.MeanRevThreshold())
	}
	if p.SMAFast != strategy.DefaultSMAFast {
		t.Errorf("SMAFast = %d, want default %d", p.SMAFast, strategy.DefaultSMAFast)
	}

	// -- Output --
	if cfg.Output.Parquet != "out/run.parquet" {
		t.Errorf("Output.Parquet = %q, want %q", cfg.Output.Parquet, "out/run.parquet")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/from/file"
alpaca:
  api_key: "file-key"
`)
	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("APCA_API_KEY_ID", "apca-key")
	t.Setenv("SIGLAB_STRATEGY", "Breakout")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/from/env")
	}
	if cfg.Alpaca.APIKey != "apca-key" {
		t.Errorf("Alpaca.APIKey = %q, want APCA_API_KEY_ID to win", cfg.Alpaca.APIKey)
	}
	if cfg.Strategy.Kind != strategy.KindBreakout {
		t.Errorf("Strategy.Kind = %q, want %q", cfg.Strategy.Kind, strategy.KindBreakout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional() returned error: %v", err)
	}
	if cfg.Storage.DataDir != "data" {
		t.Errorf("Storage.DataDir = %q, want default %q", cfg.Storage.DataDir, "data")
	}
	if cfg.Output.CSV != "out/equity.csv" {
		t.Errorf("Output.CSV = %q, want %q", cfg.Output.CSV, "out/equity.csv")
	}
	if !reflect.DeepEqual(cfg.StrategyParams(), strategy.DefaultParams()) {
		t.Errorf("StrategyParams() = %+v, want defaults", cfg.StrategyParams())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() on a missing file should fail")
	}
}

func TestLoadZeroThreshold(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "strategy:\n  kind: meanrev\n  meanrev_z: 0\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if got := cfg.StrategyParams().MeanRevThreshold(); got != 0 {
		t.Errorf("MeanRevThreshold() = %v, want 0", got)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "storage: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"unknown strategy", "strategy:\n  kind: pairs\n"},
		{"negative window", "strategy:\n  sma_fast: -3\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad date", "data:\n  start_date: \"2020/01/01\"\n"},
		{"reversed range", "data:\n  start_date: \"2021-01-01\"\n  end_date: \"2020-01-01\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("Load() returned error: %v", err)
			}
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestPath(t *testing.T) {
	clearEnv(t)
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("SIGLAB_CONFIG", "/etc/siglab.yaml")
	if got := Path(); got != "/etc/siglab.yaml" {
		t.Errorf("Path() = %q, want %q", got, "/etc/siglab.yaml")
	}
}
