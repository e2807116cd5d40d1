package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"siglab/internal/strategy"
)

// DefaultPath is used when SIGLAB_CONFIG is unset.
const DefaultPath = "config/siglab.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for siglab.
type Config struct {
	Storage  Storage         `yaml:"storage"`
	Server   Server          `yaml:"server"`
	Alpaca   Alpaca          `yaml:"alpaca"`
	Logging  Logging         `yaml:"logging"`
	Data     Data            `yaml:"data"`
	Strategy strategy.Params `yaml:"strategy"`
	Output   Output          `yaml:"output"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	BaseURL         string `yaml:"base_url"` // trading API, used for the market calendar
	DataURL         string `yaml:"data_url"`
	Feed            string `yaml:"feed"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Data selects the bars to backtest or gather.
type Data struct {
	CSVDir    string   `yaml:"csv_dir"`
	Symbols   []string `yaml:"symbols"`
	StartDate string   `yaml:"start_date"` // YYYY-MM-DD, empty for unbounded
	EndDate   string   `yaml:"end_date"`
}

// Output controls where backtest results are written.
type Output struct {
	CSV     string `yaml:"csv"`
	Parquet string `yaml:"parquet"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the configuration file path from SIGLAB_CONFIG, falling back
// to DefaultPath.
func Path() string {
	if v := os.Getenv("SIGLAB_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// LoadOptional behaves like Load but returns the default configuration,
// with environment overrides applied, when path does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		applyEnvOverrides(cfg)
		applyDefaults(cfg)
		return cfg, nil
	}
	return cfg, err
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("SIGLAB_STRATEGY"); v != "" {
		cfg.Strategy.Kind = strategy.Kind(strings.ToLower(v))
	}

	// Standard Alpaca env vars take precedence.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Output.CSV == "" {
		cfg.Output.CSV = "out/equity.csv"
	}
	cfg.Strategy = cfg.Strategy.WithDefaults()
}

// ---------------------------------------------------------------------------
// Validation and accessors
// ---------------------------------------------------------------------------

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	if _, _, err := c.DateRange(); err != nil {
		return err
	}
	return nil
}

// StrategyParams returns the configured strategy parameters.
func (c *Config) StrategyParams() strategy.Params {
	return c.Strategy.WithDefaults()
}

// DateRange parses data.start_date and data.end_date. Empty values yield
// zero times.
func (c *Config) DateRange() (start, end time.Time, err error) {
	if c.Data.StartDate != "" {
		if start, err = time.Parse("2006-01-02", c.Data.StartDate); err != nil {
			return start, end, fmt.Errorf("data.start_date: %w", err)
		}
	}
	if c.Data.EndDate != "" {
		if end, err = time.Parse("2006-01-02", c.Data.EndDate); err != nil {
			return start, end, fmt.Errorf("data.end_date: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("data.end_date %s before start_date %s", c.Data.EndDate, c.Data.StartDate)
	}
	return start, end, nil
}

// HTTPAddr returns the host:port the HTTP server listens on.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr returns the host:port the gRPC server listens on.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
