package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/pointrun/internal/backtest/sim"
	"github.com/sawpanic/pointrun/internal/domain/scoring"
	"github.com/sawpanic/pointrun/internal/domain/signals"
	"github.com/sawpanic/pointrun/internal/infrastructure/db"
	monitor "github.com/sawpanic/pointrun/internal/interfaces/http"
	"github.com/sawpanic/pointrun/internal/market"
	"github.com/sawpanic/pointrun/internal/market/binance"
	"github.com/sawpanic/pointrun/internal/market/cache"
	"github.com/sawpanic/pointrun/internal/market/clickhouse"
	"github.com/sawpanic/pointrun/internal/tune/grid"
)

// Data sources
const (
	SourceBinance    = "binance"
	SourceCSV        = "csv"
	SourceClickHouse = "clickhouse"
)

// Environment overrides applied after the YAML file
const (
	EnvBinanceBaseURL = "BINANCE_BASE_URL"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvPostgresDSN    = "PG_DSN"
	EnvClickHouseAddr = "CLICKHOUSE_ADDR"
	EnvSymbols        = "POINTRUN_SYMBOLS"
	EnvInterval       = "POINTRUN_INTERVAL"
)

// Config represents the complete pointrun configuration
type Config struct {
	Data       DataConfig           `yaml:"data"`
	Provider   binance.Config       `yaml:"provider"`
	Cache      CacheConfig          `yaml:"cache"`
	ClickHouse clickhouse.Config    `yaml:"clickhouse"`
	Postgres   db.Config            `yaml:"postgres"`
	Strategy   StrategyConfig       `yaml:"strategy"`
	Simulation sim.Config           `yaml:"simulation"`
	Optimizer  OptimizerConfig      `yaml:"optimizer"`
	Monitor    monitor.ServerConfig `yaml:"monitor"`
}

// DataConfig selects where bars come from and which window is evaluated
type DataConfig struct {
	Source     string   `yaml:"source"` // binance, csv or clickhouse
	Symbols    []string `yaml:"symbols"`
	Interval   string   `yaml:"interval"`
	Start      string   `yaml:"start"` // YYYY-MM-DD or RFC3339, UTC
	End        string   `yaml:"end"`
	CSVDir     string   `yaml:"csv_dir"`
	Mode       string   `yaml:"mode"` // recompute or precomputed
	MinPeriods int      `yaml:"min_periods"`
}

// CacheConfig enables the redis bar cache
type CacheConfig struct {
	Enabled      bool `yaml:"enabled"`
	cache.Config `yaml:",inline"`
}

// StrategyConfig is the parameter set used by backtest, plus the scan profile
type StrategyConfig struct {
	LongThreshold  float64        `yaml:"long_threshold"`
	ShortThreshold float64        `yaml:"short_threshold"`
	Scoring        scoring.Config `yaml:"scoring"`
	Scan           scoring.Config `yaml:"scan"`
}

// OptimizerConfig holds the search grid and its limits
type OptimizerConfig struct {
	Grid              grid.Grid     `yaml:"grid"`
	MaxAvgHoldingDays float64       `yaml:"max_avg_holding_days"`
	Parallelism       int           `yaml:"parallelism"` // 0 means runtime.NumCPU()
	ProgressEvery     time.Duration `yaml:"progress_every"`
}

// Default returns a configuration that runs without any file
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:     SourceBinance,
			Symbols:    []string{"BTCUSDT", "ETHUSDT"},
			Interval:   "1h",
			Start:      "2024-01-01",
			End:        "2024-06-01",
			CSVDir:     "data",
			Mode:       signals.Recompute.String(),
			MinPeriods: signals.DefaultMinPeriods,
		},
		Provider: binance.DefaultConfig(),
		Cache: CacheConfig{
			Config: cache.Config{Addr: "localhost:6379", TTL: 24 * time.Hour},
		},
		ClickHouse: clickhouse.DefaultConfig(),
		Postgres:   db.DefaultConfig(),
		Strategy: StrategyConfig{
			LongThreshold:  2,
			ShortThreshold: 0.5,
			Scoring:        scoring.DefaultConfig(),
			Scan:           scoring.ScanProfile(),
		},
		Simulation: sim.DefaultConfig(),
		Optimizer: OptimizerConfig{
			Grid:              grid.DefaultGrid(),
			MaxAvgHoldingDays: grid.DefaultMaxAvgHoldingDays,
			ProgressEvery:     5 * time.Second,
		},
		Monitor: monitor.DefaultServerConfig(),
	}
}

// Load reads a YAML file over the defaults; an empty path returns the defaults
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// LoadEnv loads a .env file into the process environment.
// A missing default ".env" is not an error; a missing explicit file is.
func LoadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := nonEmpty(lookup, EnvBinanceBaseURL); ok {
		c.Provider.BaseURL = v
	}
	if v, ok := nonEmpty(lookup, EnvRedisAddr); ok {
		c.Cache.Addr = v
		c.Cache.Enabled = true
	}
	if v, ok := nonEmpty(lookup, EnvPostgresDSN); ok {
		c.Postgres.DSN = v
		c.Postgres.Enabled = true
	}
	if v, ok := nonEmpty(lookup, EnvClickHouseAddr); ok {
		c.ClickHouse.Addr = v
	}
	if v, ok := nonEmpty(lookup, EnvSymbols); ok {
		c.Data.Symbols = SplitSymbols(v)
	}
	if v, ok := nonEmpty(lookup, EnvInterval); ok {
		c.Data.Interval = v
	}
}

func nonEmpty(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// SplitSymbols parses a comma separated symbol list, upper-casing and dropping blanks
func SplitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Range parses the evaluation window
func (d DataConfig) Range() (time.Time, time.Time, error) {
	start, err := ParseTime(d.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("data.start: %w", err)
	}
	end, err := ParseTime(d.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("data.end: %w", err)
	}
	return start, end, nil
}

// ParseTime accepts a date (YYYY-MM-DD) or an RFC3339 timestamp, in UTC
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC3339", s)
	}
	return t.UTC(), nil
}

// Validate ensures the configuration is valid and consistent
func (c *Config) Validate() error {
	switch c.Data.Source {
	case SourceBinance, SourceClickHouse:
	case SourceCSV:
		if c.Data.CSVDir == "" {
			return errors.New("data.csv_dir is required for the csv source")
		}
	default:
		return fmt.Errorf("unknown data.source %q", c.Data.Source)
	}

	if len(c.Data.Symbols) == 0 {
		return errors.New("data.symbols must not be empty")
	}
	if _, err := market.ParseInterval(c.Data.Interval); err != nil {
		return fmt.Errorf("data.interval: %w", err)
	}
	start, end, err := c.Data.Range()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("data.start %s must be before data.end %s", c.Data.Start, c.Data.End)
	}
	if _, err := signals.ParseMode(c.Data.Mode); err != nil {
		return fmt.Errorf("data.mode: %w", err)
	}
	if c.Data.MinPeriods < 0 {
		return errors.New("data.min_periods must be non-negative")
	}

	if c.Strategy.LongThreshold <= c.Strategy.ShortThreshold {
		return fmt.Errorf("strategy.long_threshold %v must exceed short_threshold %v",
			c.Strategy.LongThreshold, c.Strategy.ShortThreshold)
	}
	if err := c.Strategy.Scoring.Validate(); err != nil {
		return fmt.Errorf("strategy.scoring: %w", err)
	}
	if err := c.Strategy.Scan.Validate(); err != nil {
		return fmt.Errorf("strategy.scan: %w", err)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	g := c.Optimizer.Grid
	if len(g.LongThresholds) == 0 || len(g.ShortThresholds) == 0 {
		return errors.New("optimizer.grid threshold axes must not be empty")
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("optimizer.grid: %w", err)
	}
	if c.Optimizer.MaxAvgHoldingDays <= 0 {
		return errors.New("optimizer.max_avg_holding_days must be positive")
	}
	if c.Optimizer.Parallelism < 0 {
		return errors.New("optimizer.parallelism must be non-negative")
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.addr is required when the cache is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required when postgres is enabled")
	}
	if c.Monitor.Port <= 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("monitor.port %d out of range", c.Monitor.Port)
	}

	return nil
}
