// Package config loads run settings from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/go-scripts/econcal/internal/progress"
	"github.com/go-scripts/econcal/pkg/common"
)

// Prefix is prepended to every environment variable name
const Prefix = "ECONCAL"

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is read from ECONCAL_<FIELD> variables, e.g. ECONCAL_CHUNK_MONTHS or
// ECONCAL_CLICKHOUSE_HOST.
type Config struct {
	Start string `split_words:"true"`
	End   string `split_words:"true"`

	Workers           int           `split_words:"true" default:"3"`
	ChunkMonths       int           `split_words:"true" default:"1"`
	BaseURL           string        `split_words:"true" default:"https://www.forexfactory.com"`
	ReadyTimeout      time.Duration `split_words:"true" default:"15s"`
	NavigationTimeout time.Duration `split_words:"true" default:"30s"`
	ScriptTimeout     time.Duration `split_words:"true" default:"10s"`
	ScrollSettle      time.Duration `split_words:"true" default:"1500ms"`
	MaxScrollAttempts int           `split_words:"true" default:"10"`
	Politeness        time.Duration `split_words:"true" default:"1500ms"`
	Stagger           time.Duration `split_words:"true" default:"2s"`
	WarmupWait        time.Duration `split_words:"true" default:"4s"`
	Headless          bool          `split_words:"true" default:"true"`
	UserAgent         string        `split_words:"true"`
	ChromePath        string        `split_words:"true"`
	Progress          string        `split_words:"true" default:"auto"`

	Output     OutputConfig     `envconfig:"OUTPUT"`
	Log        LogConfig        `envconfig:"LOG"`
	Metrics    MetricsConfig    `envconfig:"METRICS"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Sentry     SentryConfig     `envconfig:"SENTRY"`
}

type OutputConfig struct {
	Dir    string `split_words:"true" default:"."`
	Prefix string `split_words:"true" default:"forex_factory_data"`
}

type LogConfig struct {
	Level  string `split_words:"true" default:"info"`
	Format string `split_words:"true" default:"text"`
}

type MetricsConfig struct {
	// File, when set, receives a Prometheus textfile after each run
	File string `split_words:"true"`
}

type ClickHouseConfig struct {
	Host      string `split_words:"true"`
	Port      int    `split_words:"true" default:"9000"`
	User      string `split_words:"true" default:"default"`
	Password  string `split_words:"true"`
	Database  string `split_words:"true" default:"default"`
	Table     string `split_words:"true" default:"economic_events"`
	BatchSize int    `split_words:"true" default:"500"`
}

// Enabled reports whether a ClickHouse export was configured
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port
func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type SentryConfig struct {
	DSN         string `split_words:"true"`
	Environment string `split_words:"true" default:"production"`
}

// Load reads envFile, if it exists, then the environment
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	return &cfg, nil
}

// Range parses the configured start and end dates
func (c *Config) Range() (common.DateRange, error) {
	if c.Start == "" || c.End == "" {
		return common.DateRange{}, fmt.Errorf("%w: start and end dates are required", common.ErrInvalidRange)
	}
	return common.ParseDateRange(c.Start, c.End)
}

// Validate checks the settings a crawl depends on
func (c *Config) Validate() error {
	if _, err := c.Range(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.ChunkMonths < 1 {
		return fmt.Errorf("%w: chunk months must be at least 1, got %d", ErrInvalidConfig, c.ChunkMonths)
	}
	for name, d := range map[string]time.Duration{
		"ready timeout":      c.ReadyTimeout,
		"navigation timeout": c.NavigationTimeout,
		"script timeout":     c.ScriptTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	if c.MaxScrollAttempts < 1 {
		return fmt.Errorf("%w: max scroll attempts must be at least 1", ErrInvalidConfig)
	}
	for name, d := range map[string]time.Duration{
		"scroll settle": c.ScrollSettle,
		"politeness":    c.Politeness,
		"stagger":       c.Stagger,
		"warm-up wait":  c.WarmupWait,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if _, err := progress.ParseMode(c.Progress); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ClickHouse.Enabled() && c.ClickHouse.BatchSize < 1 {
		return fmt.Errorf("%w: clickhouse batch size must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Crawl returns the crawler settings
func (c *Config) Crawl() common.Configuration {
	return common.Configuration{
		BaseURL:           c.BaseURL,
		WorkerCount:       c.Workers,
		ChunkMonths:       c.ChunkMonths,
		ReadyTimeout:      c.ReadyTimeout,
		NavigationTimeout: c.NavigationTimeout,
		ScriptTimeout:     c.ScriptTimeout,
		ScrollSettle:      c.ScrollSettle,
		MaxScrollAttempts: c.MaxScrollAttempts,
		Politeness:        c.Politeness,
		Stagger:           c.Stagger,
		WarmupWait:        c.WarmupWait,
		Headless:          c.Headless,
		UserAgent:         c.UserAgent,
		ChromePath:        c.ChromePath,
	}
}
