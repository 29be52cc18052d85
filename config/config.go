package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/autolevel/confidence"
	"github.com/rustyeddy/autolevel/market"
	"github.com/rustyeddy/autolevel/risk"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "AUTOLEVEL_"

// Config represents the complete service configuration
type Config struct {
	Account    AccountConfig         `json:"account" yaml:"account"`
	Risk       risk.Config           `json:"risk" yaml:"risk"`
	Policy     risk.Policy           `json:"policy" yaml:"policy"`
	Confidence confidence.Thresholds `json:"confidence" yaml:"confidence"`
	Server     ServerConfig          `json:"server" yaml:"server"`
	Feed       FeedConfig            `json:"feed" yaml:"feed"`
	Journal    JournalConfig         `json:"journal" yaml:"journal"`
	Logging    LoggingConfig         `json:"logging" yaml:"logging"`
}

// AccountConfig seeds the paper account
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

type ServerConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	RatePerSec   int    `json:"rate_per_sec" yaml:"rate_per_sec"`
	Burst        int    `json:"burst" yaml:"burst"`
	Deviation    int    `json:"deviation" yaml:"deviation"`
	ShutdownWait string `json:"shutdown_wait" yaml:"shutdown_wait"`
}

// FeedConfig configures the optional quote poller. An empty URL means
// ticks are only pushed through the API.
type FeedConfig struct {
	Mode       string   `json:"mode" yaml:"mode"` // "poll" or "stream"
	URL        string   `json:"url,omitempty" yaml:"url,omitempty"`
	Token      string   `json:"token,omitempty" yaml:"token,omitempty"`
	Symbols    []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Interval   string   `json:"interval" yaml:"interval"`
	RatePerSec int      `json:"rate_per_sec" yaml:"rate_per_sec"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	LevelsFile string `json:"levels_file,omitempty" yaml:"levels_file,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// PollInterval parses the feed interval
func (f FeedConfig) PollInterval() (time.Duration, error) {
	if f.Interval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(f.Interval)
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(s.ShutdownWait)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// LoadFromFile loads configuration from a file (JSON or YAML), then
// applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads a dotenv file into the process environment. A
// missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from AUTOLEVEL_* variables.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}

	str("SERVER_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Logging.Level)
	str("FEED_MODE", &c.Feed.Mode)
	str("FEED_URL", &c.Feed.URL)
	str("FEED_TOKEN", &c.Feed.Token)
	str("JOURNAL_DB", &c.Journal.DBPath)
	num("RISK_DEFAULT_PERCENT", &c.Risk.DefaultRiskPercent)
	num("RISK_MAX_PERCENT", &c.Risk.MaxRiskPercent)
	num("RISK_RR_TARGET", &c.Risk.RRTarget)
	num("ACCOUNT_BALANCE", &c.Account.Balance)

	if v, ok := os.LookupEnv(EnvPrefix + "SLTP_STRATEGY"); ok && v != "" {
		s, err := risk.ParseStrategy(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			c.Risk.Strategy = s
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "FEED_SYMBOLS"); ok && v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	return errors.Join(errs...)
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Policy.MinRR < 0 || c.Policy.MaxRiskPercent < 0 {
		return fmt.Errorf("policy limits must not be negative")
	}
	if err := c.Confidence.Validate(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.Deviation < 0 {
		return fmt.Errorf("server.deviation must not be negative")
	}
	switch c.Feed.Mode {
	case "", "poll", "stream":
	default:
		return fmt.Errorf("feed.mode must be 'poll' or 'stream'")
	}
	if c.Feed.URL != "" {
		if len(c.Feed.Symbols) == 0 {
			return fmt.Errorf("feed.symbols required when feed.url is set")
		}
		for _, s := range c.Feed.Symbols {
			if _, ok := market.Lookup(s); !ok {
				return fmt.Errorf("unknown instrument: %s", s)
			}
		}
	}
	if _, err := c.Feed.PollInterval(); err != nil {
		return fmt.Errorf("feed.interval: %w", err)
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "csv":
		if c.Journal.OrdersFile == "" || c.Journal.LevelsFile == "" {
			return fmt.Errorf("journal orders_file and levels_file required for CSV type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:       "PAPER-001",
			Currency: "USD",
			Balance:  10000,
		},
		Risk:       risk.DefaultConfig(),
		Policy:     risk.DefaultPolicy(),
		Confidence: confidence.DefaultThresholds(),
		Server: ServerConfig{
			Addr:         ":8088",
			RatePerSec:   20,
			Burst:        40,
			Deviation:    10,
			ShutdownWait: "5s",
		},
		Feed: FeedConfig{
			Mode:       "poll",
			Interval:   "1s",
			RatePerSec: 5,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./autolevel.sqlite",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
