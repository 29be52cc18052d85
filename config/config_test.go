package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/autolevel/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 10000.0, cfg.Account.Balance)
	assert.Equal(t, risk.StrategyATR, cfg.Risk.Strategy)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing currency", func(c *Config) { c.Account.Currency = "" }, "account.currency is required"},
		{"negative balance", func(c *Config) { c.Account.Balance = -1000 }, "account.balance must be positive"},
		{"risk over max", func(c *Config) { c.Risk.DefaultRiskPercent = 5 }, "exceeds max"},
		{"bad strategy", func(c *Config) { c.Risk.Strategy = "FIB" }, "unknown sl/tp strategy"},
		{"bad thresholds", func(c *Config) { c.Confidence.Watch = 90 }, "watch threshold"},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr is required"},
		{"feed without symbols", func(c *Config) { c.Feed.URL = "http://quotes" }, "feed.symbols required"},
		{"feed unknown symbol", func(c *Config) {
			c.Feed.URL = "http://quotes"
			c.Feed.Symbols = []string{"EURUSD", "FOOBAR"}
		}, "unknown instrument: FOOBAR"},
		{"bad interval", func(c *Config) { c.Feed.Interval = "soon" }, "feed.interval"},
		{"bad feed mode", func(c *Config) { c.Feed.Mode = "push" }, "feed.mode must be"},
		{"bad journal", func(c *Config) { c.Journal.Type = "mongo" }, "journal.type must be"},
		{"csv without files", func(c *Config) { c.Journal.Type = "csv" }, "orders_file and levels_file"},
		{"sqlite without path", func(c *Config) { c.Journal.DBPath = "" }, "db_path required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Risk.Strategy = risk.StrategyPips
			cfg.Feed.URL = "http://localhost:9000"
			cfg.Feed.Symbols = []string{"EURUSD", "USDJPY"}
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Account, loaded.Account)
			assert.Equal(t, cfg.Risk, loaded.Risk)
			assert.Equal(t, cfg.Confidence, loaded.Confidence)
			assert.Equal(t, cfg.Feed.Symbols, loaded.Feed.Symbols)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  default_risk_percent: 0.5\n  max_risk_percent: 1\n  sltp_strategy: PERCENT\n  rr_target: 3\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Risk.DefaultRiskPercent)
	assert.Equal(t, risk.StrategyPercent, cfg.Risk.Strategy)
	assert.Equal(t, ":8088", cfg.Server.Addr)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk: [1, 2"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("AUTOLEVEL_SERVER_ADDR", ":9999")
	t.Setenv("AUTOLEVEL_RISK_DEFAULT_PERCENT", "1.5")
	t.Setenv("AUTOLEVEL_SLTP_STRATEGY", "pips")
	t.Setenv("AUTOLEVEL_FEED_SYMBOLS", "EURUSD,USDJPY")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 1.5, cfg.Risk.DefaultRiskPercent)
	assert.Equal(t, risk.StrategyPips, cfg.Risk.Strategy)
	assert.Equal(t, []string{"EURUSD", "USDJPY"}, cfg.Feed.Symbols)
}

func TestApplyEnvErrors(t *testing.T) {
	t.Setenv("AUTOLEVEL_RISK_MAX_PERCENT", "lots")
	t.Setenv("AUTOLEVEL_SLTP_STRATEGY", "fib")

	err := Default().ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTOLEVEL_RISK_MAX_PERCENT")
	assert.Contains(t, err.Error(), "fib")
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AUTOLEVEL_TEST_DOTENV=loaded\n"), 0644))
	t.Setenv("AUTOLEVEL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("AUTOLEVEL_TEST_DOTENV"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("AUTOLEVEL_TEST_DOTENV"))
}

func TestDurations(t *testing.T) {
	d, err := FeedConfig{}.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = FeedConfig{Interval: "250ms"}.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	assert.Equal(t, 5*time.Second, ServerConfig{}.ShutdownTimeout())
	assert.Equal(t, time.Minute, ServerConfig{ShutdownWait: "1m"}.ShutdownTimeout())
}
