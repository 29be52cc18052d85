package cmd

import (
	"fmt"

	"github.com/rustyeddy/autolevel/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autolevel",
	Short: "Risk-derived stop loss and take profit levels for an MT5 dashboard",
	Long: `Autolevel computes stop loss and take profit prices from a risk
configuration and an entry price, scores trade confidence and serves both
to a trading dashboard.

It provides tools for:
  - Computing SL/TP levels for market and pending orders
  - Inspecting per-instrument pip and ATR metrics
  - Scoring weighted trade signals
  - Serving the JSON API and the auto-fill websocket
  - Querying the levels and orders journal`,
	SilenceUsage: true,
}

var (
	cfgFile string
	envFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with AUTOLEVEL_* overrides")
}

// loadConfig resolves the effective configuration: defaults, then the
// config file, then environment overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
