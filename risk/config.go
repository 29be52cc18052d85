package risk

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Strategy selects how the stop distance is derived.
type Strategy string

const (
	StrategyATR     Strategy = "ATR"
	StrategyPips    Strategy = "PIPS"
	StrategyPercent Strategy = "PERCENT"
)

// Kind distinguishes orders filled at market from orders resting at a
// user supplied price.
type Kind string

const (
	Market  Kind = "market"
	Pending Kind = "pending"
)

const (
	MinRiskPercent = 0.1
	MaxRiskPercent = 10.0
	MinRRTarget    = 0.5
	MaxRRTarget    = 5.0
)

// Config is the user's risk configuration. It is owned by the settings
// store; the engine only reads it and clamps values at point of use.
type Config struct {
	DefaultRiskPercent float64  `json:"default_risk_percent" yaml:"default_risk_percent"`
	MaxRiskPercent     float64  `json:"max_risk_percent" yaml:"max_risk_percent"`
	Strategy           Strategy `json:"sltp_strategy" yaml:"sltp_strategy"`
	RRTarget           float64  `json:"rr_target" yaml:"rr_target"`
}

func DefaultConfig() Config {
	return Config{
		DefaultRiskPercent: 1,
		MaxRiskPercent:     2,
		Strategy:           StrategyATR,
		RRTarget:           2,
	}
}

// EffectiveRiskPercent is the default risk clamped to [0.1, max], with max
// itself held inside [0.1, 10].
func (c Config) EffectiveRiskPercent() float64 {
	hi := clamp(c.MaxRiskPercent, MinRiskPercent, MaxRiskPercent)
	return clamp(c.DefaultRiskPercent, MinRiskPercent, hi)
}

// EffectiveRR is the reward:risk target clamped to [0.5, 5].
func (c Config) EffectiveRR() float64 {
	return clamp(c.RRTarget, MinRRTarget, MaxRRTarget)
}

// Validate is for configuration files; the engine tolerates anything.
func (c Config) Validate() error {
	if c.MaxRiskPercent < MinRiskPercent || c.MaxRiskPercent > MaxRiskPercent {
		return fmt.Errorf("risk.max_risk_percent must be between %.1f and %.0f", MinRiskPercent, MaxRiskPercent)
	}
	if c.DefaultRiskPercent <= 0 {
		return fmt.Errorf("risk.default_risk_percent must be positive")
	}
	if c.DefaultRiskPercent > c.MaxRiskPercent {
		return fmt.Errorf("risk.default_risk_percent %.2f exceeds max %.2f", c.DefaultRiskPercent, c.MaxRiskPercent)
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.RRTarget <= 0 {
		return fmt.Errorf("risk.rr_target must be positive")
	}
	return nil
}

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("unknown side %q (want buy|sell)", s)
}

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToUpper(strings.TrimSpace(s))) {
	case StrategyATR:
		return StrategyATR, nil
	case StrategyPips:
		return StrategyPips, nil
	case StrategyPercent:
		return StrategyPercent, nil
	}
	return "", fmt.Errorf("unknown sl/tp strategy %q (want ATR|PIPS|PERCENT)", s)
}

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", Market:
		return Market, nil
	case Pending:
		return Pending, nil
	}
	return "", fmt.Errorf("unknown order kind %q (want market|pending)", s)
}

// ParsePrice parses a form value into a finite price. Blank input is an
// error so callers can tell "not entered" from zero.
func ParsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("price is empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("price %q is not finite", s)
	}
	return v, nil
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Min(math.Max(x, lo), hi)
}
