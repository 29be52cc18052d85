package risk

import (
	"math"
	"testing"

	"github.com/rustyeddy/autolevel/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLevels_PercentEURUSDBuy(t *testing.T) {
	t.Parallel()

	cfg := Config{DefaultRiskPercent: 2, MaxRiskPercent: 5, Strategy: StrategyPercent, RRTarget: 2}
	lv, ok := ComputeLevels("EURUSD", Buy, 1.10000, cfg)
	require.True(t, ok)
	assert.InDelta(t, 1.07800, lv.StopLoss, 1e-9)
	assert.InDelta(t, 1.14400, lv.TakeProfit, 1e-9)
}

func TestComputeLevels_PipsUSDJPYSell(t *testing.T) {
	t.Parallel()

	cfg := Config{DefaultRiskPercent: 1, MaxRiskPercent: 5, Strategy: StrategyPips, RRTarget: 1.5}
	lv, ok := ComputeLevels("USDJPY", Sell, 150.000, cfg)
	require.True(t, ok)
	assert.InDelta(t, 151.500, lv.StopLoss, 1e-9)
	assert.InDelta(t, 147.750, lv.TakeProfit, 1e-9)
}

func TestComputeLevels_ZeroEntryRejected(t *testing.T) {
	t.Parallel()

	for _, s := range []Strategy{StrategyATR, StrategyPips, StrategyPercent} {
		cfg := Config{DefaultRiskPercent: 1, MaxRiskPercent: 5, Strategy: s, RRTarget: 2}
		_, ok := ComputeLevels("EURUSD", Buy, 0, cfg)
		assert.False(t, ok, s)
		_, ok = ComputePendingLevels("EURUSD", Sell, 0, cfg)
		assert.False(t, ok, s)
		_, ok = ComputeLevels("EURUSD", Buy, -1.1, cfg)
		assert.False(t, ok, s)
	}
}

func TestComputeLevels_ATRMarketIgnoresRisk(t *testing.T) {
	t.Parallel()

	for _, rp := range []float64{0.1, 1, 3, 10} {
		cfg := Config{DefaultRiskPercent: rp, MaxRiskPercent: 10, Strategy: StrategyATR, RRTarget: 2}
		lv, ok := ComputeLevels("EURUSD", Buy, 1.10000, cfg)
		require.True(t, ok)
		assert.InDelta(t, 1.09850, lv.StopLoss, 1e-9, "rp=%v", rp)
		assert.InDelta(t, 1.10300, lv.TakeProfit, 1e-9, "rp=%v", rp)
	}
}

func TestComputePendingLevels_ATRScalesWithRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rp   float64
		stop float64
	}{
		{"one percent is 50 pips", 1, 0.0050},
		{"floor at 10 pips", 0.1, 0.0010},
		{"two percent is 100 pips", 2, 0.0100},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Config{DefaultRiskPercent: tt.rp, MaxRiskPercent: 5, Strategy: StrategyATR, RRTarget: 1}
			lv, ok := ComputePendingLevels("EURUSD", Sell, 1.20000, cfg)
			require.True(t, ok)
			assert.InDelta(t, 1.2+tt.stop, lv.StopLoss, 1e-9)
			assert.InDelta(t, 1.2-tt.stop, lv.TakeProfit, 1e-9)
		})
	}

	cfg := Config{DefaultRiskPercent: 1, MaxRiskPercent: 5, Strategy: StrategyATR, RRTarget: 1}
	lv, ok := ComputePendingLevels("USDJPY", Buy, 150.000, cfg)
	require.True(t, ok)
	assert.InDelta(t, 149.500, lv.StopLoss, 1e-9)
	assert.InDelta(t, 150.500, lv.TakeProfit, 1e-9)
}

func TestComputeLevels_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := Config{DefaultRiskPercent: 1.3, MaxRiskPercent: 4, Strategy: StrategyPips, RRTarget: 2.7}
	first, ok1 := ComputeLevels("GBPJPY", Buy, 191.234, cfg)
	for i := 0; i < 50; i++ {
		got, ok := ComputeLevels("GBPJPY", Buy, 191.234, cfg)
		assert.Equal(t, ok1, ok)
		assert.Equal(t, first, got)
	}
}

func TestComputeLevels_SideSymmetry(t *testing.T) {
	t.Parallel()

	entries := map[string]float64{"EURUSD": 1.08765, "USDJPY": 149.321, "XAUUSD": 2345.67}
	for sym, entry := range entries {
		for _, s := range []Strategy{StrategyATR, StrategyPips, StrategyPercent} {
			for _, kind := range []Kind{Market, Pending} {
				cfg := Config{DefaultRiskPercent: 0.7, MaxRiskPercent: 3, Strategy: s, RRTarget: 1.8}
				buy, ok := Compute(Request{Symbol: sym, Side: Buy, Kind: kind, Entry: entry, Config: cfg})
				require.True(t, ok)
				sell, ok := Compute(Request{Symbol: sym, Side: Sell, Kind: kind, Entry: entry, Config: cfg})
				require.True(t, ok)

				tol := math.Pow(10, -float64(market.ResolveMetrics(sym).Decimals)) + 1e-9
				assert.InDelta(t, entry-buy.StopLoss, sell.StopLoss-entry, tol, "%s %s %s", sym, s, kind)
				assert.InDelta(t, buy.TakeProfit-entry, entry-sell.TakeProfit, tol, "%s %s %s", sym, s, kind)
			}
		}
	}
}

func TestComputeLevels_RoundingInvariant(t *testing.T) {
	t.Parallel()

	for _, sym := range []string{"EURUSD", "USDJPY", "EURJPY", "BTCUSD"} {
		d := market.ResolveMetrics(sym).Decimals
		scale := math.Pow(10, float64(d))
		for _, entry := range []float64{1.234567, 98.76543, 150.1234, 61234.5678} {
			for _, rp := range []float64{0.13, 0.77, 1.9} {
				for _, s := range []Strategy{StrategyATR, StrategyPips, StrategyPercent} {
					cfg := Config{DefaultRiskPercent: rp, MaxRiskPercent: 5, Strategy: s, RRTarget: 1.37}
					lv, ok := ComputeLevels(sym, Sell, entry, cfg)
					if !ok {
						continue
					}
					for _, p := range []float64{lv.StopLoss, lv.TakeProfit} {
						assert.InDelta(t, math.Round(p*scale), p*scale, 1e-4, "%s %v", sym, p)
					}
				}
			}
		}
	}
}

func TestComputeLevels_PipsFloor(t *testing.T) {
	t.Parallel()

	// 0.3 * 0.1% = 3 pips, floored to 5.
	cfg := Config{DefaultRiskPercent: 0.1, MaxRiskPercent: 5, Strategy: StrategyPips, RRTarget: 2}
	lv, ok := ComputeLevels("EURUSD", Buy, 0.30000, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.29950, lv.StopLoss, 1e-9)
	assert.InDelta(t, 0.30100, lv.TakeProfit, 1e-9)

	// A negative default risk is raised to 0.1 and still floored.
	cfg.DefaultRiskPercent = -4
	lv, ok = ComputeLevels("USDJPY", Sell, 2.000, cfg)
	require.True(t, ok)
	assert.InDelta(t, 2.050, lv.StopLoss, 1e-9)
}

func TestComputeLevels_ClampRiskAndRR(t *testing.T) {
	t.Parallel()

	// default above max is held at max (3%).
	cfg := Config{DefaultRiskPercent: 50, MaxRiskPercent: 3, Strategy: StrategyPercent, RRTarget: 99}
	lv, ok := ComputeLevels("EURUSD", Buy, 1.00000, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.97000, lv.StopLoss, 1e-9)
	assert.InDelta(t, 1.15000, lv.TakeProfit, 1e-9) // rr 5

	// max above 10 is itself capped.
	cfg = Config{DefaultRiskPercent: 50, MaxRiskPercent: 80, Strategy: StrategyPercent, RRTarget: 0.01}
	lv, ok = ComputeLevels("EURUSD", Buy, 1.00000, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.90000, lv.StopLoss, 1e-9)
	assert.InDelta(t, 1.05000, lv.TakeProfit, 1e-9) // rr 0.5
}

func TestEffectiveClamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cfg Config
		rp  float64
		rr  float64
	}{
		{Config{DefaultRiskPercent: 1, MaxRiskPercent: 2, RRTarget: 2}, 1, 2},
		{Config{DefaultRiskPercent: 0, MaxRiskPercent: 2, RRTarget: 0}, 0.1, 0.5},
		{Config{DefaultRiskPercent: 9, MaxRiskPercent: 2, RRTarget: 9}, 2, 5},
		{Config{DefaultRiskPercent: 20, MaxRiskPercent: 20, RRTarget: 3}, 10, 3},
		{Config{DefaultRiskPercent: math.NaN(), MaxRiskPercent: 2, RRTarget: math.NaN()}, 0.1, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.rp, tt.cfg.EffectiveRiskPercent(), 1e-12)
		assert.InDelta(t, tt.rr, tt.cfg.EffectiveRR(), 1e-12)
	}
}

func TestComputeLevels_ValidityGate(t *testing.T) {
	t.Parallel()

	// SL and TP collapse onto the same rounded price.
	cfg := Config{DefaultRiskPercent: 0.1, MaxRiskPercent: 5, Strategy: StrategyPercent, RRTarget: 0.5}
	_, ok := ComputeLevels("EURUSD", Buy, 0.00100, cfg)
	assert.False(t, ok)

	// Buy stop goes below zero.
	cfg.Strategy = StrategyPips
	_, ok = ComputeLevels("EURUSD", Buy, 0.00020, cfg)
	assert.False(t, ok)
}

func TestComputeLevels_BadInputs(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	_, ok := ComputeLevels("", Buy, 1.1, cfg)
	assert.False(t, ok)
	_, ok = ComputeLevels("EURUSD", Side("long"), 1.1, cfg)
	assert.False(t, ok)
	_, ok = ComputeLevels("EURUSD", Buy, math.NaN(), cfg)
	assert.False(t, ok)
	_, ok = ComputeLevels("EURUSD", Buy, math.Inf(1), cfg)
	assert.False(t, ok)

	// finite entries whose rounded levels overflow
	pct := Config{DefaultRiskPercent: 1, MaxRiskPercent: 5, Strategy: StrategyPercent, RRTarget: 2}
	for _, side := range []Side{Buy, Sell} {
		lv, ok := ComputeLevels("EURUSD", side, 1e305, pct)
		assert.False(t, ok, side)
		assert.Equal(t, Levels{}, lv)
		_, ok = ComputePendingLevels("EURUSD", side, 1e305, pct)
		assert.False(t, ok, side)
	}

	cfg.Strategy = Strategy("FIB")
	_, ok = ComputeLevels("EURUSD", Buy, 1.1, cfg)
	assert.False(t, ok)
}
