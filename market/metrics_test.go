package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMetrics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol   string
		pip      float64
		decimals int
		atr      float64
		loc      int
	}{
		{"EURUSD", 0.0001, 5, 0.0015, -4},
		{"USDJPY", 0.01, 3, 0.15, -2},
		{"eurjpy", 0.01, 3, 0.15, -2},
		{"GBP_JPY", 0.01, 3, 0.15, -2},
		{"XAUUSD", 0.0001, 5, 0.0015, -4},
		{"BTCUSD", 0.0001, 5, 0.0015, -4},
		{"NOT_A_SYMBOL", 0.0001, 5, 0.0015, -4},
		{"", 0.0001, 5, 0.0015, -4},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.symbol, func(t *testing.T) {
			t.Parallel()
			m := ResolveMetrics(tt.symbol)
			assert.InDelta(t, tt.pip, m.PipSize, 1e-12)
			assert.Equal(t, tt.decimals, m.Decimals)
			assert.InDelta(t, tt.atr, m.ATREstimate, 1e-12)
			assert.Equal(t, tt.loc, m.PipLocation)
			assert.InDelta(t, PipSize(m.PipLocation), m.PipSize, 1e-12)
		})
	}
}

func TestPipSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		loc  int
		want float64
	}{
		{"zero", 0, 1},
		{"negative2", -2, 0.01},
		{"positive1", 1, 10},
		{"negative4", -4, 0.0001},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, PipSize(tt.loc), 1e-12)
		})
	}
}

func TestRoundTo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.078, RoundTo(1.0780000000000001, 5))
	assert.Equal(t, 147.75, RoundTo(147.7499999999, 3))
	assert.Equal(t, 1.23457, RoundTo(1.234567, 5))
	assert.Equal(t, 150.123, ResolveMetrics("USDJPY").Round(150.12345))
}

func TestMetricsPips(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 20.0, ResolveMetrics("EURUSD").Pips(-0.0020), 1e-9)
	assert.InDelta(t, 150.0, ResolveMetrics("USDJPY").Pips(1.5), 1e-9)
}
