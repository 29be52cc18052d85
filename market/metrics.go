package market

import (
	"math"
	"strings"
)

// Metrics describes how prices for an instrument are sized and rounded.
type Metrics struct {
	PipLocation int     // -2 for JPY quoted, -4 otherwise
	PipSize     float64 // 10^PipLocation
	Decimals    int     // rounding precision for SL/TP prices
	ATREstimate float64 // fallback volatility when no ATR feed exists
}

var (
	jpyMetrics = Metrics{
		PipLocation: -2,
		PipSize:     0.01,
		Decimals:    3,
		ATREstimate: 0.15,
	}
	defaultMetrics = Metrics{
		PipLocation: -4,
		PipSize:     0.0001,
		Decimals:    5,
		ATREstimate: 0.0015,
	}
)

// ResolveMetrics classifies a symbol into its pricing metrics.
//
// Anything containing "JPY" (any case) uses the 2/3 decimal convention,
// every other symbol falls back to the 4/5 decimal convention. It never fails.
func ResolveMetrics(symbol string) Metrics {
	if strings.Contains(strings.ToUpper(symbol), "JPY") {
		return jpyMetrics
	}
	return defaultMetrics
}

// PipSize returns the pip size for a given pip location.
func PipSize(loc int) float64 {
	return math.Pow(10, float64(loc))
}

// Round rounds x to the metrics' decimal precision.
func (m Metrics) Round(x float64) float64 {
	return RoundTo(x, m.Decimals)
}

// Pips converts a price distance into pips.
func (m Metrics) Pips(distance float64) float64 {
	return math.Abs(distance) / m.PipSize
}

// RoundTo rounds x half away from zero to the given number of decimals.
func RoundTo(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
