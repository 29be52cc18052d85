package risk

import (
	"math"
	"strings"

	"github.com/rustyeddy/autolevel/market"
)

const (
	minStopPips        = 5
	pendingATRBasePips = 50
	pendingATRMinPips  = 10
)

// Request is one auto-level computation.
type Request struct {
	Symbol string
	Side   Side
	Kind   Kind
	Entry  float64
	Config Config
}

// Levels is a validated stop-loss / take-profit pair.
type Levels struct {
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// ComputeLevels computes SL/TP for an order filled at the live price.
// ok is false when no safe auto-fill exists; callers must then leave the
// SL/TP fields as they are.
func ComputeLevels(symbol string, side Side, entry float64, cfg Config) (Levels, bool) {
	return Compute(Request{Symbol: symbol, Side: side, Kind: Market, Entry: entry, Config: cfg})
}

// ComputePendingLevels computes SL/TP for an order resting at entry.
func ComputePendingLevels(symbol string, side Side, entry float64, cfg Config) (Levels, bool) {
	return Compute(Request{Symbol: symbol, Side: side, Kind: Pending, Entry: entry, Config: cfg})
}

func Compute(req Request) (Levels, bool) {
	if strings.TrimSpace(req.Symbol) == "" {
		return Levels{}, false
	}
	if !(req.Entry > 0) || math.IsInf(req.Entry, 0) {
		return Levels{}, false
	}

	m := market.ResolveMetrics(req.Symbol)
	rp := req.Config.EffectiveRiskPercent()

	stop, ok := stopDistance(req, m, rp)
	if !ok {
		return Levels{}, false
	}
	target := stop * req.Config.EffectiveRR()

	var sl, tp float64
	switch req.Side {
	case Buy:
		sl = req.Entry - stop
		tp = req.Entry + target
	case Sell:
		sl = req.Entry + stop
		tp = req.Entry - target
	default:
		return Levels{}, false
	}

	lv := Levels{StopLoss: m.Round(sl), TakeProfit: m.Round(tp)}
	if !finite(lv.StopLoss) || !finite(lv.TakeProfit) {
		return Levels{}, false
	}
	if lv.StopLoss <= 0 || lv.TakeProfit <= 0 {
		return Levels{}, false
	}
	if !(math.Abs(lv.TakeProfit-lv.StopLoss) >= m.PipSize) {
		return Levels{}, false
	}
	return lv, true
}

func stopDistance(req Request, m market.Metrics, rp float64) (float64, bool) {
	switch req.Config.Strategy {
	case StrategyPercent:
		return req.Entry * (rp / 100), true

	case StrategyPips:
		pips := math.Max(minStopPips, math.Round(req.Entry*(rp/100)/m.PipSize))
		return pips * m.PipSize, true

	case StrategyATR:
		// Market ATR ignores rp while pending ATR scales with it. Kept as is
		// until the intended behaviour for both paths is settled.
		if req.Kind == Pending {
			return math.Max(m.PipSize*pendingATRBasePips*rp, m.PipSize*pendingATRMinPips), true
		}
		return m.ATREstimate, true
	}
	return 0, false
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
