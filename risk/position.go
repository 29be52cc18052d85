package risk

// USD quoted (EURUSD) -> QuoteToAccount = 1.0
// JPY quoted (USDJPY) -> QuoteToAccount = 1 / USDJPY mid

import (
	"math"

	"github.com/rustyeddy/autolevel/market"
)

const StandardLot = 100_000.0

type Inputs struct {
	Equity         float64
	RiskPercent    float64 // 1 means 1%
	EntryPrice     float64
	StopPrice      float64
	PipLocation    int
	QuoteToAccount float64
	ContractSize   float64 // defaults to StandardLot
	LotStep        float64 // defaults to 0.01
}

type Result struct {
	Lots       float64 `json:"lots"`
	Units      float64 `json:"units"`
	StopPips   float64 `json:"stop_pips"`
	RiskAmount float64 `json:"risk_amount"`
}

// Calculate sizes a position so that hitting the stop loses RiskPercent
// of equity. Lots are floored to LotStep.
func Calculate(in Inputs) Result {
	contract := in.ContractSize
	if contract <= 0 {
		contract = StandardLot
	}
	step := in.LotStep
	if step <= 0 {
		step = 0.01
	}

	pip := market.PipSize(in.PipLocation)
	stopPips := math.Abs(in.EntryPrice-in.StopPrice) / pip
	riskAmt := in.Equity * in.RiskPercent / 100

	res := Result{StopPips: stopPips, RiskAmount: riskAmt}
	if stopPips == 0 || in.QuoteToAccount <= 0 {
		return res
	}

	pipValuePerUnit := pip * in.QuoteToAccount
	units := riskAmt / (stopPips * pipValuePerUnit)
	// small epsilon so 0.3 lots does not floor to 0.29
	res.Lots = math.Floor(units/contract/step+1e-9) * step
	res.Units = res.Lots * contract
	return res
}

// SuggestVolume sizes a trade for levels computed by the engine.
func SuggestVolume(symbol string, entry float64, lv Levels, cfg Config, equity, quoteToAccount float64) Result {
	m := market.ResolveMetrics(symbol)
	return Calculate(Inputs{
		Equity:         equity,
		RiskPercent:    cfg.EffectiveRiskPercent(),
		EntryPrice:     entry,
		StopPrice:      lv.StopLoss,
		PipLocation:    m.PipLocation,
		QuoteToAccount: quoteToAccount,
	})
}
