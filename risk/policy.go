package risk

import "github.com/rustyeddy/autolevel/confidence"

// Policy holds the limits applied before an order is forwarded.
type Policy struct {
	MaxRiskPercent    float64 `json:"max_risk_percent" yaml:"max_risk_percent"`
	MinRR             float64 `json:"min_rr" yaml:"min_rr"`
	MaxOpenTrades     int     `json:"max_open_trades" yaml:"max_open_trades"`
	ContractSize      float64 `json:"contract_size" yaml:"contract_size"`
	RequireConfidence bool    `json:"require_confidence" yaml:"require_confidence"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRiskPercent: 2,
		MinRR:          1,
		MaxOpenTrades:  5,
		ContractSize:   StandardLot,
	}
}

// TradeIntent is an order about to be submitted.
type TradeIntent struct {
	Symbol     string
	Side       Side
	Volume     float64 // lots
	Entry      float64
	StopLoss   float64
	TakeProfit float64

	QuoteToAccount float64
	Signal         *confidence.Signal
}

type AccountSnapshot struct {
	Balance    float64
	Equity     float64
	OpenTrades int
}
