package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/risk"
)

var ErrNoPrice = errors.New("no price for symbol")

// Broker executes orders built from the ticket.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	GetTick(ctx context.Context, symbol string) (pricing.Tick, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

type Account struct {
	ID         string  `json:"id"`
	Currency   string  `json:"currency"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	OpenTrades int     `json:"open_trades"`
}

// OrderRequest is what the order ticket forwards: SL/TP come verbatim
// from the level engine or from manual edits.
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Side       risk.Side `json:"side"`
	Kind       risk.Kind `json:"kind"`
	Volume     float64   `json:"volume"`
	Price      float64   `json:"price,omitempty"` // pending only
	StopLoss   float64   `json:"sl,omitempty"`
	TakeProfit float64   `json:"tp,omitempty"`
	Deviation  int       `json:"deviation"` // max slippage in points
}

func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("order symbol is required")
	}
	if r.Side != risk.Buy && r.Side != risk.Sell {
		return fmt.Errorf("order side %q invalid", r.Side)
	}
	if r.Volume <= 0 {
		return fmt.Errorf("order volume must be positive")
	}
	if r.Kind == risk.Pending && r.Price <= 0 {
		return fmt.Errorf("pending order price must be positive")
	}
	if r.Deviation < 0 {
		return fmt.Errorf("order deviation must not be negative")
	}
	return nil
}

type OrderStatus string

const (
	StatusFilled   OrderStatus = "filled"
	StatusPending  OrderStatus = "pending"
	StatusRejected OrderStatus = "rejected"
)

type OrderResult struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Price   float64     `json:"price"`
}
