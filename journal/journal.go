package journal

import "time"

// LevelRecord is one auto-level computation, kept for audit.
type LevelRecord struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Kind       string    `json:"kind"`
	Strategy   string    `json:"strategy"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
}

// OrderRecord is an order forwarded to (or refused before) the broker.
type OrderRecord struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Kind       string    `json:"kind"`
	Volume     float64   `json:"volume"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Deviation  int       `json:"deviation"`
	Status     string    `json:"status"` // filled, pending, rejected
	Reason     string    `json:"reason,omitempty"`
}

type Journal interface {
	RecordLevels(LevelRecord) error
	RecordOrder(OrderRecord) error
	Close() error
}

// Discard drops every record.
var Discard Journal = discard{}

type discard struct{}

func (discard) RecordLevels(LevelRecord) error { return nil }
func (discard) RecordOrder(OrderRecord) error  { return nil }
func (discard) Close() error                   { return nil }
