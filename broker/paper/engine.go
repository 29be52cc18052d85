// Package paper is an in-memory broker: market orders fill at the stored
// quote, pending orders rest until cancelled.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/autolevel/broker"
	"github.com/rustyeddy/autolevel/journal"
	"github.com/rustyeddy/autolevel/pkg/id"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/risk"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotPending    = errors.New("order is not pending")
)

type Order struct {
	ID      string
	Request broker.OrderRequest
	Status  broker.OrderStatus
	Price   float64
	Time    time.Time
}

type Engine struct {
	mu      sync.Mutex
	acct    broker.Account
	ticks   *pricing.TickStore
	orders  map[string]*Order
	journal journal.Journal
	log     *zap.Logger
	now     func() time.Time
}

func NewEngine(acct broker.Account, ticks *pricing.TickStore, j journal.Journal, log *zap.Logger) *Engine {
	if ticks == nil {
		ticks = pricing.NewTickStore()
	}
	if j == nil {
		j = journal.Discard
	}
	if log == nil {
		log = zap.NewNop()
	}
	if acct.Equity == 0 {
		acct.Equity = acct.Balance
	}
	return &Engine{
		acct:    acct,
		ticks:   ticks,
		orders:  make(map[string]*Order),
		journal: j,
		log:     log,
		now:     time.Now,
	}
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct, nil
}

func (e *Engine) Prices() *pricing.TickStore {
	return e.ticks
}

func (e *Engine) GetTick(ctx context.Context, symbol string) (pricing.Tick, error) {
	return e.ticks.Get(symbol)
}

func (e *Engine) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return broker.OrderResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	o := &Order{ID: id.New(), Request: req, Time: e.now().UTC()}
	if req.Kind == risk.Pending {
		o.Status = broker.StatusPending
		o.Price = req.Price
	} else {
		tk, err := e.ticks.Get(req.Symbol)
		if err != nil {
			return broker.OrderResult{}, fmt.Errorf("place order %s: %w", req.Symbol, broker.ErrNoPrice)
		}
		o.Status = broker.StatusFilled
		o.Price = tk.EntryFor(string(req.Side))
		e.acct.OpenTrades++
	}
	e.orders[o.ID] = o

	if err := e.journal.RecordOrder(record(o, "")); err != nil {
		e.log.Error("journal order", zap.String("order_id", o.ID), zap.Error(err))
	}
	e.log.Info("paper order placed",
		zap.String("order_id", o.ID),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("status", string(o.Status)),
		zap.Float64("price", o.Price),
		zap.Float64("sl", req.StopLoss),
		zap.Float64("tp", req.TakeProfit),
	)

	return broker.OrderResult{OrderID: o.ID, Status: o.Status, Price: o.Price}, nil
}

// CancelOrder removes a resting pending order.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel order: %w: %q", ErrOrderNotFound, orderID)
	}
	if o.Status != broker.StatusPending {
		return fmt.Errorf("cancel order: %w: %q", ErrNotPending, orderID)
	}
	delete(e.orders, orderID)
	return nil
}

func (e *Engine) Order(orderID string) (Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func record(o *Order, reason string) journal.OrderRecord {
	return journal.OrderRecord{
		ID:         o.ID,
		Time:       o.Time,
		Symbol:     o.Request.Symbol,
		Side:       string(o.Request.Side),
		Kind:       string(o.Request.Kind),
		Volume:     o.Request.Volume,
		Price:      o.Price,
		StopLoss:   o.Request.StopLoss,
		TakeProfit: o.Request.TakeProfit,
		Deviation:  o.Request.Deviation,
		Status:     string(o.Status),
		Reason:     reason,
	}
}
