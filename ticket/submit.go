// Package ticket turns an order form into a broker order: it checks the
// trade against the risk policy and forwards SL/TP verbatim.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/autolevel/autofill"
	"github.com/rustyeddy/autolevel/broker"
	"github.com/rustyeddy/autolevel/confidence"
	"github.com/rustyeddy/autolevel/journal"
	"github.com/rustyeddy/autolevel/market"
	"github.com/rustyeddy/autolevel/pkg/id"
	"github.com/rustyeddy/autolevel/risk"
	"go.uber.org/zap"
)

// ErrRejected wraps orders refused by the risk policy.
var ErrRejected = errors.New("order rejected")

type Submitter struct {
	Broker    broker.Broker
	Journal   journal.Journal
	Policy    risk.Policy
	Deviation int
	Log       *zap.Logger
}

type Result struct {
	Order    broker.OrderResult `json:"order"`
	Decision risk.Decision      `json:"decision"`
}

// FromForm builds an order request from the auto-fill form. Blank SL/TP
// fields are sent as zero which the bridge treats as "none".
func (s *Submitter) FromForm(f autofill.Form) broker.OrderRequest {
	req := broker.OrderRequest{
		Symbol:    f.Symbol,
		Side:      f.Side,
		Kind:      f.Kind,
		Volume:    f.Volume,
		Deviation: s.Deviation,
	}
	if f.Kind == risk.Pending {
		req.Price = f.PendingPrice
	}
	if f.StopLoss != nil {
		req.StopLoss = *f.StopLoss
	}
	if f.TakeProfit != nil {
		req.TakeProfit = *f.TakeProfit
	}
	return req
}

// Submit evaluates req against the policy and, if allowed, places it.
// A refused order is journaled and returned with an error wrapping
// ErrRejected alongside the decision.
func (s *Submitter) Submit(ctx context.Context, req broker.OrderRequest, sig *confidence.Signal) (Result, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	j := s.Journal
	if j == nil {
		j = journal.Discard
	}
	req.Symbol = market.Normalize(req.Symbol)
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	entry := req.Price
	if req.Kind != risk.Pending {
		tk, err := s.Broker.GetTick(ctx, req.Symbol)
		if err != nil {
			return Result{}, fmt.Errorf("entry price for %s: %w", req.Symbol, err)
		}
		entry = tk.EntryFor(string(req.Side))
	}

	acct, err := s.Broker.GetAccount(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get account: %w", err)
	}

	q, err := s.quoteToAccount(ctx, req.Symbol, acct.Currency, entry)
	if err != nil {
		log.Warn("quote conversion unavailable, assuming 1", zap.String("symbol", req.Symbol), zap.Error(err))
		q = 1
	}

	dec := risk.Evaluate(s.Policy, risk.TradeIntent{
		Symbol:         req.Symbol,
		Side:           req.Side,
		Volume:         req.Volume,
		Entry:          entry,
		StopLoss:       req.StopLoss,
		TakeProfit:     req.TakeProfit,
		QuoteToAccount: q,
		Signal:         sig,
	}, risk.AccountSnapshot{Balance: acct.Balance, Equity: acct.Equity, OpenTrades: acct.OpenTrades})

	if !dec.Allowed {
		rec := journal.OrderRecord{
			ID:         id.New(),
			Time:       time.Now().UTC(),
			Symbol:     req.Symbol,
			Side:       string(req.Side),
			Kind:       string(req.Kind),
			Volume:     req.Volume,
			Price:      entry,
			StopLoss:   req.StopLoss,
			TakeProfit: req.TakeProfit,
			Deviation:  req.Deviation,
			Status:     string(broker.StatusRejected),
			Reason:     strings.Join(dec.Codes(), ","),
		}
		if err := j.RecordOrder(rec); err != nil {
			log.Error("journal rejected order", zap.Error(err))
		}
		log.Info("order rejected by policy", zap.String("symbol", req.Symbol), zap.Strings("codes", dec.Codes()))
		return Result{Order: broker.OrderResult{OrderID: rec.ID, Status: broker.StatusRejected}, Decision: dec},
			fmt.Errorf("%w: %s", ErrRejected, dec)
	}

	res, err := s.Broker.PlaceOrder(ctx, req)
	if err != nil {
		return Result{Decision: dec}, fmt.Errorf("place order: %w", err)
	}
	return Result{Order: res, Decision: dec}, nil
}

// quoteToAccount converts one unit of the quote currency into the
// account currency using the broker's quotes.
func (s *Submitter) quoteToAccount(ctx context.Context, symbol, accountCurrency string, entry float64) (float64, error) {
	return market.QuoteToAccountRate(symbol, accountCurrency, entry, func(sym string) (float64, error) {
		tk, err := s.Broker.GetTick(ctx, sym)
		if err != nil {
			return 0, err
		}
		return tk.Mid(), nil
	})
}
