package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/autolevel/broker"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/risk"
	"github.com/rustyeddy/autolevel/ticket"
)

// Options controls how replay behaves.
type Options struct {
	// If true: store the tick first, then run the event, so ORDER uses
	// the row's own prices.
	TickThenEvent bool

	// Risk configures the levels attached to ORDER and PENDING events.
	Risk risk.Config

	// Speed > 0 paces the replay: 1 is real time, 10 ten times faster.
	// Zero replays as fast as possible.
	Speed float64
}

type Stats struct {
	Ticks    int
	Orders   int
	Rejected int
}

// CSV replays ticks from a CSV file into store and applies optional
// scripted events through sub.
//
// CSV formats supported:
//
//  1. Basic ticks:
//     time,symbol,bid,ask
//
//  2. Ticks + events:
//     time,symbol,bid,ask,event,arg1,arg2,arg3,arg4,arg5
//
// Events (case-insensitive):
//
//	ORDER:       arg1=symbol arg2=side arg3=volume                  (auto levels)
//	ORDER_SLTP:  arg1=symbol arg2=side arg3=volume arg4=sl arg5=tp
//	PENDING:     arg1=symbol arg2=side arg3=volume arg4=price       (auto levels)
//
// Orders refused by the risk policy are counted, not fatal.
func CSV(ctx context.Context, csvPath string, store *pricing.TickStore, sub *ticket.Submitter, opts Options) (Stats, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()
	return Read(ctx, f, store, sub, opts)
}

// Read is CSV for an already open stream.
func Read(ctx context.Context, in io.Reader, store *pricing.TickStore, sub *ticket.Submitter, opts Options) (Stats, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	p := &player{store: store, sub: sub, opts: opts}

	// Read first row and detect header or data.
	firstRow, err := r.Read()
	if err == io.EOF {
		return p.stats, nil
	}
	if err != nil {
		return p.stats, err
	}

	hasHeader := len(firstRow) > 0 && strings.EqualFold(strings.TrimSpace(firstRow[0]), "time")
	if !hasHeader {
		if err := p.row(ctx, firstRow); err != nil {
			return p.stats, err
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			return p.stats, nil
		}
		if err != nil {
			return p.stats, err
		}
		if len(row) == 0 {
			continue
		}
		if err := p.row(ctx, row); err != nil {
			return p.stats, err
		}
	}
}

type player struct {
	store *pricing.TickStore
	sub   *ticket.Submitter
	opts  Options
	stats Stats
	last  time.Time
}

func (p *player) row(ctx context.Context, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Minimum tick columns: time,symbol,bid,ask
	if len(row) < 4 {
		return fmt.Errorf("bad row (need at least 4 cols time,symbol,bid,ask): %v", row)
	}

	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(row[0]))
	if err != nil {
		return fmt.Errorf("bad time %q: %w", row[0], err)
	}
	bid, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return fmt.Errorf("bad bid %q: %w", row[2], err)
	}
	ask, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	if err != nil {
		return fmt.Errorf("bad ask %q: %w", row[3], err)
	}
	tk := pricing.Tick{Instrument: strings.TrimSpace(row[1]), Time: t, Bid: bid, Ask: ask}
	if err := tk.Validate(); err != nil {
		return err
	}

	if err := p.pace(ctx, t); err != nil {
		return err
	}

	// Optional event columns: event,arg1,arg2,...
	event := ""
	var args []string
	if len(row) >= 5 {
		event = strings.TrimSpace(row[4])
	}
	if len(row) >= 6 {
		args = row[5:]
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
	}

	if p.opts.TickThenEvent {
		p.tick(tk)
		if event != "" {
			return p.event(ctx, event, args)
		}
		return nil
	}

	// Event first, then tick (rare, but supported)
	if event != "" {
		if err := p.event(ctx, event, args); err != nil {
			return err
		}
	}
	p.tick(tk)
	return nil
}

func (p *player) tick(tk pricing.Tick) {
	p.store.Set(tk)
	p.stats.Ticks++
}

func (p *player) pace(ctx context.Context, t time.Time) error {
	defer func() { p.last = t }()
	if p.opts.Speed <= 0 || p.last.IsZero() || !t.After(p.last) {
		return nil
	}
	wait := time.Duration(float64(t.Sub(p.last)) / p.opts.Speed)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *player) event(ctx context.Context, event string, args []string) error {
	if p.sub == nil {
		return fmt.Errorf("event %q needs an order submitter", event)
	}

	var (
		req broker.OrderRequest
		err error
	)
	switch strings.ToUpper(event) {
	case "ORDER":
		// ORDER,EURUSD,buy,0.10
		if req, err = parseOrderArgs(args, 3); err != nil {
			return fmt.Errorf("ORDER: %w", err)
		}
		req.Kind = risk.Market
		tk, err := p.store.Get(req.Symbol)
		if err != nil {
			return fmt.Errorf("ORDER: %w", err)
		}
		p.attachLevels(&req, tk.EntryFor(string(req.Side)))

	case "ORDER_SLTP":
		// ORDER_SLTP,EURUSD,buy,0.10,1.0980,1.1050
		if req, err = parseOrderArgs(args, 5); err != nil {
			return fmt.Errorf("ORDER_SLTP: %w", err)
		}
		req.Kind = risk.Market
		if req.StopLoss, err = risk.ParsePrice(args[3]); err != nil {
			return fmt.Errorf("ORDER_SLTP: stop loss: %w", err)
		}
		if req.TakeProfit, err = risk.ParsePrice(args[4]); err != nil {
			return fmt.Errorf("ORDER_SLTP: take profit: %w", err)
		}

	case "PENDING":
		// PENDING,USDJPY,sell,0.10,150.500
		if req, err = parseOrderArgs(args, 4); err != nil {
			return fmt.Errorf("PENDING: %w", err)
		}
		req.Kind = risk.Pending
		if req.Price, err = risk.ParsePrice(args[3]); err != nil {
			return fmt.Errorf("PENDING: price: %w", err)
		}
		p.attachLevels(&req, req.Price)

	default:
		return fmt.Errorf("unknown event %q", event)
	}

	_, err = p.sub.Submit(ctx, req, nil)
	switch {
	case err == nil:
		p.stats.Orders++
		return nil
	case errors.Is(err, ticket.ErrRejected):
		p.stats.Rejected++
		return nil
	}
	return fmt.Errorf("%s: %w", strings.ToUpper(event), err)
}

// attachLevels fills SL/TP from the level engine. A null result leaves
// the order without levels.
func (p *player) attachLevels(req *broker.OrderRequest, entry float64) {
	lv, ok := risk.Compute(risk.Request{
		Symbol: req.Symbol,
		Side:   req.Side,
		Kind:   req.Kind,
		Entry:  entry,
		Config: p.opts.Risk,
	})
	if ok {
		req.StopLoss, req.TakeProfit = lv.StopLoss, lv.TakeProfit
	}
}

func parseOrderArgs(args []string, need int) (broker.OrderRequest, error) {
	if len(args) < need {
		return broker.OrderRequest{}, fmt.Errorf("need %d args, got %d", need, len(args))
	}
	if args[0] == "" {
		return broker.OrderRequest{}, fmt.Errorf("symbol is empty")
	}
	side, err := risk.ParseSide(args[1])
	if err != nil {
		return broker.OrderRequest{}, err
	}
	volume, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return broker.OrderRequest{}, fmt.Errorf("bad volume %q: %w", args[2], err)
	}
	if volume <= 0 {
		return broker.OrderRequest{}, fmt.Errorf("volume must be positive")
	}
	return broker.OrderRequest{Symbol: args[0], Side: side, Volume: volume}, nil
}
