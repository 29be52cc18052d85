// Package autofill owns the order form state around the level engine: it
// decides when computed SL/TP may be written into the form and makes sure
// a manual edit is never overwritten.
package autofill

import (
	"errors"
	"math"
	"sync"

	"github.com/rustyeddy/autolevel/market"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/risk"
	"go.uber.org/zap"
)

// ErrStale is returned by Apply when the form changed after Begin.
var ErrStale = errors.New("autofill: stale computation")

// Form is a snapshot of the order ticket. StopLoss / TakeProfit are nil
// when the field is blank.
type Form struct {
	Symbol       string    `json:"symbol"`
	Side         risk.Side `json:"side"`
	Kind         risk.Kind `json:"kind"`
	Volume       float64   `json:"volume"`
	PendingPrice float64   `json:"pending_price,omitempty"`
	StopLoss     *float64  `json:"stop_loss"`
	TakeProfit   *float64  `json:"take_profit"`
	Suppressed   bool      `json:"suppressed"`
}

// Token identifies one Begin/Apply round.
type Token struct {
	gen uint64
	req risk.Request
}

func (t Token) Request() risk.Request { return t.req }

type Controller struct {
	mu   sync.Mutex
	form Form
	cfg  risk.Config
	tick pricing.Tick
	gen  uint64
	log  *zap.Logger
}

func NewController(cfg risk.Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		form: Form{Side: risk.Buy, Kind: risk.Market},
		cfg:  cfg,
		log:  log,
	}
}

func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.form
	f.StopLoss = copyPtr(f.StopLoss)
	f.TakeProfit = copyPtr(f.TakeProfit)
	return f
}

func (c *Controller) Suppressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.Suppressed
}

// SetSymbol, SetSide and SetVolume invalidate manually tuned levels: a
// real change clears the suppression flag and refills.
func (c *Controller) SetSymbol(symbol string) (risk.Levels, bool) {
	symbol = market.Normalize(symbol)
	return c.update(true, func(f *Form) bool {
		if f.Symbol == symbol {
			return false
		}
		f.Symbol = symbol
		c.tick = pricing.Tick{}
		return true
	})
}

func (c *Controller) SetSide(side risk.Side) (risk.Levels, bool) {
	return c.update(true, func(f *Form) bool {
		if f.Side == side {
			return false
		}
		f.Side = side
		return true
	})
}

// SetVolume ignores NaN and infinite volumes.
func (c *Controller) SetVolume(volume float64) (risk.Levels, bool) {
	if math.IsNaN(volume) || math.IsInf(volume, 0) {
		return risk.Levels{}, false
	}
	return c.update(true, func(f *Form) bool {
		if f.Volume == volume {
			return false
		}
		f.Volume = volume
		return true
	})
}

// SetKind switches between market and pending entry.
func (c *Controller) SetKind(kind risk.Kind) (risk.Levels, bool) {
	return c.update(false, func(f *Form) bool {
		if f.Kind == kind {
			return false
		}
		f.Kind = kind
		return true
	})
}

// SetPendingPrice updates the pending entry; it never clears suppression.
func (c *Controller) SetPendingPrice(price float64) (risk.Levels, bool) {
	return c.update(false, func(f *Form) bool {
		f.PendingPrice = price
		return true
	})
}

// SetConfig swaps the risk configuration, e.g. after settings change.
func (c *Controller) SetConfig(cfg risk.Config) (risk.Levels, bool) {
	return c.update(false, func(*Form) bool {
		c.cfg = cfg
		return true
	})
}

// OnTick feeds a live quote. Ticks for other symbols are ignored.
func (c *Controller) OnTick(tk pricing.Tick) (risk.Levels, bool) {
	return c.update(false, func(f *Form) bool {
		if market.Normalize(tk.Instrument) != f.Symbol {
			return false
		}
		c.tick = tk
		return true
	})
}

// EditStopLoss and EditTakeProfit record a manual edit and suppress
// auto-fill until symbol, side or volume change. nil blanks the field.
func (c *Controller) EditStopLoss(v *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.StopLoss = copyPtr(v)
	c.form.Suppressed = true
	c.gen++
	c.log.Debug("stop loss edited, auto-fill suppressed", zap.String("symbol", c.form.Symbol))
}

func (c *Controller) EditTakeProfit(v *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.TakeProfit = copyPtr(v)
	c.form.Suppressed = true
	c.gen++
	c.log.Debug("take profit edited, auto-fill suppressed", zap.String("symbol", c.form.Symbol))
}

// Begin captures the current inputs for an out-of-lock computation. ok is
// false when auto-fill must not run.
func (c *Controller) Begin() (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.requestLocked()
	if !ok {
		return Token{}, false
	}
	return Token{gen: c.gen, req: req}, true
}

// Apply writes levels computed for tok. Results for a superseded token
// are dropped with ErrStale so the last computation wins.
func (c *Controller) Apply(tok Token, lv risk.Levels) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok.gen != c.gen {
		return ErrStale
	}
	if c.form.Suppressed {
		return nil
	}
	c.writeLocked(lv)
	return nil
}

// update applies change under the lock and, when something changed,
// refills through Begin/Apply with the engine running unlocked. reset
// clears a manual-edit suppression.
func (c *Controller) update(reset bool, change func(*Form) bool) (risk.Levels, bool) {
	if !c.mutate(reset, change) {
		return risk.Levels{}, false
	}
	return c.fill()
}

func (c *Controller) mutate(reset bool, change func(*Form) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !change(&c.form) {
		return false
	}
	c.gen++
	if reset {
		if c.form.Suppressed {
			c.log.Debug("auto-fill suppression cleared", zap.String("symbol", c.form.Symbol))
		}
		c.form.Suppressed = false
	}
	return true
}

func (c *Controller) fill() (risk.Levels, bool) {
	tok, ok := c.Begin()
	if !ok {
		return risk.Levels{}, false
	}
	lv, ok := risk.Compute(tok.req)
	if !ok {
		// leave the fields as they are
		return risk.Levels{}, false
	}
	if err := c.Apply(tok, lv); err != nil {
		c.log.Debug("auto-fill result dropped", zap.String("symbol", tok.req.Symbol), zap.Error(err))
		return risk.Levels{}, false
	}
	return lv, true
}

func (c *Controller) requestLocked() (risk.Request, bool) {
	f := c.form
	if f.Suppressed || f.Symbol == "" || f.Volume <= 0 {
		return risk.Request{}, false
	}
	entry := f.PendingPrice
	if f.Kind != risk.Pending {
		entry = c.tick.EntryFor(string(f.Side))
	}
	if entry <= 0 {
		return risk.Request{}, false
	}
	return risk.Request{Symbol: f.Symbol, Side: f.Side, Kind: f.Kind, Entry: entry, Config: c.cfg}, true
}

func (c *Controller) writeLocked(lv risk.Levels) {
	sl, tp := lv.StopLoss, lv.TakeProfit
	c.form.StopLoss = &sl
	c.form.TakeProfit = &tp
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
