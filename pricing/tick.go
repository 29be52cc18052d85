package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/autolevel/market"
)

var ErrNoPrice = errors.New("price not found")

type TickSource interface {
	GetTick(ctx context.Context, symbol string) (Tick, error)
}

type Tick struct {
	Instrument string    `json:"symbol"`
	Time       time.Time `json:"time"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
}

func (t Tick) Mid() float64 {
	if t.Bid == 0 && t.Ask == 0 {
		return 0
	}
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// EntryFor is the price a market order on side would fill at: buys lift
// the ask, sells hit the bid.
func (t Tick) EntryFor(side string) float64 {
	if side == "sell" {
		return t.Bid
	}
	return t.Ask
}

func (t Tick) Validate() error {
	if t.Instrument == "" {
		return fmt.Errorf("tick symbol is required")
	}
	if t.Bid <= 0 || t.Ask <= 0 {
		return fmt.Errorf("tick %s: bid and ask must be positive", t.Instrument)
	}
	if t.Ask < t.Bid {
		return fmt.Errorf("tick %s: ask %.5f below bid %.5f", t.Instrument, t.Ask, t.Bid)
	}
	return nil
}

// TickStore keeps the latest tick per symbol and fans updates out to
// subscribers. Symbols are stored normalized.
type TickStore struct {
	mu     sync.RWMutex
	ticks  map[string]Tick
	subs   map[string]map[int]chan Tick
	nextID int
}

func NewTickStore() *TickStore {
	return &TickStore{
		ticks: make(map[string]Tick),
		subs:  make(map[string]map[int]chan Tick),
	}
}

func (ps *TickStore) Set(p Tick) {
	p.Instrument = market.Normalize(p.Instrument)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.ticks[p.Instrument] = p
	for _, ch := range ps.subs[p.Instrument] {
		// drop the stale tick so slow readers always see the latest
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}

func (ps *TickStore) Get(instr string) (Tick, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.ticks[market.Normalize(instr)]
	if !ok {
		return Tick{}, ErrNoPrice
	}
	return p, nil
}

// GetTick makes the store usable as a TickSource.
func (ps *TickStore) GetTick(ctx context.Context, symbol string) (Tick, error) {
	return ps.Get(symbol)
}

// Symbols lists the symbols with a stored tick.
func (ps *TickStore) Symbols() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]string, 0, len(ps.ticks))
	for k := range ps.ticks {
		out = append(out, k)
	}
	return out
}

// Subscribe returns a channel receiving every new tick for symbol. The
// channel holds one tick; cancel must be called to release it.
func (ps *TickStore) Subscribe(symbol string) (<-chan Tick, func()) {
	symbol = market.Normalize(symbol)
	ch := make(chan Tick, 1)

	ps.mu.Lock()
	id := ps.nextID
	ps.nextID++
	if ps.subs[symbol] == nil {
		ps.subs[symbol] = make(map[int]chan Tick)
	}
	ps.subs[symbol][id] = ch
	ps.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ps.mu.Lock()
			defer ps.mu.Unlock()
			delete(ps.subs[symbol], id)
			if len(ps.subs[symbol]) == 0 {
				delete(ps.subs, symbol)
			}
			close(ch)
		})
	}
	return ch, cancel
}
