package pricing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Poller copies ticks from a TickSource into a TickStore on an interval.
type Poller struct {
	Source   TickSource
	Store    *TickStore
	Symbols  []string
	Interval time.Duration
	MaxRetry time.Duration // total backoff budget per fetch
	Log      *zap.Logger
}

// Run polls until ctx is done. Fetch failures are logged and the symbol
// is retried on the next interval.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("tick poller started", zap.Strings("symbols", p.Symbols), zap.Duration("interval", interval))
	for {
		p.PollOnce(ctx)
		select {
		case <-ctx.Done():
			log.Info("tick poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce fetches every symbol once and returns how many were stored.
func (p *Poller) PollOnce(ctx context.Context) int {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	stored := 0
	for _, sym := range p.Symbols {
		tk, err := p.fetch(ctx, sym)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("fetch tick failed", zap.String("symbol", sym), zap.Error(err))
			}
			continue
		}
		p.Store.Set(tk)
		stored++
	}
	return stored
}

func (p *Poller) fetch(ctx context.Context, symbol string) (Tick, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = p.MaxRetry
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 5 * time.Second
	}

	var tk Tick
	op := func() error {
		var err error
		tk, err = p.Source.GetTick(ctx, symbol)
		if err == nil {
			return nil
		}
		// client errors will not improve on retry
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	return tk, err
}
