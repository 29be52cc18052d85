package pricing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rustyeddy/autolevel/market"
	"go.uber.org/zap"
)

// Stream follows a newline delimited JSON quote stream at
// GET {BaseURL}/stream?symbols=A,B and writes every price into Store.
// Lines look like
//
//	{"type":"PRICE","symbol":"EURUSD","bid":1.1,"ask":1.1002,"time":"..."}
//	{"type":"HEARTBEAT","time":"..."}
type Stream struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Symbols []string
	Store   *TickStore
	Log     *zap.Logger
}

type streamMsg struct {
	Type string `json:"type"`
	feedQuote
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (s *Stream) Run(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	op := func() error {
		n, err := s.connect(ctx)
		if n > 0 {
			// a productive connection starts the backoff over
			b.Reset()
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		log.Warn("quote stream dropped, reconnecting", zap.Int("ticks", n), zap.Error(err))
		return err
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func (s *Stream) connect(ctx context.Context) (int, error) {
	if s.BaseURL == "" {
		return 0, fmt.Errorf("stream: missing base url")
	}
	if len(s.Symbols) == 0 {
		return 0, fmt.Errorf("stream: missing symbols")
	}
	httpClient := s.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(strings.TrimRight(s.BaseURL, "/"))
	if err != nil {
		return 0, err
	}
	u = u.JoinPath("stream")
	syms := make([]string, len(s.Symbols))
	for i, sym := range s.Symbols {
		syms[i] = market.Normalize(sym)
	}
	q := u.Query()
	q.Set("symbols", strings.Join(syms, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return 0, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return Consume(ctx, resp.Body, s.Store)
}

// Consume reads stream lines from r into store until EOF or ctx is done
// and returns the number of ticks stored. Heartbeats and unknown message
// types are skipped; malformed lines abort.
func Consume(ctx context.Context, r io.Reader, store *TickStore) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	stored := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var msg streamMsg
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return stored, fmt.Errorf("stream: bad json: %w (line=%q)", err, trimForErr(line))
		}
		if !strings.EqualFold(msg.Type, "PRICE") {
			continue
		}

		tk := Tick{Instrument: market.Normalize(msg.Symbol), Time: msg.Time, Bid: msg.Bid, Ask: msg.Ask}
		if tk.Time.IsZero() {
			tk.Time = time.Now().UTC()
		}
		if err := tk.Validate(); err != nil {
			continue
		}
		store.Set(tk)
		stored++
	}

	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}
		return stored, err
	}
	return stored, nil
}

func trimForErr(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
