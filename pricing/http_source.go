package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/autolevel/market"
	"golang.org/x/time/rate"
)

// HTTPSource reads quotes from a JSON feed exposing GET {BaseURL}/ticks/{symbol}
// answering {"bid":..,"ask":..,"time":..}.
type HTTPSource struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

func NewHTTPSource(baseURL, token string, perSecond int) *HTTPSource {
	if perSecond <= 0 {
		perSecond = 5
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

type feedQuote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// StatusError is returned for non-200 feed responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("quote feed http %d: %s", e.StatusCode, e.Body)
}

func (s *HTTPSource) GetTick(ctx context.Context, symbol string) (Tick, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return Tick{}, err
		}
	}
	httpClient := s.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	symbol = market.Normalize(symbol)
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return Tick{}, err
	}
	u = u.JoinPath("ticks", symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Tick{}, err
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Tick{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return Tick{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var q feedQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return Tick{}, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	tk := Tick{Instrument: symbol, Bid: q.Bid, Ask: q.Ask, Time: q.Time}
	if tk.Time.IsZero() {
		tk.Time = time.Now().UTC()
	}
	if err := tk.Validate(); err != nil {
		return Tick{}, err
	}
	return tk, nil
}
