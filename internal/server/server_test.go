package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rustyeddy/autolevel/broker"
	"github.com/rustyeddy/autolevel/broker/paper"
	"github.com/rustyeddy/autolevel/confidence"
	"github.com/rustyeddy/autolevel/journal"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/risk"
	"github.com/rustyeddy/autolevel/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv     *Server
	ts      *httptest.Server
	ticks   *pricing.TickStore
	journal *journal.SQLite
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "journal.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	ticks := pricing.NewTickStore()
	eng := paper.NewEngine(broker.Account{ID: "paper", Currency: "USD", Balance: 10000}, ticks, j, nil)

	opts.Risk = risk.DefaultConfig()
	opts.Ticks = ticks
	opts.Journal = j
	opts.Orders = j
	opts.Submitter = &ticket.Submitter{Broker: eng, Journal: j, Policy: risk.DefaultPolicy(), Deviation: 10}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 1000
	}

	s := New(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &fixture{srv: s, ts: ts, ticks: ticks, journal: j}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if s, ok := body.(string); ok {
		rd = bytes.NewReader([]byte(s))
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	resp, body := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	resp, body := f.do(t, http.MethodGet, "/api/metrics/usd_jpy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m metricsResponse
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "USDJPY", m.Symbol)
	assert.Equal(t, 0.01, m.PipSize)
	assert.Equal(t, 3, m.Decimals)
	assert.Equal(t, 0.15, m.ATREstimate)
	assert.True(t, m.Known)

	_, body = f.do(t, http.MethodGet, "/api/metrics/FOOBAR", nil)
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, 0.0001, m.PipSize)
	assert.False(t, m.Known)
}

func TestLevels(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
		sl, tp float64
		null   bool
	}{
		{"market buy string entry", `{"symbol":"EURUSD","side":"buy","entry":"1.1000"}`, 200, 1.0985, 1.1030, false},
		{"market sell numeric entry", `{"symbol":"USDJPY","side":"sell","entry":150.000}`, 200, 150.15, 149.7, false},
		{"pending percent override", `{"symbol":"EURUSD","side":"buy","kind":"pending","entry":"1.1000",
			"risk":{"default_risk_percent":1,"max_risk_percent":2,"sltp_strategy":"PERCENT","rr_target":2}}`, 200, 1.089, 1.122, false},
		{"nonpositive entry is null", `{"symbol":"EURUSD","side":"buy","entry":"0"}`, 200, 0, 0, true},
		{"bad side", `{"symbol":"EURUSD","side":"long","entry":"1.1"}`, 400, 0, 0, false},
		{"bad entry", `{"symbol":"EURUSD","side":"buy","entry":"abc"}`, 400, 0, 0, false},
		{"missing symbol", `{"side":"buy","entry":"1.1"}`, 400, 0, 0, false},
		{"pending needs entry", `{"symbol":"EURUSD","side":"buy","kind":"pending"}`, 400, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/api/levels", tt.body)
			require.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.status != http.StatusOK {
				return
			}
			var lr levelsResponse
			require.NoError(t, json.Unmarshal(body, &lr))
			if tt.null {
				assert.Nil(t, lr.Levels)
				assert.Contains(t, string(body), `"levels":null`)
				return
			}
			require.NotNil(t, lr.Levels)
			assert.InDelta(t, tt.sl, lr.Levels.StopLoss, 1e-9)
			assert.InDelta(t, tt.tp, lr.Levels.TakeProfit, 1e-9)
		})
	}
}

func TestLevels_MarketEntryFromTick(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	resp, body := f.do(t, http.MethodPost, "/api/levels", `{"symbol":"EURUSD","side":"sell"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"levels":null`)

	f.ticks.Set(pricing.Tick{Instrument: "EURUSD", Bid: 1.1000, Ask: 1.1002})

	_, body = f.do(t, http.MethodPost, "/api/levels", `{"symbol":"EURUSD","side":"sell"}`)
	var lr levelsResponse
	require.NoError(t, json.Unmarshal(body, &lr))
	assert.Equal(t, 1.1000, lr.Entry)
	require.NotNil(t, lr.Levels)
	assert.InDelta(t, 1.1015, lr.Levels.StopLoss, 1e-9)
	assert.InDelta(t, 1.0970, lr.Levels.TakeProfit, 1e-9)

	day := time.Now().UTC()
	recs, err := f.journal.ListLevelsBetween(day.Add(-time.Hour), day.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRiskSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	resp, _ := f.do(t, http.MethodPut, "/api/risk", `{"default_risk_percent":1,"max_risk_percent":2,"sltp_strategy":"MAGIC","rr_target":2}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/api/risk", `{"default_risk_percent":1,"max_risk_percent":2,"sltp_strategy":"PERCENT","rr_target":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := f.do(t, http.MethodGet, "/api/risk", nil)
	var cfg risk.Config
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, risk.PERCENT, cfg.Strategy)
	assert.Equal(t, 3.0, cfg.RRTarget)
}

func TestConfidence(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	in := confidence.Input{
		Votes: []confidence.Vote{
			{Source: "trend", Direction: confidence.Buy, Weight: 1, Confidence: 1},
		},
		News:    confidence.NewsMedium,
		Session: confidence.SessionLondon,
	}
	resp, body := f.do(t, http.MethodPost, "/api/confidence", in)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sig confidence.Signal
	require.NoError(t, json.Unmarshal(body, &sig))
	assert.InDelta(t, 85.0, sig.Score, 1e-9)
	assert.Equal(t, confidence.Execute, sig.Action)

	resp, _ = f.do(t, http.MethodPost, "/api/confidence", `{"votes":[{"direction":"up","weight":1,"confidence":1}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTicks(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	resp, _ := f.do(t, http.MethodGet, "/api/ticks/GBPUSD", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/ticks", `{"symbol":"gbp_usd","bid":1.2700,"ask":1.2702}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/ticks/GBPUSD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tk pricing.Tick
	require.NoError(t, json.Unmarshal(body, &tk))
	assert.Equal(t, "GBPUSD", tk.Instrument)
	assert.Equal(t, 1.2702, tk.Ask)

	resp, _ = f.do(t, http.MethodPost, "/api/ticks", `{"symbol":"GBPUSD","bid":1.2702,"ask":1.2700}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrders(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.ticks.Set(pricing.Tick{Instrument: "EURUSD", Bid: 1.0999, Ask: 1.1000})

	ok := `{"order":{"symbol":"EURUSD","side":"buy","volume":0.1,"sl":1.0985,"tp":1.1030}}`
	resp, body := f.do(t, http.MethodPost, "/api/orders", ok)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var or orderResponse
	require.NoError(t, json.Unmarshal(body, &or))
	assert.Equal(t, broker.StatusFilled, or.Order.Status)
	assert.True(t, or.Decision.Allowed)

	tooBig := `{"order":{"symbol":"EURUSD","side":"buy","volume":10,"sl":1.0985,"tp":1.1030}}`
	resp, body = f.do(t, http.MethodPost, "/api/orders", tooBig)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &or))
	assert.Equal(t, broker.StatusRejected, or.Order.Status)
	assert.Contains(t, or.Decision.Codes(), "RISK_TOO_HIGH")

	resp, _ = f.do(t, http.MethodPost, "/api/orders", `{"order":{"symbol":"GBPUSD","side":"buy","volume":0.1}}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/orders?day="+time.Now().UTC().Format("2006-01-02"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []journal.OrderRecord
	require.NoError(t, json.Unmarshal(body, &recs))
	assert.Len(t, recs, 2)

	resp, _ = f.do(t, http.MethodGet, "/api/orders?day=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrders_SignalGate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.srv.submitter.Policy.RequireConfidence = true
	f.ticks.Set(pricing.Tick{Instrument: "EURUSD", Bid: 1.0999, Ask: 1.1000})

	weak := `{"order":{"symbol":"EURUSD","side":"buy","volume":0.1,"sl":1.0985,"tp":1.1030},
		"signal":{"votes":[{"source":"a","direction":"buy","weight":1,"confidence":0.4}],"session":"london"}}`
	resp, body := f.do(t, http.MethodPost, "/api/orders", weak)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var or orderResponse
	require.NoError(t, json.Unmarshal(body, &or))
	require.NotNil(t, or.Signal)
	assert.Equal(t, confidence.Observe, or.Signal.Action)
	assert.Contains(t, or.Decision.Codes(), "CONFIDENCE_BELOW_EXECUTE")
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{RatePerSec: 1, Burst: 1})

	resp, _ := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func readForm(t *testing.T, conn *websocket.Conn) formUpdate {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var u formUpdate
	require.NoError(t, conn.ReadJSON(&u))
	return u
}

func TestLevelsWebsocket(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.ticks.Set(pricing.Tick{Instrument: "EURUSD", Bid: 1.1999, Ask: 1.2000})

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/levels?symbol=EURUSD&side=buy&volume=0.1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	u := readForm(t, conn)
	require.Equal(t, "form", u.Type)
	assert.True(t, u.Filled)
	require.NotNil(t, u.Form.StopLoss)
	assert.InDelta(t, 1.1985, *u.Form.StopLoss, 1e-9)
	assert.InDelta(t, 1.2030, *u.Form.TakeProfit, 1e-9)

	// a manual SL edit survives later ticks
	require.NoError(t, conn.WriteJSON(clientMessage{Op: "stop_loss", Value: json.RawMessage(`1.1900`)}))
	u = readForm(t, conn)
	assert.True(t, u.Form.Suppressed)
	assert.InDelta(t, 1.19, *u.Form.StopLoss, 1e-9)

	f.ticks.Set(pricing.Tick{Instrument: "EURUSD", Bid: 1.2099, Ask: 1.2100})
	u = readForm(t, conn)
	assert.False(t, u.Filled)
	assert.InDelta(t, 1.19, *u.Form.StopLoss, 1e-9)
	assert.InDelta(t, 1.2030, *u.Form.TakeProfit, 1e-9)

	// changing volume hands control back to auto-fill
	require.NoError(t, conn.WriteJSON(clientMessage{Op: "volume", Value: json.RawMessage(`0.2`)}))
	u = readForm(t, conn)
	assert.False(t, u.Form.Suppressed)
	assert.True(t, u.Filled)
	assert.InDelta(t, 1.2085, *u.Form.StopLoss, 1e-9)

	require.NoError(t, conn.WriteJSON(clientMessage{Op: "side", Value: json.RawMessage(`"long"`)}))
	u = readForm(t, conn)
	assert.Equal(t, "error", u.Type)
	assert.Equal(t, risk.Buy, u.Form.Side)
}

func TestLevelsWebsocket_SymbolSwitch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.ticks.Set(pricing.Tick{Instrument: "USDJPY", Bid: 150.000, Ask: 150.020})

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/levels?symbol=EURUSD&side=sell"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	u := readForm(t, conn)
	assert.False(t, u.Filled)
	assert.Nil(t, u.Tick)
	assert.Nil(t, u.Form.StopLoss)

	require.NoError(t, conn.WriteJSON(clientMessage{Op: "symbol", Value: json.RawMessage(`"usdjpy"`)}))
	u = readForm(t, conn)
	assert.Equal(t, "USDJPY", u.Form.Symbol)
	require.NotNil(t, u.Form.StopLoss)
	assert.InDelta(t, 150.15, *u.Form.StopLoss, 1e-9)
	assert.InDelta(t, 149.7, *u.Form.TakeProfit, 1e-9)

}

func TestLevelsWebsocket_BadQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})

	resp, _ := f.do(t, http.MethodGet, "/ws/levels?side=buy", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
