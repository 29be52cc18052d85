package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rustyeddy/autolevel/autofill"
	"github.com/rustyeddy/autolevel/market"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/risk"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// clientMessage is one order form edit sent by the dashboard.
//
//	{"op":"volume","value":0.5}
//	{"op":"stop_loss","value":1.0950}
//	{"op":"stop_loss","value":null}
type clientMessage struct {
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value"`
}

type formUpdate struct {
	Type   string        `json:"type"` // form or error
	Form   autofill.Form `json:"form"`
	Tick   *pricing.Tick `json:"tick,omitempty"`
	Filled bool          `json:"filled"`
	Error  string        `json:"error,omitempty"`
}

// handleLevelsWS keeps one order form per connection. Every tick for the
// form's symbol and every edit from the client is answered with the
// current form, auto-filled unless the user has taken over SL/TP.
func (s *Server) handleLevelsWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := market.Normalize(q.Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	side, err := risk.ParseSide(q.Get("side"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := risk.ParseKind(q.Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	volume := 1.0
	if v := q.Get("volume"); v != "" {
		if volume, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid volume "+strconv.Quote(v))
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctl := autofill.NewController(s.riskConfig(), s.logger)
	ctl.SetSide(side)
	ctl.SetKind(kind)
	ctl.SetVolume(volume)
	_, filled := ctl.SetSymbol(symbol)

	ticks, cancel := s.ticks.Subscribe(symbol)
	defer func() { cancel() }()

	var last *pricing.Tick
	if tk, err := s.ticks.Get(symbol); err == nil {
		last = &tk
		_, filled = ctl.OnTick(tk)
	}

	done := make(chan struct{})
	defer close(done)
	msgs := s.readMessages(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	send := func(u formUpdate) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(u); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	if !send(formUpdate{Type: "form", Form: ctl.Form(), Tick: last, Filled: filled}) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return

		case tk, ok := <-ticks:
			if !ok {
				return
			}
			last = &tk
			_, filled := ctl.OnTick(tk)
			if !send(formUpdate{Type: "form", Form: ctl.Form(), Tick: last, Filled: filled}) {
				return
			}

		case m, ok := <-msgs:
			if !ok {
				return
			}
			filled, err := applyMessage(ctl, m)
			if err != nil {
				if !send(formUpdate{Type: "error", Form: ctl.Form(), Tick: last, Error: err.Error()}) {
					return
				}
				continue
			}
			if sym := ctl.Form().Symbol; sym != symbol {
				symbol = sym
				cancel()
				ticks, cancel = s.ticks.Subscribe(symbol)
				last = nil
				if tk, err := s.ticks.Get(symbol); err == nil {
					last = &tk
					_, filled = ctl.OnTick(tk)
				}
			}
			if !send(formUpdate{Type: "form", Form: ctl.Form(), Tick: last, Filled: filled}) {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readMessages pumps client messages until the connection fails or done
// is closed. The returned channel is closed when reading stops.
func (s *Server) readMessages(conn *websocket.Conn, done <-chan struct{}) <-chan clientMessage {
	out := make(chan clientMessage)
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(out)
		for {
			var m clientMessage
			if err := conn.ReadJSON(&m); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read failed", zap.Error(err))
				}
				return
			}
			select {
			case out <- m:
			case <-done:
				return
			}
		}
	}()
	return out
}

func applyMessage(ctl *autofill.Controller, m clientMessage) (bool, error) {
	switch m.Op {
	case "symbol", "side", "kind":
		var v string
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return false, fmt.Errorf("%s: %w", m.Op, err)
		}
		switch m.Op {
		case "symbol":
			if market.Normalize(v) == "" {
				return false, fmt.Errorf("symbol is required")
			}
			_, ok := ctl.SetSymbol(v)
			return ok, nil
		case "side":
			side, err := risk.ParseSide(v)
			if err != nil {
				return false, err
			}
			_, ok := ctl.SetSide(side)
			return ok, nil
		default:
			kind, err := risk.ParseKind(v)
			if err != nil {
				return false, err
			}
			_, ok := ctl.SetKind(kind)
			return ok, nil
		}

	case "volume", "pending_price":
		var v float64
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return false, fmt.Errorf("%s: %w", m.Op, err)
		}
		if m.Op == "volume" {
			_, ok := ctl.SetVolume(v)
			return ok, nil
		}
		_, ok := ctl.SetPendingPrice(v)
		return ok, nil

	case "stop_loss", "take_profit":
		var v *float64
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return false, fmt.Errorf("%s: %w", m.Op, err)
		}
		if m.Op == "stop_loss" {
			ctl.EditStopLoss(v)
		} else {
			ctl.EditTakeProfit(v)
		}
		return false, nil

	case "risk":
		var cfg risk.Config
		if err := json.Unmarshal(m.Value, &cfg); err != nil {
			return false, fmt.Errorf("risk: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return false, err
		}
		_, ok := ctl.SetConfig(cfg)
		return ok, nil
	}
	return false, fmt.Errorf("unknown op %q", m.Op)
}
