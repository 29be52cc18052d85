package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rustyeddy/autolevel/broker"
	"github.com/rustyeddy/autolevel/confidence"
	"github.com/rustyeddy/autolevel/journal"
	"github.com/rustyeddy/autolevel/market"
	"github.com/rustyeddy/autolevel/pkg/id"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/risk"
	"github.com/rustyeddy/autolevel/ticket"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type metricsResponse struct {
	Symbol      string       `json:"symbol"`
	PipLocation int          `json:"pip_location"`
	PipSize     float64      `json:"pip_size"`
	Decimals    int          `json:"decimals"`
	ATREstimate float64      `json:"atr_estimate"`
	Known       bool         `json:"known"`
	Class       market.Class `json:"class,omitempty"`
}

func metricsFor(symbol string) metricsResponse {
	m := market.ResolveMetrics(symbol)
	resp := metricsResponse{
		Symbol:      market.Normalize(symbol),
		PipLocation: m.PipLocation,
		PipSize:     m.PipSize,
		Decimals:    m.Decimals,
		ATREstimate: m.ATREstimate,
	}
	if meta, ok := market.Lookup(symbol); ok {
		resp.Known = true
		resp.Class = meta.Class
	}
	return resp
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, metricsFor(r.PathValue("symbol")))
}

func (s *Server) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.riskConfig())
}

func (s *Server) handlePutRisk(w http.ResponseWriter, r *http.Request) {
	var cfg risk.Config
	if err := decodeBody(w, r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.risk = cfg
	s.mu.Unlock()
	s.logger.Info("risk settings updated",
		zap.Float64("default_risk_percent", cfg.DefaultRiskPercent),
		zap.Float64("max_risk_percent", cfg.MaxRiskPercent),
		zap.String("strategy", string(cfg.Strategy)),
		zap.Float64("rr_target", cfg.RRTarget),
	)
	s.respond(w, http.StatusOK, cfg)
}

// levelsRequest carries untyped values so that bad input is reported
// here rather than reaching the engine. Entry may be a number or a
// numeric string.
type levelsRequest struct {
	Symbol string       `json:"symbol"`
	Side   string       `json:"side"`
	Kind   string       `json:"kind"`
	Entry  json.Number  `json:"entry,omitempty"`
	Risk   *risk.Config `json:"risk,omitempty"`
}

type levelsResponse struct {
	Symbol string       `json:"symbol"`
	Side   risk.Side    `json:"side"`
	Kind   risk.Kind    `json:"kind"`
	Entry  float64      `json:"entry"`
	Levels *risk.Levels `json:"levels"`
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	var req levelsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	symbol := market.Normalize(req.Symbol)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	side, err := risk.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := risk.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := s.riskConfig()
	if req.Risk != nil {
		cfg = *req.Risk
	}

	var entry float64
	switch {
	case req.Entry != "":
		if entry, err = risk.ParsePrice(req.Entry.String()); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	case kind == risk.Pending:
		writeError(w, http.StatusBadRequest, "entry is required for pending orders")
		return
	default:
		tk, err := s.ticks.Get(symbol)
		if err != nil {
			// No quote yet: nothing to fill.
			s.respond(w, http.StatusOK, levelsResponse{Symbol: symbol, Side: side, Kind: kind})
			return
		}
		entry = tk.EntryFor(string(side))
	}

	resp := levelsResponse{Symbol: symbol, Side: side, Kind: kind, Entry: entry}
	lv, ok := risk.Compute(risk.Request{Symbol: symbol, Side: side, Kind: kind, Entry: entry, Config: cfg})
	if ok {
		resp.Levels = &lv
		s.recordLevels(symbol, side, kind, cfg.Strategy, entry, lv)
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) recordLevels(symbol string, side risk.Side, kind risk.Kind, strat risk.Strategy, entry float64, lv risk.Levels) {
	err := s.journal.RecordLevels(journal.LevelRecord{
		ID:         id.New(),
		Time:       time.Now().UTC(),
		Symbol:     symbol,
		Side:       string(side),
		Kind:       string(kind),
		Strategy:   string(strat),
		Entry:      entry,
		StopLoss:   lv.StopLoss,
		TakeProfit: lv.TakeProfit,
	})
	if err != nil {
		s.logger.Error("Failed to journal levels", zap.String("symbol", symbol), zap.Error(err))
	}
}

func (s *Server) handleConfidence(w http.ResponseWriter, r *http.Request) {
	var in confidence.Input
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := validateInput(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, http.StatusOK, confidence.Score(in, s.thresholds))
}

func validateInput(in confidence.Input) error {
	if _, err := confidence.ParseNews(string(in.News)); err != nil {
		return err
	}
	if _, err := confidence.ParseSession(string(in.Session)); err != nil {
		return err
	}
	for _, v := range in.Votes {
		if _, err := confidence.ParseDirection(string(v.Direction)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handlePostTick(w http.ResponseWriter, r *http.Request) {
	var tk pricing.Tick
	if err := decodeBody(w, r, &tk); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	tk.Instrument = market.Normalize(tk.Instrument)
	if tk.Time.IsZero() {
		tk.Time = time.Now().UTC()
	}
	if err := tk.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.ticks.Set(tk)
	s.respond(w, http.StatusAccepted, tk)
}

func (s *Server) handleGetTick(w http.ResponseWriter, r *http.Request) {
	tk, err := s.ticks.Get(r.PathValue("symbol"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respond(w, http.StatusOK, tk)
}

type orderRequest struct {
	Order  broker.OrderRequest `json:"order"`
	Signal *confidence.Input   `json:"signal,omitempty"`
}

type orderResponse struct {
	ticket.Result
	Signal *confidence.Signal `json:"signal,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func (s *Server) handlePostOrder(w http.ResponseWriter, r *http.Request) {
	if s.submitter == nil {
		writeError(w, http.StatusNotImplemented, "order submission is not configured")
		return
	}
	var req orderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Order.Kind == "" {
		req.Order.Kind = risk.Market
	}

	var resp orderResponse
	if req.Signal != nil {
		if err := validateInput(*req.Signal); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sig := confidence.Score(*req.Signal, s.thresholds)
		resp.Signal = &sig
	}

	res, err := s.submitter.Submit(r.Context(), req.Order, resp.Signal)
	resp.Result = res
	switch {
	case err == nil:
		s.respond(w, http.StatusCreated, resp)
	case errors.Is(err, ticket.ErrRejected):
		resp.Error = err.Error()
		s.respond(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, pricing.ErrNoPrice), errors.Is(err, broker.ErrNoPrice):
		writeError(w, http.StatusConflict, err.Error())
	case res.Decision.Allowed:
		s.logger.Error("Failed to place order", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if s.orders == nil {
		writeError(w, http.StatusNotImplemented, "order journal is not queryable")
		return
	}
	day := r.URL.Query().Get("day")
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	}
	start, end, err := journal.DayBounds(time.UTC, day)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := s.orders.ListOrdersBetween(start, end)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []journal.OrderRecord{}
	}
	s.respond(w, http.StatusOK, orders)
}
