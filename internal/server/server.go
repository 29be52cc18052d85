package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rustyeddy/autolevel/confidence"
	"github.com/rustyeddy/autolevel/journal"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/risk"
	"github.com/rustyeddy/autolevel/ticket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OrderLister is implemented by journals that can be queried.
type OrderLister interface {
	ListOrdersBetween(start, end time.Time) ([]journal.OrderRecord, error)
}

type Options struct {
	Addr       string
	Risk       risk.Config
	Thresholds confidence.Thresholds
	Ticks      *pricing.TickStore
	Submitter  *ticket.Submitter
	Journal    journal.Journal
	Orders     OrderLister
	RatePerSec int
	Burst      int
	Logger     *zap.Logger
}

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	mu         sync.RWMutex
	risk       risk.Config
	thresholds confidence.Thresholds
	ticks      *pricing.TickStore
	submitter  *ticket.Submitter
	journal    journal.Journal
	orders     OrderLister
	limiter    *rate.Limiter
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Ticks == nil {
		opts.Ticks = pricing.NewTickStore()
	}
	if opts.Journal == nil {
		opts.Journal = journal.Discard
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.RatePerSec * 2
	}
	if opts.Thresholds == (confidence.Thresholds{}) {
		opts.Thresholds = confidence.DefaultThresholds()
	}

	s := &Server{
		router:     http.NewServeMux(),
		risk:       opts.Risk,
		thresholds: opts.Thresholds,
		ticks:      opts.Ticks,
		submitter:  opts.Submitter,
		journal:    opts.Journal,
		orders:     opts.Orders,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		logger:     opts.Logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Instrument metrics
	s.router.HandleFunc("GET /api/metrics/{symbol}", s.handleMetrics)

	// Risk settings
	s.router.HandleFunc("GET /api/risk", s.handleGetRisk)
	s.router.HandleFunc("PUT /api/risk", s.handlePutRisk)

	// Levels
	s.router.HandleFunc("POST /api/levels", s.handleLevels)

	// Confidence
	s.router.HandleFunc("POST /api/confidence", s.handleConfidence)

	// Ticks
	s.router.HandleFunc("POST /api/ticks", s.handlePostTick)
	s.router.HandleFunc("GET /api/ticks/{symbol}", s.handleGetTick)

	// Orders
	s.router.HandleFunc("POST /api/orders", s.handlePostOrder)
	s.router.HandleFunc("GET /api/orders", s.handleListOrders)

	// Streaming order form
	s.router.HandleFunc("GET /ws/levels", s.handleLevelsWS)
}

// Handler is the router wrapped in logging and rate limiting.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.rateLimit(s.router))
}

func (s *Server) riskConfig() risk.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.risk
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
