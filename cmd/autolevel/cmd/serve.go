package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/autolevel/broker"
	"github.com/rustyeddy/autolevel/broker/paper"
	"github.com/rustyeddy/autolevel/config"
	"github.com/rustyeddy/autolevel/internal/logger"
	"github.com/rustyeddy/autolevel/internal/server"
	"github.com/rustyeddy/autolevel/journal"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/ticket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the levels API and the auto-fill websocket",
	Long: `Start the HTTP server. Ticks arrive either through POST /api/ticks or
from the quote feed configured under feed.url. Orders go to an in-memory
paper account and are journaled.

Example:
  autolevel serve --config autolevel.yaml --addr :8088`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	ticks := pricing.NewTickStore()
	eng := paper.NewEngine(broker.Account{
		ID:       cfg.Account.ID,
		Currency: cfg.Account.Currency,
		Balance:  cfg.Account.Balance,
	}, ticks, j, log.Named("paper"))

	opts := server.Options{
		Addr:       cfg.Server.Addr,
		Risk:       cfg.Risk,
		Thresholds: cfg.Confidence,
		Ticks:      ticks,
		Journal:    j,
		RatePerSec: cfg.Server.RatePerSec,
		Burst:      cfg.Server.Burst,
		Logger:     log.Named("http"),
		Submitter: &ticket.Submitter{
			Broker:    eng,
			Journal:   j,
			Policy:    cfg.Policy,
			Deviation: cfg.Server.Deviation,
			Log:       log.Named("ticket"),
		},
	}
	if lister, ok := j.(server.OrderLister); ok {
		opts.Orders = lister
	}
	srv := server.New(opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Feed.URL != "" {
		feed, err := newFeed(cfg.Feed, ticks, log.Named("feed"))
		if err != nil {
			return err
		}
		go func() {
			if err := feed(ctx); err != nil && ctx.Err() == nil {
				log.Error("quote feed stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newFeed builds the quote feed runner for fc.Mode.
func newFeed(fc config.FeedConfig, ticks *pricing.TickStore, log *zap.Logger) (func(context.Context) error, error) {
	if fc.Mode == "stream" {
		s := &pricing.Stream{
			BaseURL: fc.URL,
			Token:   fc.Token,
			Symbols: fc.Symbols,
			Store:   ticks,
			Log:     log,
		}
		return s.Run, nil
	}
	interval, err := fc.PollInterval()
	if err != nil {
		return nil, err
	}
	p := &pricing.Poller{
		Source:   pricing.NewHTTPSource(fc.URL, fc.Token, fc.RatePerSec),
		Store:    ticks,
		Symbols:  fc.Symbols,
		Interval: interval,
		Log:      log,
	}
	return p.Run, nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		j, err := journal.NewCSV(jc.OrdersFile, jc.LevelsFile)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	default:
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}
}
