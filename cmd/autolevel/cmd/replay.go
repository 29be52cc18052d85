package cmd

import (
	"fmt"

	"github.com/rustyeddy/autolevel/broker"
	"github.com/rustyeddy/autolevel/broker/paper"
	"github.com/rustyeddy/autolevel/internal/logger"
	"github.com/rustyeddy/autolevel/pricing"
	"github.com/rustyeddy/autolevel/replay"
	"github.com/rustyeddy/autolevel/ticket"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay tick data and scripted orders from CSV",
	Long: `Replay ticks from a CSV file against the paper account. Rows may carry
ORDER, ORDER_SLTP or PENDING events; ORDER and PENDING get their stop
loss and take profit from the level engine.

Examples:
  autolevel replay --ticks data/eurusd.csv
  autolevel replay --ticks session.csv --speed 60`,
	RunE: runReplay,
}

var (
	replayTicksPath string
	replaySpeed     float64
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayTicksPath, "ticks", "t", "", "CSV file of ticks (time,symbol,bid,ask[,event,args...]) (required)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "pace multiplier (1 = real time, 0 = as fast as possible)")
	replayCmd.MarkFlagRequired("ticks")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewConsole(cfg.Logging.Level)
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
	}, ticks, j, log)
	sub := &ticket.Submitter{Broker: eng, Journal: j, Policy: cfg.Policy, Deviation: cfg.Server.Deviation, Log: log}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Replaying ticks from: %s\n", replayTicksPath)
	st, err := replay.CSV(cmd.Context(), replayTicksPath, ticks, sub, replay.Options{
		TickThenEvent: true,
		Risk:          cfg.Risk,
		Speed:         replaySpeed,
	})
	if err != nil {
		return fmt.Errorf("replay error: %w", err)
	}

	acct, _ := eng.GetAccount(cmd.Context())
	fmt.Fprintf(w, "\nReplay Complete!\n")
	fmt.Fprintf(w, "  Ticks: %d\n", st.Ticks)
	fmt.Fprintf(w, "  Orders: %d placed, %d rejected\n", st.Orders, st.Rejected)
	fmt.Fprintf(w, "  Open trades: %d\n", acct.OpenTrades)
	return nil
}
