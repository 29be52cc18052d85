package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rustyeddy/autolevel/config"
	"github.com/rustyeddy/autolevel/journal"
	"github.com/rustyeddy/autolevel/market"
	"github.com/rustyeddy/autolevel/pkg/id"
	"github.com/rustyeddy/autolevel/risk"
	"github.com/spf13/cobra"
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Compute stop loss and take profit for an entry",
	Long: `Compute SL/TP prices for a market or pending order from the risk
configuration. Flags override the values from the config file.

Examples:
  autolevel levels --symbol EURUSD --side buy --entry 1.1000
  autolevel levels --symbol USDJPY --side sell --entry 150.000 --kind pending --strategy PIPS
  autolevel levels --symbol EURUSD --side buy --entry 1.1000 --equity 10000`,
	RunE: runLevels,
}

var (
	lvSymbol   string
	lvSide     string
	lvEntry    string
	lvKind     string
	lvRisk     float64
	lvMaxRisk  float64
	lvStrategy string
	lvRR       float64
	lvEquity   float64
	lvJSON     bool
	lvRecord   bool
)

func init() {
	rootCmd.AddCommand(levelsCmd)

	levelsCmd.Flags().StringVarP(&lvSymbol, "symbol", "s", "", "instrument symbol (required)")
	levelsCmd.Flags().StringVar(&lvSide, "side", "buy", "order side (buy, sell)")
	levelsCmd.Flags().StringVarP(&lvEntry, "entry", "e", "", "entry price (required)")
	levelsCmd.Flags().StringVarP(&lvKind, "kind", "k", "market", "order kind (market, pending)")
	levelsCmd.Flags().Float64Var(&lvRisk, "risk", 0, "default risk percent")
	levelsCmd.Flags().Float64Var(&lvMaxRisk, "max-risk", 0, "max risk percent")
	levelsCmd.Flags().StringVar(&lvStrategy, "strategy", "", "SL/TP strategy (ATR, PIPS, PERCENT)")
	levelsCmd.Flags().Float64Var(&lvRR, "rr", 0, "reward to risk target")
	levelsCmd.Flags().Float64Var(&lvEquity, "equity", 0, "account equity; prints a suggested volume when set")
	levelsCmd.Flags().BoolVar(&lvJSON, "json", false, "print JSON")
	levelsCmd.Flags().BoolVar(&lvRecord, "record", false, "write the result to the configured journal")

	levelsCmd.MarkFlagRequired("symbol")
	levelsCmd.MarkFlagRequired("entry")
}

type levelsOutput struct {
	Symbol string       `json:"symbol"`
	Side   risk.Side    `json:"side"`
	Kind   risk.Kind    `json:"kind"`
	Entry  float64      `json:"entry"`
	Config risk.Config  `json:"risk"`
	Levels *risk.Levels `json:"levels"`
	Volume *risk.Result `json:"volume,omitempty"`
}

func runLevels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	side, err := risk.ParseSide(lvSide)
	if err != nil {
		return err
	}
	kind, err := risk.ParseKind(lvKind)
	if err != nil {
		return err
	}
	entry, err := risk.ParsePrice(lvEntry)
	if err != nil {
		return err
	}

	rc := cfg.Risk
	flags := cmd.Flags()
	if flags.Changed("risk") {
		rc.DefaultRiskPercent = lvRisk
	}
	if flags.Changed("max-risk") {
		rc.MaxRiskPercent = lvMaxRisk
	}
	if flags.Changed("strategy") {
		if rc.Strategy, err = risk.ParseStrategy(lvStrategy); err != nil {
			return err
		}
	}
	if flags.Changed("rr") {
		rc.RRTarget = lvRR
	}

	symbol := market.Normalize(lvSymbol)
	out := levelsOutput{Symbol: symbol, Side: side, Kind: kind, Entry: entry, Config: rc}
	lv, ok := risk.Compute(risk.Request{Symbol: symbol, Side: side, Kind: kind, Entry: entry, Config: rc})
	if ok {
		out.Levels = &lv
		if lvEquity > 0 {
			vol := risk.SuggestVolume(symbol, entry, lv, rc, lvEquity, quoteToAccount(symbol, cfg.Account.Currency, entry))
			out.Volume = &vol
		}
		if lvRecord {
			if err := recordLevels(cfg.Journal, out); err != nil {
				return err
			}
		}
	}

	w := cmd.OutOrStdout()
	if lvJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if out.Levels == nil {
		fmt.Fprintf(w, "No levels for %s %s %s @ %s\n", symbol, side, kind, lvEntry)
		return nil
	}

	m := market.ResolveMetrics(symbol)
	d := m.Decimals
	fmt.Fprintf(w, "%s %s %s @ %.*f\n", symbol, side, kind, d, entry)
	fmt.Fprintf(w, "  Strategy: %s (Risk: %.2f%%, RR: %.2f)\n", rc.Strategy, rc.EffectiveRiskPercent(), rc.EffectiveRR())
	fmt.Fprintf(w, "  Stop loss:   %.*f (%.1f pips)\n", d, lv.StopLoss, m.Pips(entry-lv.StopLoss))
	fmt.Fprintf(w, "  Take profit: %.*f (%.1f pips)\n", d, lv.TakeProfit, m.Pips(lv.TakeProfit-entry))
	if out.Volume != nil {
		fmt.Fprintf(w, "  Volume: %.2f lots (risk %.2f %s)\n", out.Volume.Lots, out.Volume.RiskAmount, cfg.Account.Currency)
	}
	return nil
}

func recordLevels(jc config.JournalConfig, out levelsOutput) error {
	j, err := openJournal(jc)
	if err != nil {
		return err
	}
	defer j.Close()

	return j.RecordLevels(journal.LevelRecord{
		ID:         id.New(),
		Time:       time.Now().UTC(),
		Symbol:     out.Symbol,
		Side:       string(out.Side),
		Kind:       string(out.Kind),
		Strategy:   string(out.Config.Strategy),
		Entry:      out.Entry,
		StopLoss:   out.Levels.StopLoss,
		TakeProfit: out.Levels.TakeProfit,
	})
}

// quoteToAccount has no live prices: exact when the account currency is
// one leg of the pair, 1 otherwise.
func quoteToAccount(symbol, accountCurrency string, entry float64) float64 {
	q, err := market.QuoteToAccountRate(symbol, accountCurrency, entry, nil)
	if err != nil {
		return 1
	}
	return q
}
