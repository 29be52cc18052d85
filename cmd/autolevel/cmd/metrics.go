package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/rustyeddy/autolevel/market"
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics [symbol...]",
	Short: "Show pip size, precision and ATR estimate per instrument",
	Long: `Resolve instrument metrics. Any symbol resolves: JPY pairs use a
0.01 pip, everything else 0.0001.

Examples:
  autolevel metrics EURUSD USDJPY
  autolevel metrics --all`,
	RunE: runMetrics,
}

var metricsAll bool

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().BoolVar(&metricsAll, "all", false, "list every catalogued instrument")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	symbols := args
	if metricsAll {
		symbols = market.Symbols()
	}
	if len(symbols) == 0 {
		return fmt.Errorf("give at least one symbol or --all")
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tCLASS\tPIP\tDECIMALS\tATR")
	for _, s := range symbols {
		m := market.ResolveMetrics(s)
		class := "-"
		if meta, ok := market.Lookup(s); ok {
			class = string(meta.Class)
		}
		fmt.Fprintf(tw, "%s\t%s\t%g\t%d\t%g\n", market.Normalize(s), class, m.PipSize, m.Decimals, m.ATREstimate)
	}
	return tw.Flush()
}
