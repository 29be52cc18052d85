package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/autolevel/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the levels and orders journal",
	Long: `Query and display journal records from the SQLite database.

Subcommands:
  order  - Show one order by ID
  orders - List orders of a day (default today)
  levels - List level computations of a day (default today)

Examples:
  autolevel journal order 01HZY8AB...
  autolevel journal orders 2024-01-15
  autolevel journal levels`,
}

var journalOrderCmd = &cobra.Command{
	Use:   "order <order-id>",
	Short: "Show details of one order",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrder,
}

var journalOrdersCmd = &cobra.Command{
	Use:   "orders [YYYY-MM-DD]",
	Short: "List orders of a day",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalOrders,
}

var journalLevelsCmd = &cobra.Command{
	Use:   "levels [YYYY-MM-DD]",
	Short: "List level computations of a day",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalLevels,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalOrderCmd)
	journalCmd.AddCommand(journalOrdersCmd)
	journalCmd.AddCommand(journalLevelsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./autolevel.sqlite", "path to SQLite journal DB")
}

func dayArg(args []string) (time.Time, time.Time, error) {
	loc := time.Local
	day := time.Now().In(loc).Format("2006-01-02")
	if len(args) == 1 {
		day = args[0]
	}
	start, end, err := journal.DayBounds(loc, day)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date: %w", err)
	}
	return start, end, nil
}

func runJournalOrder(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetOrder(args[0])
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatOrderOrg(rec))
	return nil
}

func runJournalOrders(cmd *cobra.Command, args []string) error {
	start, end, err := dayArg(args)
	if err != nil {
		return err
	}
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListOrdersBetween(start, end)
	if err != nil {
		return fmt.Errorf("query orders: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatOrdersOrg(recs))
	return nil
}

func runJournalLevels(cmd *cobra.Command, args []string) error {
	start, end, err := dayArg(args)
	if err != nil {
		return err
	}
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListLevelsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query levels: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatLevelsOrg(recs))
	return nil
}
