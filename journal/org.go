package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatOrderOrg renders an OrderRecord as an Org-mode block with the
// structured facts in a PROPERTIES drawer.
func FormatOrderOrg(o OrderRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Order: %s %s %s (%s)\n", strings.ToUpper(o.Side), o.Symbol, o.Status, shortID(o.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", o.ID)
	fmt.Fprintf(&b, ":TIME: %s\n", o.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":SYMBOL: %s\n", o.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", o.Side)
	fmt.Fprintf(&b, ":KIND: %s\n", o.Kind)
	fmt.Fprintf(&b, ":VOLUME: %.2f\n", o.Volume)
	fmt.Fprintf(&b, ":PRICE: %.5f\n", o.Price)
	fmt.Fprintf(&b, ":STOP_LOSS: %.5f\n", o.StopLoss)
	fmt.Fprintf(&b, ":TAKE_PROFIT: %.5f\n", o.TakeProfit)
	fmt.Fprintf(&b, ":DEVIATION: %d\n", o.Deviation)
	fmt.Fprintf(&b, ":STATUS: %s\n", o.Status)
	if o.Reason != "" {
		fmt.Fprintf(&b, ":REASON: %s\n", o.Reason)
	}
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatOrdersOrg renders multiple orders separated by blank lines.
func FormatOrdersOrg(orders []OrderRecord) string {
	var b strings.Builder
	for i, o := range orders {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatOrderOrg(o))
	}
	return b.String()
}

// FormatLevelsOrg renders level computations as an Org table.
func FormatLevelsOrg(levels []LevelRecord) string {
	var b strings.Builder
	b.WriteString("| time | symbol | side | kind | strategy | entry | sl | tp |\n")
	b.WriteString("|------+--------+------+------+----------+-------+----+----|\n")
	for _, r := range levels {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %g | %g | %g |\n",
			r.Time.UTC().Format(time.RFC3339), r.Symbol, r.Side, r.Kind, r.Strategy,
			r.Entry, r.StopLoss, r.TakeProfit)
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
