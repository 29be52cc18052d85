package market

import (
	"sort"
	"strings"
)

// Class groups instruments by how they are quoted on the bridge.
type Class string

const (
	ClassFX     Class = "fx"
	ClassMetal  Class = "metal"
	ClassIndex  Class = "index"
	ClassCrypto Class = "crypto"
)

type InstrumentMeta struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	Class         Class
}

// Metrics returns the pricing metrics for the instrument.
func (im InstrumentMeta) Metrics() Metrics {
	return ResolveMetrics(im.Name)
}

var Instruments = map[string]InstrumentMeta{
	"EURUSD": {Name: "EURUSD", BaseCurrency: "EUR", QuoteCurrency: "USD", Class: ClassFX},
	"GBPUSD": {Name: "GBPUSD", BaseCurrency: "GBP", QuoteCurrency: "USD", Class: ClassFX},
	"AUDUSD": {Name: "AUDUSD", BaseCurrency: "AUD", QuoteCurrency: "USD", Class: ClassFX},
	"NZDUSD": {Name: "NZDUSD", BaseCurrency: "NZD", QuoteCurrency: "USD", Class: ClassFX},
	"USDJPY": {Name: "USDJPY", BaseCurrency: "USD", QuoteCurrency: "JPY", Class: ClassFX},
	"EURJPY": {Name: "EURJPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", Class: ClassFX},
	"GBPJPY": {Name: "GBPJPY", BaseCurrency: "GBP", QuoteCurrency: "JPY", Class: ClassFX},
	"XAUUSD": {Name: "XAUUSD", BaseCurrency: "XAU", QuoteCurrency: "USD", Class: ClassMetal},
	"XAGUSD": {Name: "XAGUSD", BaseCurrency: "XAG", QuoteCurrency: "USD", Class: ClassMetal},
	"US30":   {Name: "US30", BaseCurrency: "US30", QuoteCurrency: "USD", Class: ClassIndex},
	"NAS100": {Name: "NAS100", BaseCurrency: "NAS100", QuoteCurrency: "USD", Class: ClassIndex},
	"SPX500": {Name: "SPX500", BaseCurrency: "SPX500", QuoteCurrency: "USD", Class: ClassIndex},
	"BTCUSD": {Name: "BTCUSD", BaseCurrency: "BTC", QuoteCurrency: "USD", Class: ClassCrypto},
	"ETHUSD": {Name: "ETHUSD", BaseCurrency: "ETH", QuoteCurrency: "USD", Class: ClassCrypto},
}

// Normalize maps broker and OANDA style names ("eur_usd", "EUR/USD") onto
// the bridge form ("EURUSD").
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("_", "", "/", "", "-", "").Replace(s)
}

// Lookup finds an instrument in the catalog after normalizing its name.
func Lookup(symbol string) (InstrumentMeta, bool) {
	im, ok := Instruments[Normalize(symbol)]
	return im, ok
}

// Symbols returns the catalog names in sorted order.
func Symbols() []string {
	out := make([]string, 0, len(Instruments))
	for k := range Instruments {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
