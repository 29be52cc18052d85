package market

import (
	"fmt"
)

// MidFunc returns the current mid price of a symbol.
type MidFunc func(symbol string) (float64, error)

// QuoteToAccountRate converts one unit of the symbol's quote currency
// into the account currency. entry, when positive, is used for pairs
// whose base is the account currency; otherwise mid is consulted.
func QuoteToAccountRate(symbol, accountCurrency string, entry float64, mid MidFunc) (float64, error) {
	meta, ok := Lookup(symbol)
	if !ok {
		return 0, fmt.Errorf("unknown instrument %s", symbol)
	}

	// EURUSD, GBPUSD, XAUUSD in a USD account
	if accountCurrency == "" || meta.QuoteCurrency == accountCurrency {
		return 1.0, nil
	}

	// USDJPY in a USD account: 1 JPY = 1/USDJPY USD
	if meta.BaseCurrency == accountCurrency {
		if entry > 0 {
			return 1.0 / entry, nil
		}
		return inverse(mid, symbol)
	}

	if mid == nil {
		return 0, fmt.Errorf("cross conversion %s -> %s needs prices", meta.QuoteCurrency, accountCurrency)
	}
	// EURJPY in a USD account goes through USDJPY
	if _, ok := Lookup(accountCurrency + meta.QuoteCurrency); ok {
		return inverse(mid, accountCurrency+meta.QuoteCurrency)
	}
	// EURGBP in a USD account goes through GBPUSD
	if _, ok := Lookup(meta.QuoteCurrency + accountCurrency); ok {
		px, err := mid(meta.QuoteCurrency + accountCurrency)
		if err != nil {
			return 0, err
		}
		if px <= 0 {
			return 0, fmt.Errorf("no price for %s%s", meta.QuoteCurrency, accountCurrency)
		}
		return px, nil
	}
	return 0, fmt.Errorf("cross conversion not available for %s -> %s", meta.QuoteCurrency, accountCurrency)
}

func inverse(mid MidFunc, symbol string) (float64, error) {
	if mid == nil {
		return 0, fmt.Errorf("no price source for %s", symbol)
	}
	px, err := mid(symbol)
	if err != nil {
		return 0, err
	}
	if px <= 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return 1.0 / px, nil
}
