package symbols

import "strings"

// majorCrypto is the fixed set of tickers quoted against USD by the provider.
var majorCrypto = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {}, "DOGE": {}, "ADA": {}, "XRP": {},
	"AVAX": {}, "MATIC": {}, "LTC": {}, "BNB": {}, "LINK": {}, "DOT": {},
}

// Normalize converts a raw user-entered ticker to the form the quote provider
// expects. Equities stay bare uppercase tickers; recognized major crypto
// tickers become "TICKER/USD". Total: any input yields a usable symbol.
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if _, ok := majorCrypto[s]; ok {
		return s + "/USD"
	}
	return s
}
