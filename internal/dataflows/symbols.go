package dataflows

import (
	"fmt"
	"regexp"
	"strings"
)

// coinIDs maps "-USD" tickers to CoinGecko ids.
var coinIDs = map[string]string{
	"BTC-USD":   "bitcoin",
	"ETH-USD":   "ethereum",
	"ADA-USD":   "cardano",
	"SOL-USD":   "solana",
	"DOT-USD":   "polkadot",
	"LINK-USD":  "chainlink",
	"MATIC-USD": "matic-network",
	"AVAX-USD":  "avalanche-2",
	"DOGE-USD":  "dogecoin",
	"XRP-USD":   "ripple",
	"LTC-USD":   "litecoin",
	"BNB-USD":   "binancecoin",
	"UNI-USD":   "uniswap",
	"ATOM-USD":  "cosmos",
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,14}$`)

func NormalizeSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}

// ValidateSymbol checks the ticker shape, not that it exists.
func ValidateSymbol(symbol string) error {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol: %s", symbol)
	}
	return nil
}

// IsCrypto reports whether symbol is a USD quoted crypto pair like BTC-USD.
func IsCrypto(symbol string) bool {
	return strings.HasSuffix(NormalizeSymbol(symbol), "-USD")
}

// BaseAsset strips the quote currency: BTC-USD -> BTC.
func BaseAsset(symbol string) string {
	return strings.TrimSuffix(NormalizeSymbol(symbol), "-USD")
}

// CoinID returns the CoinGecko id, falling back to the lower-cased base asset.
func CoinID(symbol string) string {
	if id, ok := coinIDs[NormalizeSymbol(symbol)]; ok {
		return id
	}
	return strings.ToLower(BaseAsset(symbol))
}
