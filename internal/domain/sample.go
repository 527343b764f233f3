package domain

import "time"

// Data sources a price or candle can come from.
const (
	SourceBinance   = "binance"
	SourceCoinGecko = "coingecko"
)

// PriceSample is one OHLCV point in an asset's price history, tagged with the
// provider it came from. Immutable once written; unique per (symbol, timestamp).
type PriceSample struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Source    string    `json:"source"`
}

// Quote is the unified current-price shape regardless of which provider
// answered.
type Quote struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	Source       string  `json:"source"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
	Volume24h    float64 `json:"volume_24h"`
	Change24hPct float64 `json:"change_24h_pct"`
}

// Series is a historical OHLCV window plus the provider that produced it.
type Series struct {
	Samples []PriceSample `json:"samples"`
	Source  string        `json:"source"`
}

// MarketStats is the unified 24h market summary shape.
type MarketStats struct {
	Price        float64 `json:"price"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
	Volume24h    float64 `json:"volume_24h"`
	Change24h    float64 `json:"change_24h"`
	Change24hPct float64 `json:"change_24h_pct"`
	Source       string  `json:"source"`
}

// SearchResult is one aggregator search hit, used for symbol resolution.
type SearchResult struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// CoinGeckoID maps common symbols to CoinGecko API identifiers. Symbols not
// listed here are resolved through the search endpoint.
var CoinGeckoID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"BNB":   "binancecoin",
}
