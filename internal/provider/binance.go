package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coin-compass/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultBinanceBaseURL = "https://api.binance.com/api/v3"

// BinanceClient fetches ticker and kline data from the Binance public API.
// It is the fast, authoritative source for major USDT pairs.
type BinanceClient struct {
	client   *http.Client
	baseURL  string
	tracer   trace.Tracer
	throttle *Throttle
}

// NewBinanceClient creates a client with a short request spacing; Binance
// tolerates a much higher rate than CoinGecko.
func NewBinanceClient(baseURL string, tracer trace.Tracer) *BinanceClient {
	if baseURL == "" {
		baseURL = defaultBinanceBaseURL
	}
	return &BinanceClient{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		tracer:   tracer,
		throttle: NewThrottle(100 * time.Millisecond),
	}
}

// Ticker24h is the 24h rolling-window ticker for one trading pair.
type Ticker24h struct {
	Symbol         string
	Price          float64
	OpenPrice      float64
	High           float64
	Low            float64
	Volume         float64
	QuoteVolume    float64
	PriceChange    float64
	PriceChangePct float64
	TradeCount     int64
}

// Ticker fetches the 24h ticker for a symbol (quoted against USDT).
func (c *BinanceClient) Ticker(ctx context.Context, symbol string) (*Ticker24h, error) {
	_, span := c.tracer.Start(ctx, "binance.ticker")
	defer span.End()

	params := url.Values{"symbol": {pairSymbol(symbol)}}
	body, err := c.doRequest(ctx, "ticker/24hr", params)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker for %s: %w", symbol, err)
	}

	var raw struct {
		LastPrice          string `json:"lastPrice"`
		OpenPrice          string `json:"openPrice"`
		HighPrice          string `json:"highPrice"`
		LowPrice           string `json:"lowPrice"`
		Volume             string `json:"volume"`
		QuoteVolume        string `json:"quoteVolume"`
		PriceChange        string `json:"priceChange"`
		PriceChangePercent string `json:"priceChangePercent"`
		Count              int64  `json:"count"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse ticker for %s: %w", symbol, err)
	}

	return &Ticker24h{
		Symbol:         symbol,
		Price:          parseFloat(raw.LastPrice),
		OpenPrice:      parseFloat(raw.OpenPrice),
		High:           parseFloat(raw.HighPrice),
		Low:            parseFloat(raw.LowPrice),
		Volume:         parseFloat(raw.Volume),
		QuoteVolume:    parseFloat(raw.QuoteVolume),
		PriceChange:    parseFloat(raw.PriceChange),
		PriceChangePct: parseFloat(raw.PriceChangePercent),
		TradeCount:     raw.Count,
	}, nil
}

// Klines fetches OHLCV candles. Binance encodes each kline as a mixed array:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, ...]
// with numeric fields as strings.
func (c *BinanceClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.PriceSample, error) {
	_, span := c.tracer.Start(ctx, "binance.klines")
	defer span.End()

	params := url.Values{
		"symbol":   {pairSymbol(symbol)},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	body, err := c.doRequest(ctx, "klines", params)
	if err != nil {
		return nil, fmt.Errorf("fetch klines for %s: %w", symbol, err)
	}

	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse klines for %s: %w", symbol, err)
	}

	samples := make([]domain.PriceSample, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openMs, ok := k[0].(float64)
		if !ok {
			continue
		}
		samples = append(samples, domain.PriceSample{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(int64(openMs)).UTC(),
			Open:      parseFloat(asString(k[1])),
			High:      parseFloat(asString(k[2])),
			Low:       parseFloat(asString(k[3])),
			Close:     parseFloat(asString(k[4])),
			Volume:    parseFloat(asString(k[5])),
			Source:    domain.SourceBinance,
		})
	}
	return samples, nil
}

func (c *BinanceClient) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("binance API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// pairSymbol maps a bare asset symbol to Binance's base+quote concatenation.
func pairSymbol(symbol string) string {
	clean := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), " ", ""))
	return clean + "USDT"
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
