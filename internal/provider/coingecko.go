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

const defaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoClient fetches price, history and market data from the CoinGecko
// free API. Coverage is broader than Binance but the rate limit is strict, so
// requests are spaced ~2s apart.
type CoinGeckoClient struct {
	client   *http.Client
	baseURL  string
	tracer   trace.Tracer
	throttle *Throttle
}

func NewCoinGeckoClient(baseURL string, tracer trace.Tracer) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = defaultCoinGeckoBaseURL
	}
	return &CoinGeckoClient{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		tracer:   tracer,
		throttle: NewThrottle(2 * time.Second),
	}
}

// AggregatorPrice is the simple/price response for one coin.
type AggregatorPrice struct {
	Price        float64
	Change24hPct float64
	Volume24h    float64
	LastUpdated  int64
}

// SimplePrice fetches the current USD price for a symbol.
func (c *CoinGeckoClient) SimplePrice(ctx context.Context, symbol string) (*AggregatorPrice, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.simple-price")
	defer span.End()

	coinID := c.resolveID(ctx, symbol)
	params := url.Values{
		"ids":                     {coinID},
		"vs_currencies":           {"usd"},
		"include_24hr_change":     {"true"},
		"include_24hr_vol":        {"true"},
		"include_last_updated_at": {"true"},
	}
	body, err := c.doRequest(ctx, "simple/price", params)
	if err != nil {
		return nil, fmt.Errorf("fetch price for %s: %w", symbol, err)
	}

	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse price for %s: %w", symbol, err)
	}
	data, ok := raw[coinID]
	if !ok {
		return nil, fmt.Errorf("no price data for %s (id %s)", symbol, coinID)
	}

	return &AggregatorPrice{
		Price:        data["usd"],
		Change24hPct: data["usd_24h_change"],
		Volume24h:    data["usd_24h_vol"],
		LastUpdated:  int64(data["last_updated_at"]),
	}, nil
}

// MarketChart fetches historical prices and converts them to price-only
// samples (open=high=low=close, volume 0): CoinGecko's market_chart has no
// per-bucket OHLC, so this is the degraded source the indicator engine
// normalizes for.
func (c *CoinGeckoClient) MarketChart(ctx context.Context, symbol string, days int) ([]domain.PriceSample, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.market-chart")
	defer span.End()

	interval := "hourly"
	if days > 90 {
		interval = "daily"
	}
	coinID := c.resolveID(ctx, symbol)
	params := url.Values{
		"vs_currency": {"usd"},
		"days":        {strconv.Itoa(days)},
		"interval":    {interval},
	}
	body, err := c.doRequest(ctx, "coins/"+coinID+"/market_chart", params)
	if err != nil {
		return nil, fmt.Errorf("fetch market chart for %s: %w", symbol, err)
	}

	var raw struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse market chart for %s: %w", symbol, err)
	}

	samples := make([]domain.PriceSample, 0, len(raw.Prices))
	for _, pt := range raw.Prices {
		if len(pt) < 2 {
			continue
		}
		price := pt[1]
		samples = append(samples, domain.PriceSample{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(int64(pt[0])).UTC(),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Source:    domain.SourceCoinGecko,
		})
	}
	return samples, nil
}

// MarketData fetches the full 24h market summary for a symbol.
func (c *CoinGeckoClient) MarketData(ctx context.Context, symbol string) (*domain.MarketStats, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.market-data")
	defer span.End()

	coinID := c.resolveID(ctx, symbol)
	params := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"market_data":    {"true"},
		"community_data": {"false"},
		"developer_data": {"false"},
		"sparkline":      {"false"},
	}
	body, err := c.doRequest(ctx, "coins/"+coinID, params)
	if err != nil {
		return nil, fmt.Errorf("fetch market data for %s: %w", symbol, err)
	}

	var raw struct {
		MarketData *struct {
			CurrentPrice             map[string]float64 `json:"current_price"`
			High24h                  map[string]float64 `json:"high_24h"`
			Low24h                   map[string]float64 `json:"low_24h"`
			PriceChange24h           float64            `json:"price_change_24h"`
			PriceChangePercentage24h float64            `json:"price_change_percentage_24h"`
			TotalVolume              map[string]float64 `json:"total_volume"`
		} `json:"market_data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse market data for %s: %w", symbol, err)
	}
	if raw.MarketData == nil {
		return nil, fmt.Errorf("no market data for %s (id %s)", symbol, coinID)
	}

	md := raw.MarketData
	return &domain.MarketStats{
		Price:        md.CurrentPrice["usd"],
		High24h:      md.High24h["usd"],
		Low24h:       md.Low24h["usd"],
		Volume24h:    md.TotalVolume["usd"],
		Change24h:    md.PriceChange24h,
		Change24hPct: md.PriceChangePercentage24h,
		Source:       domain.SourceCoinGecko,
	}, nil
}

// Search queries the CoinGecko search endpoint; it has much better symbol
// coverage than any static mapping.
func (c *CoinGeckoClient) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	_, span := c.tracer.Start(ctx, "coingecko.search")
	defer span.End()

	body, err := c.doRequest(ctx, "search", url.Values{"query": {query}})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var raw struct {
		Coins []struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"coins"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(raw.Coins))
	for _, coin := range raw.Coins {
		results = append(results, domain.SearchResult{
			ID:     coin.ID,
			Symbol: coin.Symbol,
			Name:   coin.Name,
		})
	}
	return results, nil
}

// resolveID maps a symbol to a CoinGecko coin id: static map first, then a
// search preferring an exact symbol match, finally the lowercased symbol.
func (c *CoinGeckoClient) resolveID(ctx context.Context, symbol string) string {
	upper := strings.ToUpper(symbol)
	if id, ok := domain.CoinGeckoID[upper]; ok {
		return id
	}

	results, err := c.Search(ctx, symbol)
	if err != nil || len(results) == 0 {
		return strings.ToLower(symbol)
	}
	for _, r := range results {
		if strings.ToUpper(r.Symbol) == upper {
			return r.ID
		}
	}
	return results[0].ID
}

func (c *CoinGeckoClient) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
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
		return nil, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
