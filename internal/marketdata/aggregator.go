// Package marketdata unifies the exchange and aggregator providers behind one
// price/history/stats surface with caching and ordered fallback.
package marketdata

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"coin-compass/internal/domain"
	"coin-compass/internal/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound means every provider failed or returned no usable data for the
// symbol. Provider errors themselves never reach callers.
var ErrNotFound = errors.New("market data not found")

const (
	cacheTTL = 5 * time.Minute

	// Pause before falling back to CoinGecko; its free tier rate limit is
	// much stricter than Binance's.
	fallbackDelay = 500 * time.Millisecond
)

// ExchangeClient is the fast exchange-side provider (Binance).
type ExchangeClient interface {
	Ticker(ctx context.Context, symbol string) (*provider.Ticker24h, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.PriceSample, error)
}

// AggregatorClient is the broad-coverage aggregator provider (CoinGecko).
type AggregatorClient interface {
	SimplePrice(ctx context.Context, symbol string) (*provider.AggregatorPrice, error)
	MarketChart(ctx context.Context, symbol string, days int) ([]domain.PriceSample, error)
	MarketData(ctx context.Context, symbol string) (*domain.MarketStats, error)
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

type priceKey struct{ symbol string }
type historyKey struct {
	symbol string
	days   int
}
type statsKey struct{ symbol string }

type Aggregator struct {
	tracer     trace.Tracer
	exchange   ExchangeClient
	aggregator AggregatorClient

	quotes    *ttlCache[priceKey, domain.Quote]
	histories *ttlCache[historyKey, domain.Series]
	stats     *ttlCache[statsKey, domain.MarketStats]

	delay time.Duration
}

func NewAggregator(tracer trace.Tracer, exchange ExchangeClient, aggregator AggregatorClient) *Aggregator {
	return &Aggregator{
		tracer:     tracer,
		exchange:   exchange,
		aggregator: aggregator,
		quotes:     newTTLCache[priceKey, domain.Quote](cacheTTL),
		histories:  newTTLCache[historyKey, domain.Series](cacheTTL),
		stats:      newTTLCache[statsKey, domain.MarketStats](cacheTTL),
		delay:      fallbackDelay,
	}
}

// NormalizeSymbol trims whitespace, strips internal spaces and uppercases.
// Applied before every cache lookup and provider call so cache keys never
// fragment.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), " ", ""))
}

// CurrentPrice returns the current price and 24h context for a symbol, trying
// the exchange first and the aggregator second. A fresh cache entry
// short-circuits both providers.
func (a *Aggregator) CurrentPrice(ctx context.Context, symbol string) (*domain.Quote, error) {
	ctx, span := a.tracer.Start(ctx, "marketdata.current-price")
	defer span.End()

	symbol = NormalizeSymbol(symbol)
	span.SetAttributes(attribute.String("symbol", symbol))

	if quote, ok := a.quotes.get(priceKey{symbol}); ok {
		return &quote, nil
	}

	ticker, err := a.exchange.Ticker(ctx, symbol)
	if err != nil {
		log.Printf("exchange ticker failed for %s: %v", symbol, err)
	} else if ticker.Price > 0 {
		quote := domain.Quote{
			Symbol:       symbol,
			Price:        ticker.Price,
			Source:       domain.SourceBinance,
			High24h:      ticker.High,
			Low24h:       ticker.Low,
			Volume24h:    ticker.QuoteVolume,
			Change24hPct: ticker.PriceChangePct,
		}
		a.quotes.put(priceKey{symbol}, quote)
		return &quote, nil
	}

	if err := a.pause(ctx); err != nil {
		return nil, ErrNotFound
	}

	price, err := a.aggregator.SimplePrice(ctx, symbol)
	if err != nil {
		log.Printf("aggregator price failed for %s: %v", symbol, err)
		return nil, ErrNotFound
	}
	if price.Price <= 0 {
		return nil, ErrNotFound
	}

	quote := domain.Quote{
		Symbol:       symbol,
		Price:        price.Price,
		Source:       domain.SourceCoinGecko,
		Volume24h:    price.Volume24h,
		Change24hPct: price.Change24hPct,
	}
	a.quotes.put(priceKey{symbol}, quote)
	return &quote, nil
}

// HistoricalSeries returns an OHLCV window covering the requested day count.
// Windows of 30 days or less prefer the exchange's finer-grained candles;
// longer windows, or an exchange failure, fall back to the aggregator's
// price-only series.
func (a *Aggregator) HistoricalSeries(ctx context.Context, symbol string, days int) (*domain.Series, error) {
	ctx, span := a.tracer.Start(ctx, "marketdata.historical-series")
	defer span.End()

	symbol = NormalizeSymbol(symbol)
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("days", days))

	key := historyKey{symbol: symbol, days: days}
	if series, ok := a.histories.get(key); ok {
		return &series, nil
	}

	if days <= 30 {
		interval, limit := klineWindow(days)
		samples, err := a.exchange.Klines(ctx, symbol, interval, limit)
		if err != nil {
			log.Printf("exchange klines failed for %s: %v", symbol, err)
		} else if len(samples) > 0 {
			series := domain.Series{Samples: samples, Source: domain.SourceBinance}
			a.histories.put(key, series)
			return &series, nil
		}
		if err := a.pause(ctx); err != nil {
			return nil, ErrNotFound
		}
	}

	samples, err := a.aggregator.MarketChart(ctx, symbol, days)
	if err != nil {
		log.Printf("aggregator history failed for %s: %v", symbol, err)
		return nil, ErrNotFound
	}
	if len(samples) == 0 {
		return nil, ErrNotFound
	}

	series := domain.Series{Samples: samples, Source: domain.SourceCoinGecko}
	a.histories.put(key, series)
	return &series, nil
}

// MarketStats returns the 24h market summary with the same fallback order as
// CurrentPrice.
func (a *Aggregator) MarketStats(ctx context.Context, symbol string) (*domain.MarketStats, error) {
	ctx, span := a.tracer.Start(ctx, "marketdata.market-stats")
	defer span.End()

	symbol = NormalizeSymbol(symbol)
	span.SetAttributes(attribute.String("symbol", symbol))

	if stats, ok := a.stats.get(statsKey{symbol}); ok {
		return &stats, nil
	}

	ticker, err := a.exchange.Ticker(ctx, symbol)
	if err != nil {
		log.Printf("exchange stats failed for %s: %v", symbol, err)
	} else if ticker.Price > 0 {
		stats := domain.MarketStats{
			Price:        ticker.Price,
			High24h:      ticker.High,
			Low24h:       ticker.Low,
			Volume24h:    ticker.QuoteVolume,
			Change24h:    ticker.PriceChange,
			Change24hPct: ticker.PriceChangePct,
			Source:       domain.SourceBinance,
		}
		a.stats.put(statsKey{symbol}, stats)
		return &stats, nil
	}

	if err := a.pause(ctx); err != nil {
		return nil, ErrNotFound
	}

	stats, err := a.aggregator.MarketData(ctx, symbol)
	if err != nil {
		log.Printf("aggregator stats failed for %s: %v", symbol, err)
		return nil, ErrNotFound
	}

	a.stats.put(statsKey{symbol}, *stats)
	return stats, nil
}

// Search resolves free-text queries to coin identities. Delegated to the
// aggregator only; it is not on the hot path and Binance has no equivalent.
func (a *Aggregator) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	ctx, span := a.tracer.Start(ctx, "marketdata.search")
	defer span.End()

	return a.aggregator.Search(ctx, query)
}

func (a *Aggregator) pause(ctx context.Context) error {
	if a.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.delay):
		return nil
	}
}

// klineWindow picks the exchange candle interval and count for a day window:
// intraday windows use hourly candles, week-scale windows 4-hourly, anything
// longer daily, always capped at 100 candles.
func klineWindow(days int) (string, int) {
	switch {
	case days <= 1:
		return "1h", capLimit(days * 24)
	case days <= 7:
		return "4h", capLimit(days)
	default:
		return "1d", capLimit(days)
	}
}

func capLimit(n int) int {
	if n > 100 {
		return 100
	}
	if n < 1 {
		return 1
	}
	return n
}
