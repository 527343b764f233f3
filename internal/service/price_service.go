package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"coin-compass/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const quoteCacheTTL = 90 * time.Second

// MarketData is the unified provider surface the services consume.
type MarketData interface {
	CurrentPrice(ctx context.Context, symbol string) (*domain.Quote, error)
	HistoricalSeries(ctx context.Context, symbol string, days int) (*domain.Series, error)
	MarketStats(ctx context.Context, symbol string) (*domain.MarketStats, error)
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

type AssetLister interface {
	List(ctx context.Context) ([]domain.Asset, error)
}

type PriceStore interface {
	InsertSample(ctx context.Context, s domain.PriceSample) error
	InsertSamples(ctx context.Context, samples []domain.PriceSample) error
	GetRecent(ctx context.Context, symbol string, limit int) ([]domain.PriceSample, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// PriceService serves quotes, market stats and history to the API and the
// bot, and runs the scheduler's price refresh cycle. Quotes are published to
// Redis so other consumers can read them without touching the providers.
type PriceService struct {
	tracer trace.Tracer
	market MarketData
	assets AssetLister
	prices PriceStore
	redis  RedisClient
}

func NewPriceService(
	tracer trace.Tracer,
	market MarketData,
	assets AssetLister,
	prices PriceStore,
	redisClient RedisClient,
) *PriceService {
	return &PriceService{
		tracer: tracer,
		market: market,
		assets: assets,
		prices: prices,
		redis:  redisClient,
	}
}

// GetQuote returns the current quote for a symbol, preferring the published
// Redis copy over a provider round trip.
func (s *PriceService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "price-service.get-quote")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	if s.redis != nil {
		cached, err := s.getQuoteCache(ctx, symbol)
		if err != nil {
			log.Printf("redis quote read error: %v", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	quote, err := s.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if s.redis != nil {
		if err := s.setQuoteCache(ctx, quote); err != nil {
			log.Printf("redis quote write error for %s: %v", quote.Symbol, err)
		}
	}
	return quote, nil
}

// GetQuotes returns a quote per tracked asset, skipping assets no provider
// can price.
func (s *PriceService) GetQuotes(ctx context.Context) ([]domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "price-service.get-quotes")
	defer span.End()

	assets, err := s.assets.List(ctx)
	if err != nil {
		return nil, err
	}

	var quotes []domain.Quote
	for _, asset := range assets {
		quote, err := s.GetQuote(ctx, asset.Symbol)
		if err != nil {
			log.Printf("quote unavailable for %s: %v", asset.Symbol, err)
			continue
		}
		quotes = append(quotes, *quote)
	}
	return quotes, nil
}

// GetHistory fetches an OHLCV window and persists it so indicator runs can
// fall back to stored bars when providers are down.
func (s *PriceService) GetHistory(ctx context.Context, symbol string, days int) (*domain.Series, error) {
	ctx, span := s.tracer.Start(ctx, "price-service.get-history")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("days", days))

	series, err := s.market.HistoricalSeries(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if err := s.prices.InsertSamples(ctx, series.Samples); err != nil {
		log.Printf("persist history for %s: %v", symbol, err)
	}
	return series, nil
}

func (s *PriceService) GetStats(ctx context.Context, symbol string) (*domain.MarketStats, error) {
	ctx, span := s.tracer.Start(ctx, "price-service.get-stats")
	defer span.End()

	return s.market.MarketStats(ctx, symbol)
}

func (s *PriceService) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "price-service.search")
	defer span.End()

	return s.market.Search(ctx, query)
}

// UpdatePrices is the scheduler's price cycle: one quote per tracked asset,
// stored as a bar carrying the 24h range and published to Redis. A failing
// asset is logged and skipped so one dead listing never starves the rest. It
// errors only when every asset fails.
func (s *PriceService) UpdatePrices(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "price-service.update-prices")
	defer span.End()

	assets, err := s.assets.List(ctx)
	if err != nil {
		return fmt.Errorf("list assets: %w", err)
	}
	if len(assets) == 0 {
		return nil
	}

	now := time.Now().UTC().Truncate(time.Minute)
	updated := 0
	for _, asset := range assets {
		quote, err := s.market.CurrentPrice(ctx, asset.Symbol)
		if err != nil {
			log.Printf("price update failed for %s: %v", asset.Symbol, err)
			continue
		}

		high, low := quote.High24h, quote.Low24h
		if high <= 0 || low <= 0 {
			// Aggregator quotes carry no 24h range; pull it from market stats.
			if stats, err := s.market.MarketStats(ctx, asset.Symbol); err == nil {
				high, low = stats.High24h, stats.Low24h
			} else {
				log.Printf("market stats unavailable for %s: %v", asset.Symbol, err)
			}
		}
		if high < quote.Price {
			high = quote.Price
		}
		if low <= 0 || low > quote.Price {
			low = quote.Price
		}

		sample := domain.PriceSample{
			Symbol:    quote.Symbol,
			Timestamp: now,
			Open:      quote.Price,
			High:      high,
			Low:       low,
			Close:     quote.Price,
			Volume:    quote.Volume24h,
			Source:    quote.Source,
		}
		if err := s.prices.InsertSample(ctx, sample); err != nil {
			log.Printf("store price for %s: %v", asset.Symbol, err)
			continue
		}
		if s.redis != nil {
			if err := s.setQuoteCache(ctx, quote); err != nil {
				log.Printf("redis quote write error for %s: %v", quote.Symbol, err)
			}
		}
		updated++
	}

	span.SetAttributes(attribute.Int("assets.updated", updated))
	if updated == 0 {
		return fmt.Errorf("price update failed for all %d assets", len(assets))
	}
	log.Printf("Updated prices for %d/%d assets", updated, len(assets))
	return nil
}

func (s *PriceService) setQuoteCache(ctx context.Context, quote *domain.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, "quote:"+quote.Symbol, data, quoteCacheTTL).Err()
}

func (s *PriceService) getQuoteCache(ctx context.Context, symbol string) (*domain.Quote, error) {
	data, err := s.redis.Get(ctx, "quote:"+symbol).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}
