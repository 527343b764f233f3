package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coin-compass/internal/domain"

	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type stubMarket struct {
	quotes    map[string]*domain.Quote
	quoteErr  map[string]error
	series    *domain.Series
	seriesErr error
	stats     *domain.MarketStats
	statsErr  error
	quoteHits int
	statsHits int
}

func (m *stubMarket) CurrentPrice(ctx context.Context, symbol string) (*domain.Quote, error) {
	m.quoteHits++
	if err, ok := m.quoteErr[symbol]; ok {
		return nil, err
	}
	if q, ok := m.quotes[symbol]; ok {
		return q, nil
	}
	return nil, errors.New("no quote")
}

func (m *stubMarket) HistoricalSeries(ctx context.Context, symbol string, days int) (*domain.Series, error) {
	if m.seriesErr != nil {
		return nil, m.seriesErr
	}
	return m.series, nil
}

func (m *stubMarket) MarketStats(ctx context.Context, symbol string) (*domain.MarketStats, error) {
	m.statsHits++
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	if m.stats == nil {
		return nil, errors.New("no stats")
	}
	return m.stats, nil
}

func (m *stubMarket) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return nil, nil
}

type stubAssets struct {
	assets []domain.Asset
	err    error
}

func (a *stubAssets) List(ctx context.Context) ([]domain.Asset, error) {
	return a.assets, a.err
}

type stubPriceStore struct {
	singles   []domain.PriceSample
	batches   [][]domain.PriceSample
	insertErr error
}

func (p *stubPriceStore) InsertSample(ctx context.Context, s domain.PriceSample) error {
	if p.insertErr != nil {
		return p.insertErr
	}
	p.singles = append(p.singles, s)
	return nil
}

func (p *stubPriceStore) InsertSamples(ctx context.Context, samples []domain.PriceSample) error {
	if p.insertErr != nil {
		return p.insertErr
	}
	p.batches = append(p.batches, samples)
	return nil
}

func (p *stubPriceStore) GetRecent(ctx context.Context, symbol string, limit int) ([]domain.PriceSample, error) {
	return nil, nil
}

// stubRedis is an in-memory stand-in for the quote cache.
type stubRedis struct {
	values map[string]string
	sets   int
}

func (r *stubRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if r.values == nil {
		r.values = map[string]string{}
	}
	switch v := value.(type) {
	case []byte:
		r.values[key] = string(v)
	case string:
		r.values[key] = v
	}
	r.sets++
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (r *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if v, ok := r.values[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func btcQuote() *domain.Quote {
	return &domain.Quote{
		Symbol:    "BTC",
		Price:     50000,
		Source:    domain.SourceBinance,
		High24h:   51000,
		Low24h:    49000,
		Volume24h: 620000000,
	}
}

func newPriceService(market *stubMarket, assets *stubAssets, prices *stubPriceStore, rc RedisClient) *PriceService {
	return NewPriceService(sdktrace.NewTracerProvider().Tracer("test"), market, assets, prices, rc)
}

func TestGetQuotePublishesToRedis(t *testing.T) {
	t.Parallel()

	market := &stubMarket{quotes: map[string]*domain.Quote{"BTC": btcQuote()}}
	rc := &stubRedis{}
	svc := newPriceService(market, &stubAssets{}, &stubPriceStore{}, rc)

	quote, err := svc.GetQuote(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Price != 50000 {
		t.Fatalf("unexpected quote: %+v", quote)
	}

	raw, ok := rc.values["quote:BTC"]
	if !ok {
		t.Fatal("expected quote published under quote:BTC")
	}
	var published domain.Quote
	if err := json.Unmarshal([]byte(raw), &published); err != nil {
		t.Fatalf("published quote is not valid JSON: %v", err)
	}
	if published.Price != 50000 || published.Source != domain.SourceBinance {
		t.Fatalf("unexpected published quote: %+v", published)
	}
}

func TestGetQuotePrefersRedisCopy(t *testing.T) {
	t.Parallel()

	market := &stubMarket{quotes: map[string]*domain.Quote{"BTC": btcQuote()}}
	rc := &stubRedis{}
	svc := newPriceService(market, &stubAssets{}, &stubPriceStore{}, rc)

	if _, err := svc.GetQuote(context.Background(), "BTC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetQuote(context.Background(), "BTC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if market.quoteHits != 1 {
		t.Fatalf("expected a single provider hit, got %d", market.quoteHits)
	}
}

func TestGetQuoteWorksWithoutRedis(t *testing.T) {
	t.Parallel()

	market := &stubMarket{quotes: map[string]*domain.Quote{"BTC": btcQuote()}}
	svc := newPriceService(market, &stubAssets{}, &stubPriceStore{}, nil)

	quote, err := svc.GetQuote(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Price != 50000 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestGetQuotesSkipsUnpriceableAssets(t *testing.T) {
	t.Parallel()

	market := &stubMarket{
		quotes:   map[string]*domain.Quote{"BTC": btcQuote()},
		quoteErr: map[string]error{"DEADCOIN": errors.New("not listed")},
	}
	assets := &stubAssets{assets: []domain.Asset{{Symbol: "BTC"}, {Symbol: "DEADCOIN"}}}
	svc := newPriceService(market, assets, &stubPriceStore{}, nil)

	quotes, err := svc.GetQuotes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "BTC" {
		t.Fatalf("unexpected quotes: %+v", quotes)
	}
}

func TestGetHistoryPersistsSamples(t *testing.T) {
	t.Parallel()

	series := &domain.Series{
		Source: domain.SourceBinance,
		Samples: []domain.PriceSample{
			{Symbol: "BTC", Close: 50000},
			{Symbol: "BTC", Close: 50100},
		},
	}
	market := &stubMarket{series: series}
	store := &stubPriceStore{}
	svc := newPriceService(market, &stubAssets{}, store, nil)

	got, err := svc.GetHistory(context.Background(), "BTC", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Samples) != 2 {
		t.Fatalf("unexpected series: %+v", got)
	}
	if len(store.batches) != 1 || len(store.batches[0]) != 2 {
		t.Fatalf("expected one persisted batch of 2 samples, got %+v", store.batches)
	}
}

func TestGetHistoryToleratesPersistFailure(t *testing.T) {
	t.Parallel()

	market := &stubMarket{series: &domain.Series{Samples: []domain.PriceSample{{Symbol: "BTC"}}}}
	store := &stubPriceStore{insertErr: errors.New("db down")}
	svc := newPriceService(market, &stubAssets{}, store, nil)

	if _, err := svc.GetHistory(context.Background(), "BTC", 30); err != nil {
		t.Fatalf("persist failures must not fail the read: %v", err)
	}
}

func TestUpdatePricesStoresMinuteBars(t *testing.T) {
	t.Parallel()

	market := &stubMarket{quotes: map[string]*domain.Quote{"BTC": btcQuote()}}
	assets := &stubAssets{assets: []domain.Asset{{Symbol: "BTC"}}}
	store := &stubPriceStore{}
	rc := &stubRedis{}
	svc := newPriceService(market, assets, store, rc)

	if err := svc.UpdatePrices(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.singles) != 1 {
		t.Fatalf("expected one stored sample, got %d", len(store.singles))
	}
	s := store.singles[0]
	if s.Open != 50000 || s.Close != 50000 {
		t.Fatalf("quote bar should open and close at the quote price: %+v", s)
	}
	if s.High != 51000 || s.Low != 49000 {
		t.Fatalf("quote bar should carry the 24h range: %+v", s)
	}
	if s.Volume != 620000000 || s.Source != domain.SourceBinance {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if !s.Timestamp.Equal(s.Timestamp.Truncate(time.Minute)) {
		t.Fatalf("timestamp should be truncated to the minute: %s", s.Timestamp)
	}
	if market.statsHits != 0 {
		t.Fatal("exchange quotes already carry the range; stats must not be consulted")
	}
	if _, ok := rc.values["quote:BTC"]; !ok {
		t.Fatal("expected quote published during the cycle")
	}
}

func TestUpdatePricesFillsRangeFromStats(t *testing.T) {
	t.Parallel()

	// Aggregator quotes have no 24h high/low.
	market := &stubMarket{
		quotes: map[string]*domain.Quote{
			"BTC": {Symbol: "BTC", Price: 50000, Source: domain.SourceCoinGecko, Volume24h: 620000000},
		},
		stats: &domain.MarketStats{Price: 50000, High24h: 52000, Low24h: 48000, Source: domain.SourceCoinGecko},
	}
	assets := &stubAssets{assets: []domain.Asset{{Symbol: "BTC"}}}
	store := &stubPriceStore{}
	svc := newPriceService(market, assets, store, nil)

	if err := svc.UpdatePrices(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if market.statsHits != 1 {
		t.Fatalf("expected one stats lookup, got %d", market.statsHits)
	}
	s := store.singles[0]
	if s.High != 52000 || s.Low != 48000 {
		t.Fatalf("range should come from market stats: %+v", s)
	}
	if s.Open != 50000 || s.Close != 50000 {
		t.Fatalf("unexpected sample: %+v", s)
	}
}

func TestUpdatePricesDegradesRangeWhenStatsUnavailable(t *testing.T) {
	t.Parallel()

	market := &stubMarket{
		quotes: map[string]*domain.Quote{
			"BTC": {Symbol: "BTC", Price: 50000, Source: domain.SourceCoinGecko},
		},
		statsErr: errors.New("rate limited"),
	}
	assets := &stubAssets{assets: []domain.Asset{{Symbol: "BTC"}}}
	store := &stubPriceStore{}
	svc := newPriceService(market, assets, store, nil)

	if err := svc.UpdatePrices(context.Background()); err != nil {
		t.Fatalf("a missing range must not fail the cycle: %v", err)
	}
	s := store.singles[0]
	if s.High != 50000 || s.Low != 50000 {
		t.Fatalf("without a range the bar should collapse to the price: %+v", s)
	}
}

func TestUpdatePricesSkipsFailingAssets(t *testing.T) {
	t.Parallel()

	market := &stubMarket{
		quotes:   map[string]*domain.Quote{"BTC": btcQuote()},
		quoteErr: map[string]error{"DEADCOIN": errors.New("not listed")},
	}
	assets := &stubAssets{assets: []domain.Asset{{Symbol: "DEADCOIN"}, {Symbol: "BTC"}}}
	store := &stubPriceStore{}
	svc := newPriceService(market, assets, store, nil)

	if err := svc.UpdatePrices(context.Background()); err != nil {
		t.Fatalf("one failing asset must not fail the cycle: %v", err)
	}
	if len(store.singles) != 1 || store.singles[0].Symbol != "BTC" {
		t.Fatalf("unexpected stored samples: %+v", store.singles)
	}
}

func TestUpdatePricesErrorsWhenAllAssetsFail(t *testing.T) {
	t.Parallel()

	market := &stubMarket{quoteErr: map[string]error{"BTC": errors.New("down"), "ETH": errors.New("down")}}
	assets := &stubAssets{assets: []domain.Asset{{Symbol: "BTC"}, {Symbol: "ETH"}}}
	svc := newPriceService(market, assets, &stubPriceStore{}, nil)

	if err := svc.UpdatePrices(context.Background()); err == nil {
		t.Fatal("expected error when every asset fails")
	}
}

func TestUpdatePricesNoAssetsIsNoOp(t *testing.T) {
	t.Parallel()

	market := &stubMarket{}
	svc := newPriceService(market, &stubAssets{}, &stubPriceStore{}, nil)

	if err := svc.UpdatePrices(context.Background()); err != nil {
		t.Fatalf("empty portfolio should be a clean no-op: %v", err)
	}
	if market.quoteHits != 0 {
		t.Fatal("no providers should be consulted without assets")
	}
}
