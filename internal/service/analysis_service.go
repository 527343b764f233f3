package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"coin-compass/internal/advisor"
	"coin-compass/internal/domain"
	"coin-compass/internal/marketdata"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// A stored verdict is reusable until it ages out or the market moves
	// away from the price it was computed at.
	staleAfter     = time.Hour
	staleDriftPct  = 2.0
	minHistoryDays = 1
)

type AnalysisStore interface {
	Get(ctx context.Context, symbol string) (*domain.AnalysisRecord, error)
	Upsert(ctx context.Context, rec *domain.AnalysisRecord) error
}

type SettingsLoader interface {
	Load(ctx context.Context) (*domain.Settings, error)
}

type IndicatorEngine interface {
	Compute(ctx context.Context, samples []domain.PriceSample) (*domain.IndicatorSeries, *domain.IndicatorSnapshot, error)
}

type Advisor interface {
	Recommend(ctx context.Context, cfg advisor.ServiceConfig, snapshot *domain.IndicatorSnapshot, symbol string, currentPrice float64) advisor.Advice
}

// AnalysisService runs the indicator-to-recommendation pipeline, both on
// demand and as the scheduler's analysis cycle.
type AnalysisService struct {
	tracer     trace.Tracer
	market     MarketData
	assets     AssetLister
	analyses   AnalysisStore
	settings   SettingsLoader
	indicators IndicatorEngine
	advisor    Advisor

	now func() time.Time
}

func NewAnalysisService(
	tracer trace.Tracer,
	market MarketData,
	assets AssetLister,
	analyses AnalysisStore,
	settings SettingsLoader,
	indicators IndicatorEngine,
	adv Advisor,
) *AnalysisService {
	return &AnalysisService{
		tracer:     tracer,
		market:     market,
		assets:     assets,
		analyses:   analyses,
		settings:   settings,
		indicators: indicators,
		advisor:    adv,
		now:        time.Now,
	}
}

// Analyze returns a recommendation for the symbol. A fresh stored verdict is
// served with a recomputed snapshot; a stale or missing one triggers a full
// pipeline run whose result is persisted. force always triggers a full run.
func (s *AnalysisService) Analyze(ctx context.Context, symbol string, force bool) (*domain.AnalysisRecord, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.analyze")
	defer span.End()

	symbol = marketdata.NormalizeSymbol(symbol)
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Bool("force", force))

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	quote, err := s.market.CurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("current price for %s: %w", symbol, err)
	}

	existing, err := s.analyses.Get(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load analysis for %s: %w", symbol, err)
	}

	if !force && existing != nil && !s.isStale(existing, quote.Price) {
		return s.withRefreshedSnapshot(ctx, existing, settings, quote.Price), nil
	}

	return s.runPipeline(ctx, symbol, settings, quote.Price)
}

// GetStored returns the persisted verdict without triggering any computation,
// or (nil, nil) when the symbol has never been analyzed.
func (s *AnalysisService) GetStored(ctx context.Context, symbol string) (*domain.AnalysisRecord, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.get-stored")
	defer span.End()

	return s.analyses.Get(ctx, marketdata.NormalizeSymbol(symbol))
}

// RunAnalysis is the scheduler's analysis cycle: a full pipeline run for every
// tracked asset. Per-asset failures are logged and skipped; the cycle errors
// only when every asset fails.
func (s *AnalysisService) RunAnalysis(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "analysis-service.run-analysis")
	defer span.End()

	assets, err := s.assets.List(ctx)
	if err != nil {
		return fmt.Errorf("list assets: %w", err)
	}
	if len(assets) == 0 {
		return nil
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	analyzed := 0
	for _, asset := range assets {
		symbol := marketdata.NormalizeSymbol(asset.Symbol)
		quote, err := s.market.CurrentPrice(ctx, symbol)
		if err != nil {
			log.Printf("analysis skipped for %s: %v", symbol, err)
			continue
		}
		if _, err := s.runPipeline(ctx, symbol, settings, quote.Price); err != nil {
			log.Printf("analysis failed for %s: %v", symbol, err)
			continue
		}
		analyzed++
	}

	span.SetAttributes(attribute.Int("assets.analyzed", analyzed))
	if analyzed == 0 {
		return fmt.Errorf("analysis failed for all %d assets", len(assets))
	}
	log.Printf("Analyzed %d/%d assets", analyzed, len(assets))
	return nil
}

// Indicators computes the full aligned indicator series for charting, without
// consulting the reasoning service.
func (s *AnalysisService) Indicators(ctx context.Context, symbol string, days int) (*domain.IndicatorSeries, *domain.IndicatorSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.indicators")
	defer span.End()

	symbol = marketdata.NormalizeSymbol(symbol)
	if days < minHistoryDays {
		days = minHistoryDays
	}
	series, err := s.market.HistoricalSeries(ctx, symbol, days)
	if err != nil {
		return nil, nil, fmt.Errorf("history for %s: %w", symbol, err)
	}
	return s.indicators.Compute(ctx, series.Samples)
}

// isStale applies the reuse rules to a stored verdict: too old, market price
// drifted more than the threshold, or the snapshot carries no usable price to
// measure drift against.
func (s *AnalysisService) isStale(rec *domain.AnalysisRecord, currentPrice float64) bool {
	if s.now().Sub(rec.AnalyzedAt) > staleAfter {
		return true
	}
	storedPrice := rec.Snapshot.CurrentPrice
	if storedPrice <= 0 {
		return true
	}
	drift := math.Abs(currentPrice-storedPrice) / storedPrice * 100
	return drift > staleDriftPct
}

// withRefreshedSnapshot serves the stored verdict alongside up-to-date
// indicators. The refreshed snapshot is returned, not persisted: the stored
// record keeps the snapshot the verdict was actually based on.
func (s *AnalysisService) withRefreshedSnapshot(ctx context.Context, rec *domain.AnalysisRecord, settings *domain.Settings, currentPrice float64) *domain.AnalysisRecord {
	series, err := s.market.HistoricalSeries(ctx, rec.Symbol, settings.HistoricalDays)
	if err != nil {
		log.Printf("snapshot refresh failed for %s, serving stored snapshot: %v", rec.Symbol, err)
		return rec
	}
	_, snapshot, err := s.indicators.Compute(ctx, series.Samples)
	if err != nil {
		log.Printf("snapshot refresh failed for %s, serving stored snapshot: %v", rec.Symbol, err)
		return rec
	}

	refreshed := *rec
	refreshed.Snapshot = *snapshot
	refreshed.Snapshot.CurrentPrice = currentPrice
	return &refreshed
}

// runPipeline is the full history -> indicators -> recommendation -> store
// sequence for one symbol.
func (s *AnalysisService) runPipeline(ctx context.Context, symbol string, settings *domain.Settings, currentPrice float64) (*domain.AnalysisRecord, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.run-pipeline")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	series, err := s.market.HistoricalSeries(ctx, symbol, settings.HistoricalDays)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", symbol, err)
	}

	_, snapshot, err := s.indicators.Compute(ctx, series.Samples)
	if err != nil {
		return nil, fmt.Errorf("indicators for %s: %w", symbol, err)
	}
	snapshot.CurrentPrice = currentPrice

	advice := s.advisor.Recommend(ctx, advisor.ServiceConfig{
		BaseURL: settings.OllamaBaseURL,
		Model:   settings.OllamaModel,
	}, snapshot, symbol, currentPrice)

	rec := &domain.AnalysisRecord{
		Symbol:         symbol,
		Snapshot:       *snapshot,
		Recommendation: advice.Recommendation,
		Confidence:     advice.Confidence,
		Reasoning:      advice.Reasoning,
		AnalyzedAt:     s.now(),
	}
	if err := s.analyses.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("store analysis for %s: %w", symbol, err)
	}
	return rec, nil
}
