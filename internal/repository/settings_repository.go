package repository

import (
	"context"
	"time"

	"coin-compass/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type SettingsRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSettingsRepository(pool PgxPool, tracer trace.Tracer) *SettingsRepository {
	return &SettingsRepository{pool: pool, tracer: tracer}
}

// Load returns the singleton settings row, creating it with defaults on first
// use.
func (r *SettingsRepository) Load(ctx context.Context) (*domain.Settings, error) {
	_, span := r.tracer.Start(ctx, "settings-repo.load")
	defer span.End()

	defaults := domain.DefaultSettings()
	var s domain.Settings
	err := r.pool.QueryRow(ctx,
		`INSERT INTO settings (id, auto_update_prices, price_update_interval,
		                       auto_run_analysis, analysis_interval,
		                       ollama_base_url, ollama_model, historical_days)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET id = settings.id
		 RETURNING auto_update_prices, price_update_interval, auto_run_analysis,
		           analysis_interval, ollama_base_url, ollama_model,
		           historical_days, last_price_update, last_analysis_run, updated_at`,
		defaults.AutoUpdatePrices, defaults.PriceUpdateInterval,
		defaults.AutoRunAnalysis, defaults.AnalysisInterval,
		defaults.OllamaBaseURL, defaults.OllamaModel, defaults.HistoricalDays).
		Scan(&s.AutoUpdatePrices, &s.PriceUpdateInterval, &s.AutoRunAnalysis,
			&s.AnalysisInterval, &s.OllamaBaseURL, &s.OllamaModel,
			&s.HistoricalDays, &s.LastPriceUpdate, &s.LastAnalysisRun, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save persists every operator-editable field. The loop bookkeeping
// timestamps are written only through MarkPriceUpdate and MarkAnalysisRun.
func (r *SettingsRepository) Save(ctx context.Context, s *domain.Settings) error {
	_, span := r.tracer.Start(ctx, "settings-repo.save")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE settings SET
		     auto_update_prices = $1,
		     price_update_interval = $2,
		     auto_run_analysis = $3,
		     analysis_interval = $4,
		     ollama_base_url = $5,
		     ollama_model = $6,
		     historical_days = $7,
		     updated_at = now()
		 WHERE id = 1`,
		s.AutoUpdatePrices, s.PriceUpdateInterval, s.AutoRunAnalysis,
		s.AnalysisInterval, s.OllamaBaseURL, s.OllamaModel, s.HistoricalDays)
	return err
}

func (r *SettingsRepository) MarkPriceUpdate(ctx context.Context, at time.Time) error {
	_, span := r.tracer.Start(ctx, "settings-repo.mark-price-update")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE settings SET last_price_update = $1 WHERE id = 1`, at)
	return err
}

func (r *SettingsRepository) MarkAnalysisRun(ctx context.Context, at time.Time) error {
	_, span := r.tracer.Start(ctx, "settings-repo.mark-analysis-run")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE settings SET last_analysis_run = $1 WHERE id = 1`, at)
	return err
}
