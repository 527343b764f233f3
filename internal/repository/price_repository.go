package repository

import (
	"context"

	"coin-compass/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PriceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceRepository(pool PgxPool, tracer trace.Tracer) *PriceRepository {
	return &PriceRepository{pool: pool, tracer: tracer}
}

// InsertSample stores one bar. Duplicate (symbol, ts) pairs are silently
// ignored so the price loop can re-observe the same bar across cycles.
func (r *PriceRepository) InsertSample(ctx context.Context, s domain.PriceSample) error {
	_, span := r.tracer.Start(ctx, "price-repo.insert-sample")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", s.Symbol))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO price_history (symbol, ts, open, high, low, close, volume, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (symbol, ts) DO NOTHING`,
		s.Symbol, s.Timestamp, s.Open, s.High, s.Low, s.Close, s.Volume, s.Source)
	return err
}

// InsertSamples batches a whole fetched series in one round trip.
func (r *PriceRepository) InsertSamples(ctx context.Context, samples []domain.PriceSample) error {
	_, span := r.tracer.Start(ctx, "price-repo.insert-samples")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(samples)))

	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(
			`INSERT INTO price_history (symbol, ts, open, high, low, close, volume, source)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (symbol, ts) DO NOTHING`,
			s.Symbol, s.Timestamp, s.Open, s.High, s.Low, s.Close, s.Volume, s.Source)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range samples {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetRecent returns up to limit bars for the symbol, most recent first.
func (r *PriceRepository) GetRecent(ctx context.Context, symbol string, limit int) ([]domain.PriceSample, error) {
	_, span := r.tracer.Start(ctx, "price-repo.get-recent")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, ts, open, high, low, close, volume, source
		 FROM price_history
		 WHERE symbol = $1
		 ORDER BY ts DESC
		 LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []domain.PriceSample
	for rows.Next() {
		var s domain.PriceSample
		if err := rows.Scan(&s.Symbol, &s.Timestamp, &s.Open, &s.High, &s.Low,
			&s.Close, &s.Volume, &s.Source); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
