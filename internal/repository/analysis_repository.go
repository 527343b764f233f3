package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"coin-compass/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type AnalysisRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewAnalysisRepository(pool PgxPool, tracer trace.Tracer) *AnalysisRepository {
	return &AnalysisRepository{pool: pool, tracer: tracer}
}

// Get returns the latest stored analysis for the symbol, or (nil, nil) when
// none has been run yet.
func (r *AnalysisRepository) Get(ctx context.Context, symbol string) (*domain.AnalysisRecord, error) {
	_, span := r.tracer.Start(ctx, "analysis-repo.get")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	var (
		rec      domain.AnalysisRecord
		snapshot []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT symbol, snapshot, recommendation, confidence, reasoning, analyzed_at
		 FROM analysis
		 WHERE symbol = $1`, symbol).
		Scan(&rec.Symbol, &snapshot, &rec.Recommendation, &rec.Confidence,
			&rec.Reasoning, &rec.AnalyzedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", symbol, err)
	}
	return &rec, nil
}

// Upsert replaces the symbol's analysis wholesale; the table keeps exactly one
// row per symbol.
func (r *AnalysisRepository) Upsert(ctx context.Context, rec *domain.AnalysisRecord) error {
	_, span := r.tracer.Start(ctx, "analysis-repo.upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", rec.Symbol),
		attribute.String("recommendation", string(rec.Recommendation)),
	)

	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", rec.Symbol, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO analysis (symbol, snapshot, recommendation, confidence, reasoning, analyzed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (symbol) DO UPDATE SET
		     snapshot = EXCLUDED.snapshot,
		     recommendation = EXCLUDED.recommendation,
		     confidence = EXCLUDED.confidence,
		     reasoning = EXCLUDED.reasoning,
		     analyzed_at = EXCLUDED.analyzed_at`,
		rec.Symbol, snapshot, rec.Recommendation, rec.Confidence, rec.Reasoning, rec.AnalyzedAt)
	return err
}
