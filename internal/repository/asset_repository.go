package repository

import (
	"context"
	"errors"
	"fmt"

	"coin-compass/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type AssetRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewAssetRepository(pool PgxPool, tracer trace.Tracer) *AssetRepository {
	return &AssetRepository{pool: pool, tracer: tracer}
}

func (r *AssetRepository) List(ctx context.Context) ([]domain.Asset, error) {
	_, span := r.tracer.Start(ctx, "asset-repo.list")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, symbol, name, amount, purchase_price, purchase_date, created_at, updated_at
		 FROM assets
		 ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.Amount, &a.PurchasePrice,
			&a.PurchaseDate, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *AssetRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	_, span := r.tracer.Start(ctx, "asset-repo.get-by-symbol")
	defer span.End()

	var a domain.Asset
	err := r.pool.QueryRow(ctx,
		`SELECT id, symbol, name, amount, purchase_price, purchase_date, created_at, updated_at
		 FROM assets
		 WHERE symbol = $1`, symbol).
		Scan(&a.ID, &a.Symbol, &a.Name, &a.Amount, &a.PurchasePrice,
			&a.PurchaseDate, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	_, span := r.tracer.Start(ctx, "asset-repo.create")
	defer span.End()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO assets (symbol, name, amount, purchase_price, purchase_date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		asset.Symbol, asset.Name, asset.Amount, asset.PurchasePrice, asset.PurchaseDate).
		Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create asset %s: %w", asset.Symbol, err)
	}
	return nil
}

func (r *AssetRepository) Delete(ctx context.Context, symbol string) error {
	_, span := r.tracer.Start(ctx, "asset-repo.delete")
	defer span.End()

	_, err := r.pool.Exec(ctx, `DELETE FROM assets WHERE symbol = $1`, symbol)
	return err
}
