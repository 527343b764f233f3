// Package repository is the Postgres storage collaborator: assets, price
// history, latest-per-asset analysis records, and the singleton pipeline
// settings row.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repositories use; tests substitute
// a mock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const createSchema = `
CREATE TABLE IF NOT EXISTS assets (
    id              BIGSERIAL   PRIMARY KEY,
    symbol          TEXT        NOT NULL UNIQUE,
    name            TEXT        NOT NULL,
    amount          NUMERIC     NOT NULL DEFAULT 0,
    purchase_price  NUMERIC     NOT NULL DEFAULT 0,
    purchase_date   TIMESTAMPTZ NOT NULL DEFAULT now(),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS price_history (
    symbol      TEXT        NOT NULL,
    ts          TIMESTAMPTZ NOT NULL,
    open        NUMERIC     NOT NULL,
    high        NUMERIC     NOT NULL,
    low         NUMERIC     NOT NULL,
    close       NUMERIC     NOT NULL,
    volume      NUMERIC     NOT NULL,
    source      TEXT        NOT NULL,
    PRIMARY KEY (symbol, ts)
);

CREATE INDEX IF NOT EXISTS idx_price_history_symbol_ts
    ON price_history (symbol, ts DESC);

CREATE TABLE IF NOT EXISTS analysis (
    symbol          TEXT        PRIMARY KEY,
    snapshot        JSONB       NOT NULL,
    recommendation  TEXT        NOT NULL,
    confidence      NUMERIC     NOT NULL,
    reasoning       TEXT        NOT NULL DEFAULT '',
    analyzed_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    id                    INT         PRIMARY KEY CHECK (id = 1),
    auto_update_prices    BOOLEAN     NOT NULL DEFAULT false,
    price_update_interval INT         NOT NULL DEFAULT 60,
    auto_run_analysis     BOOLEAN     NOT NULL DEFAULT false,
    analysis_interval     INT         NOT NULL DEFAULT 360,
    ollama_base_url       TEXT        NOT NULL DEFAULT 'http://localhost:11434',
    ollama_model          TEXT        NOT NULL DEFAULT 'plutus',
    historical_days       INT         NOT NULL DEFAULT 30,
    last_price_update     TIMESTAMPTZ,
    last_analysis_run     TIMESTAMPTZ,
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// RunMigrations creates all pipeline tables.
func RunMigrations(ctx context.Context, pool PgxPool) error {
	_, err := pool.Exec(ctx, createSchema)
	return err
}
