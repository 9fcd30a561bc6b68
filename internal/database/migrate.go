package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the bootstrap DDL, applied idempotently at startup. The
// CHECK on raw_materials.quantity_on_hand is the last line of defense
// behind the engine's sufficiency validation.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		contact_name  TEXT,
		contact_email TEXT,
		contact_phone TEXT,
		address       TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS raw_materials (
		id               BIGSERIAL PRIMARY KEY,
		name             TEXT NOT NULL,
		unit             TEXT NOT NULL,
		quantity_on_hand NUMERIC(18,6) NOT NULL DEFAULT 0
			CHECK (quantity_on_hand >= 0),
		category_id      BIGINT REFERENCES categories(id),
		supplier_id      BIGINT REFERENCES suppliers(id),
		reorder_level    NUMERIC(18,6),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id              BIGSERIAL PRIMARY KEY,
		kind            TEXT NOT NULL CHECK (kind IN ('standard', 'recreation')),
		name            TEXT NOT NULL,
		batch_date      DATE NOT NULL,
		size            NUMERIC(18,6) NOT NULL CHECK (size > 0),
		unit            TEXT NOT NULL,
		source_batch_id BIGINT REFERENCES batches(id),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS batch_materials (
		id              BIGSERIAL PRIMARY KEY,
		batch_id        BIGINT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		raw_material_id BIGINT NOT NULL REFERENCES raw_materials(id),
		quantity        NUMERIC(18,6) NOT NULL CHECK (quantity > 0),
		percentage      NUMERIC(9,4) NOT NULL,
		unit            TEXT NOT NULL,
		line_no         INT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batch_materials_batch_id
		ON batch_materials (batch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_batch_materials_raw_material_id
		ON batch_materials (raw_material_id)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_kind_created
		ON batches (kind, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'operator',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS product_out (
		id            BIGSERIAL PRIMARY KEY,
		batch_id      BIGINT REFERENCES batches(id),
		product_name  TEXT NOT NULL,
		quantity      NUMERIC(18,6) NOT NULL CHECK (quantity > 0),
		unit          TEXT NOT NULL,
		dispatched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		notes         TEXT
	)`,
}

// Migrate applies the schema statements in order, inside one
// transaction so a partial bootstrap never survives.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	logger.Info("database schema up to date", "statements", len(schema))
	return nil
}
