package db

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		exchange_token TEXT,
		exchange_token_expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		exchange_order_id TEXT UNIQUE,
		client_order_id TEXT UNIQUE,
		account_id TEXT,
		market_type TEXT NOT NULL CHECK (market_type IN ('wholeblock', 'inclusion-preconf')),
		side TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
		instrument_id TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL DEFAULT 0,
		quantity NUMERIC NOT NULL DEFAULT 0,
		filled_quantity NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK (status IN ('pending', 'active', 'filled', 'cancelled', 'expired')),
		owner_id BIGINT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_owner_created_idx ON orders (owner_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_open_idx ON orders (status) WHERE status IN ('pending', 'active')`,
	`CREATE TABLE IF NOT EXISTS market_snapshots (
		market_type TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate создаёт недостающие таблицы и индексы, повторный запуск безопасен
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
