package repository

import (
	"context"
	"database/sql"
	"errors"

	"blockmarket/internal/market"
	"blockmarket/internal/order"
)

type PostgresSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresSnapshotRepository(db *sql.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

func (r *PostgresSnapshotRepository) Get(ctx context.Context, marketType order.MarketType) (*market.Snapshot, error) {
	s := &market.Snapshot{}
	var data []byte
	query := `SELECT market_type, data, fetched_at, expires_at FROM market_snapshots WHERE market_type = $1`

	err := r.db.QueryRowContext(ctx, query, marketType).Scan(&s.MarketType, &data, &s.FetchedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, market.ErrNotFound
		}
		return nil, err
	}
	s.Data = data
	return s, nil
}

func (r *PostgresSnapshotRepository) Save(ctx context.Context, s *market.Snapshot) error {
	query := `
		INSERT INTO market_snapshots (market_type, data, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (market_type) DO UPDATE
		SET data = EXCLUDED.data, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`

	_, err := r.db.ExecContext(ctx, query, s.MarketType, []byte(s.Data), s.FetchedAt, s.ExpiresAt)
	return err
}
