package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"blockmarket/internal/user"
)

const userColumns = `id, address, exchange_token, exchange_token_expires_at, created_at, updated_at`

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func scanUser(row *sql.Row) (*user.User, error) {
	u := &user.User{}
	var token sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(&u.ID, &u.Address, &token, &expiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	u.ExchangeToken = token.String
	if expiresAt.Valid {
		u.ExchangeTokenExpiresAt = &expiresAt.Time
	}
	return u, nil
}

func (r *PostgresUserRepository) Upsert(ctx context.Context, address string) (*user.User, error) {
	query := `
		INSERT INTO users (address, created_at, updated_at) VALUES ($1, NOW(), NOW())
		ON CONFLICT (address) DO UPDATE SET updated_at = NOW()
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, address))
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresUserRepository) GetByAddress(ctx context.Context, address string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE address = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, address))
}

func (r *PostgresUserRepository) SetExchangeToken(ctx context.Context, id int64, encrypted string, expiresAt time.Time) error {
	query := `UPDATE users SET exchange_token = $1, exchange_token_expires_at = $2, updated_at = NOW() WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, encrypted, expiresAt, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
