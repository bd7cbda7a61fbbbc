package user

import (
	"context"
	"time"
)

type Repository interface {
	// Upsert возвращает пользователя по адресу, создаёт при отсутствии
	Upsert(ctx context.Context, address string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByAddress(ctx context.Context, address string) (*User, error)
	SetExchangeToken(ctx context.Context, id int64, encrypted string, expiresAt time.Time) error
}
