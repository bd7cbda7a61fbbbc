package order

import "context"

// Repository локальное хранилище ордеров. Поиск без результата: ErrNotFound,
// конфликт уникального ключа при Create: ErrDuplicate.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByExchangeOrderID(ctx context.Context, exchangeOrderID string) (*Order, error)
	GetByClientOrderID(ctx context.Context, clientOrderID string) (*Order, error)
	Update(ctx context.Context, id string, u Update) error
	ListByOwner(ctx context.Context, ownerID int64, marketType *MarketType) ([]*Order, error)
	ListOwnersWithOpenOrders(ctx context.Context) ([]int64, error)
}
