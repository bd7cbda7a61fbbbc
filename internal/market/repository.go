package market

import (
	"context"

	"blockmarket/internal/order"
)

type Repository interface {
	Get(ctx context.Context, marketType order.MarketType) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}
