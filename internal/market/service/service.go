package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"blockmarket/internal/market"
	"blockmarket/internal/metrics"
	"blockmarket/internal/order"
)

const DefaultTTL = 5 * time.Minute

// Source публичные рыночные данные биржи
type Source interface {
	Markets(ctx context.Context, marketType order.MarketType) (json.RawMessage, error)
	Trades(ctx context.Context, marketType order.MarketType) (json.RawMessage, error)
}

// Service отдаёт рынки через read-through кэш. Сделки всегда берём свежие.
type Service struct {
	repo   market.Repository
	source Source
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo market.Repository, source Source, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{repo: repo, source: source, ttl: ttl, log: log.Named("market"), now: time.Now}
}

// Markets: свежий кэш, иначе запрос к бирже и перезапись кэша
func (s *Service) Markets(ctx context.Context, marketType order.MarketType) (*market.Snapshot, error) {
	cached, err := s.repo.Get(ctx, marketType)
	switch {
	case err == nil && cached.Fresh(s.now()):
		metrics.MarketCacheLookupsTotal.WithLabelValues(string(marketType), "hit").Inc()
		return cached, nil
	case err != nil && !errors.Is(err, market.ErrNotFound):
		s.log.Warn("market cache read failed", zap.String("market_type", string(marketType)), zap.Error(err))
	}
	metrics.MarketCacheLookupsTotal.WithLabelValues(string(marketType), "miss").Inc()

	data, err := s.source.Markets(ctx, marketType)
	if err != nil {
		return nil, fmt.Errorf("fetch %s markets: %w", marketType, err)
	}

	now := s.now()
	snap := &market.Snapshot{MarketType: marketType, Data: data, FetchedAt: now, ExpiresAt: now.Add(s.ttl)}
	if err := s.repo.Save(ctx, snap); err != nil {
		s.log.Warn("market cache write failed", zap.String("market_type", string(marketType)), zap.Error(err))
	}
	return snap, nil
}

func (s *Service) Trades(ctx context.Context, marketType order.MarketType) (json.RawMessage, error) {
	data, err := s.source.Trades(ctx, marketType)
	if err != nil {
		return nil, fmt.Errorf("fetch %s trades: %w", marketType, err)
	}
	return data, nil
}
