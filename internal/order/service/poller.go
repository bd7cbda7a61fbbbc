package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blockmarket/internal/order"
)

// Syncer часть движка, которую дёргает поллер
type Syncer interface {
	Sync(ctx context.Context, owner int64, marketType *order.MarketType) SyncReport
}

// Poller периодически синхронизирует всех владельцев с открытыми ордерами
type Poller struct {
	repo        order.Repository
	syncer      Syncer
	interval    time.Duration
	concurrency int
	log         *zap.Logger
}

func NewPoller(repo order.Repository, syncer Syncer, interval time.Duration, concurrency int, log *zap.Logger) *Poller {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Poller{
		repo:        repo,
		syncer:      syncer,
		interval:    interval,
		concurrency: concurrency,
		log:         log.Named("poller"),
	}
}

// Run блокируется до отмены ctx. interval <= 0 отключает опрос
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		p.log.Info("background order sync disabled")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.log.Info("background order sync started",
		zap.Duration("interval", p.interval), zap.Int("concurrency", p.concurrency))

	for {
		select {
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.log.Error("background sync tick failed", zap.Error(err))
			}
		case <-ctx.Done():
			p.log.Info("background order sync stopped")
			return
		}
	}
}

// Tick один проход по всем владельцам с открытыми ордерами
func (p *Poller) Tick(ctx context.Context) error {
	owners, err := p.repo.ListOwnersWithOpenOrders(ctx)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, owner := range owners {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			p.syncer.Sync(gctx, owner, nil)
			return nil
		})
	}
	err = g.Wait()
	p.log.Debug("background sync round done", zap.Int("owners", len(owners)))
	return err
}
