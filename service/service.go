// Package service runs the market's background upkeep: replaying order
// settlements that fell due and liquidating undercollateralized makers.
package service

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/market"
	"github.com/cloudmall/storage_market/model"
)

var log = logging.Logger("service")

const sweepBatch = 200

type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	db     *gorm.DB
	engine *market.Engine

	sweepInterval     time.Duration
	liquidateInterval time.Duration

	group   *errgroup.Group
	running atomic.Bool
}

func NewService(ctx context.Context, db *gorm.DB, engine *market.Engine, sweepInterval, liquidateInterval time.Duration) *Service {
	sctx, cancel := context.WithCancel(ctx)
	group, sctx := errgroup.WithContext(sctx)
	return &Service{
		ctx:               sctx,
		cancel:            cancel,
		db:                db,
		engine:            engine,
		sweepInterval:     sweepInterval,
		liquidateInterval: liquidateInterval,
		group:             group,
	}
}

func (s *Service) Start() {
	if !s.running.CAS(false, true) {
		return
	}
	s.group.Go(func() error { return s.loop(s.sweepInterval, s.sweepOrders) })
	s.group.Go(func() error { return s.loop(s.liquidateInterval, s.liquidate) })
	log.Infow("service started",
		"sweep", s.sweepInterval.String(), "liquidate", s.liquidateInterval.String())
}

func (s *Service) Stop() {
	s.cancel()
	if err := s.group.Wait(); err != nil && err != context.Canceled {
		log.Errorf("service stopped with error:%v", err)
	}
	s.running.Store(false)
}

func (s *Service) loop(interval time.Duration, fn func() error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-ticker.C:
			if err := fn(); err != nil {
				log.Errorf("upkeep pass failed:%v", err)
			}
		}
	}
}

// sweepOrders ticks every order with an elapsed settlement period so
// escrow keeps moving even when no one calls in.
func (s *Service) sweepOrders() error {
	var ids []uint64
	err := s.db.Model(&model.Order{}).
		Where("state <> ? OR latest_settlement_date > 0", model.OrderStateWaiting).
		Order("latest_settlement_date asc").Limit(sweepBatch).
		Pluck("order_id", &ids).Error
	if err != nil {
		return err
	}
	for _, id := range ids {
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		if err := s.engine.Tick(id); err != nil {
			// the order may have been claimed away mid-sweep
			log.Debugf("tick order %d:%v", id, err)
		}
	}
	return nil
}

func (s *Service) liquidate() error {
	return s.engine.Liquidate()
}
