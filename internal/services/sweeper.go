package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"auction-engine/pkg/logger"
)

// Sweeper periodically drives auction lifecycle transitions: starting due
// auctions and closing expired ones. Every transition goes through the
// engine's serialized per-auction path, so sweeps never race with bids.
type Sweeper struct {
	cron     *cron.Cron
	engine   *BidEngine
	interval time.Duration
	log      logger.Logger
}

func NewSweeper(engine *BidEngine, interval time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		cron:     cron.New(cron.WithSeconds()),
		engine:   engine,
		interval: interval,
		log:      log,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.log.Info("Starting lifecycle sweeper", "interval", s.interval.String())

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.engine.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	s.log.Info("Stopping lifecycle sweeper")
	s.cron.Stop()
}
