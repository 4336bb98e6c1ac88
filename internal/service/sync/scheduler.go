package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
)

// Scheduler triggers full sync runs on the configured cadence. One trigger at
// a time: a tick that fires while a run is still going is skipped by the
// per-vendor locks, not queued.
type Scheduler struct {
	svc    *Service
	runner Runner
	cron   *cron.Cron
	cfg    config.SyncConfig
	logger *zap.Logger
}

// NewScheduler builds the periodic sync trigger.
func NewScheduler(svc *Service, runner Runner, cfg config.SyncConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		svc:    svc,
		runner: runner,
		cron:   cron.New(),
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the periodic job and optionally kicks off an immediate run.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 12 * time.Hour
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.trigger(ctx)
	})
	if err != nil {
		return fmt.Errorf("registering sync schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info("sync scheduler started",
		zap.Duration("interval", interval),
		zap.String("vendor_restriction", s.cfg.Vendor),
		zap.Bool("run_on_start", s.cfg.RunOnStart))

	if s.cfg.RunOnStart {
		go s.trigger(ctx)
	}
	return nil
}

func (s *Scheduler) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("scheduled sync starting")
	if err := s.svc.SyncAll(ctx, s.runner); err != nil {
		s.logger.Error("scheduled sync failed", zap.Error(err))
	}
}

// Stop drops pending triggers and waits for an in-flight run to finish. Hard
// shutdown is the caller's context, which the run observes between steps.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sync scheduler stopped")
}
