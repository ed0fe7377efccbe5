package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/services"
)

// Scheduler runs the nightly settlement pipeline: resolve outcomes for
// completed games, then rebuild the timing-bucket aggregates from the
// resolved history.
type Scheduler struct {
	cron       *cron.Cron
	cfg        config.SchedulerConfig
	resolver   *services.OutcomeResolver
	aggregator *services.PerformanceAggregator
	period     string
	logger     *logrus.Logger
}

func New(cfg config.SchedulerConfig, resolver *services.OutcomeResolver, aggregator *services.PerformanceAggregator, period string, logger *logrus.Logger) *Scheduler {
	if period == "" {
		period = "all_time"
	}
	return &Scheduler{
		cron:       cron.New(),
		cfg:        cfg,
		resolver:   resolver,
		aggregator: aggregator,
		period:     period,
		logger:     logger,
	}
}

// Start registers the cron entries and begins scheduling. Returns without
// registering anything when the scheduler is disabled.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}

	spec := s.cfg.ResolveSpec
	if spec == "" {
		spec = "0 3 * * *"
	}

	if _, err := s.cron.AddFunc(spec, s.runSettlement); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithField("spec", spec).Info("Settlement scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Settlement scheduler stopped")
}

// RunSettlement executes one resolve-then-aggregate cycle immediately.
func (s *Scheduler) RunSettlement(ctx context.Context) error {
	resolved, err := s.resolver.ResolveCompleted(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	replaced, err := s.aggregator.Recompute(ctx, s.period, time.Unix(0, 0).UTC(), now)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"resolved": resolved,
		"replaced": replaced,
	}).Info("Settlement cycle completed")
	return nil
}

func (s *Scheduler) runSettlement() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if err := s.RunSettlement(ctx); err != nil {
		s.logger.WithError(err).Error("Settlement cycle failed")
	}
}
