package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zombor/veripay/internal/receipt"
)

// DefaultSchedule runs every Monday morning, after the previous week closed.
const DefaultSchedule = "0 6 * * 1"

// Scheduler reconciles the last completed period on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	service    *Service
	timeSource receipt.TimeSource
	logger     *slog.Logger
}

// NewScheduler creates a new job scheduler
func NewScheduler(service *Service, logger *slog.Logger) *Scheduler {
	return NewSchedulerWithDeps(service, logger, wallClock{})
}

// NewSchedulerWithDeps creates a scheduler with a custom clock for testing
func NewSchedulerWithDeps(service *Service, logger *slog.Logger, timeSrc receipt.TimeSource) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
	)
	return &Scheduler{
		cron:       c,
		service:    service,
		timeSource: timeSrc,
		logger:     logger,
	}
}

// Start registers the reconciliation job and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("scheduling reconciliation %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("reconciliation scheduler started", slog.String("schedule", spec))
	return nil
}

// Stop stops the cron loop; the returned context is done when a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("reconciliation scheduler stopping")
	return s.cron.Stop()
}

// RunOnce reconciles the period before the current one.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	period := PeriodOf(s.timeSource.Now()).Previous()
	return s.service.ReconcilePeriod(ctx, period.Start)
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	res, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("scheduled reconciliation failed", slog.Any("error", err))
		return
	}
	s.logger.Info("scheduled reconciliation completed",
		slog.String("period", res.Period.String()),
		slog.Int("matched", len(res.Matched)),
		slog.Int("ambiguous", len(res.Ambiguous)),
		slog.Int("unmatched", len(res.Unmatched)),
		slog.Int("unclaimed", len(res.Unclaimed)),
	)
}
