// Package scheduler triggers refresh passes on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"coursesync/internal/logging"
	"coursesync/internal/service"
)

// Scheduler wraps a gocron scheduler running periodic refresh jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	log       *logging.Logger
}

// New creates a stopped scheduler whose job logs use loc.
func New(loc *time.Location) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, log: logging.New(loc, "scheduler")}, nil
}

// SchedulePeriodicRefresh runs svc.Refresh every interval, first right after Start.
// A run still in progress when the next one is due causes that one to be skipped.
// It returns the gocron job ID.
func (s *Scheduler) SchedulePeriodicRefresh(ctx context.Context, interval time.Duration, svc service.SyncService) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.refresh(ctx, svc) }),
		gocron.WithName("periodic-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic refresh job: %w", err)
	}
	s.log.Info("refresh_scheduled", logging.Fields{"job_id": job.ID().String(), "interval": interval.String()})
	return job.ID().String(), nil
}

func (s *Scheduler) refresh(ctx context.Context, svc service.SyncService) {
	res, err := svc.Refresh(ctx)
	switch {
	case errors.Is(err, service.ErrRefreshInProgress):
		s.log.Info("refresh_skipped", logging.Fields{"reason": "in_progress"})
	case err != nil:
		s.log.Error("scheduled_refresh_failed", logging.Fields{"error": err})
	default:
		s.log.Info("scheduled_refresh_done", logging.Fields{"run_id": res.RunID, "failed": len(res.Failures)})
	}
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
