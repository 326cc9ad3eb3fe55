// Package scheduler triggers gateway read cycles on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/healthgw/internal/gateway"
	"github.com/tejusbharadwaj/healthgw/internal/models"
)

// Refresher runs one read cycle.
type Refresher interface {
	Refresh(ctx context.Context) (*models.ReadResult, error)
}

type Scheduler struct {
	refresher Refresher
	logger    logrus.FieldLogger
	cron      *cron.Cron
	schedule  string
	timeout   time.Duration
}

// NewScheduler builds a scheduler running refresher on the given cron spec
// ("@every 5m", "*/5 * * * *"). Each run is bounded by timeout.
func NewScheduler(refresher Refresher, schedule string, timeout time.Duration, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		logger:    logger.WithField("component", "scheduler"),
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule:  schedule,
		timeout:   timeout,
	}
}

// Start the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.refresh); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Scheduler started")
	return nil
}

// refresh runs one read cycle. Missing permissions are expected until the
// user grants them and are logged at info level.
func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.refresher.Refresh(ctx)
	switch {
	case errors.Is(err, gateway.ErrPermissionPending):
		s.logger.WithError(err).Info("Scheduled refresh waiting for permissions")
	case err != nil:
		s.logger.WithError(err).Error("Scheduled refresh failed")
	default:
		s.logger.WithField("samples", res.Len()).Debug("Scheduled refresh completed")
	}
}

// Stop the scheduler and wait for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
