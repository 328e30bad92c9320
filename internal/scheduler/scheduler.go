// Package scheduler refreshes the reference datasets on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/types"
)

const (
	// DefaultSchedule is daily at 04:00 UTC
	DefaultSchedule = "0 4 * * *"
	DefaultTimeout  = 5 * time.Minute
)

// Refresher refetches all entities of one reference type
type Refresher interface {
	RefreshReference(ctx context.Context, t types.EntityType) (int, error)
}

// Scheduler runs a full reference refresh on a cron schedule
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	schedule  string
	timeout   time.Duration

	mu      sync.Mutex
	running bool
}

func New(refresher Refresher, schedule string, timeout time.Duration) (*Scheduler, error) {
	if refresher == nil {
		return nil, errors.New("refresher is required")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("%w: refresh schedule %q: %v", types.ErrConfiguration, schedule, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cronLog := cron.PrintfLogger(logger.Logger(context.Background()).WithField("component", "scheduler"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		refresher: refresher,
		schedule:  schedule,
		timeout:   timeout,
	}, nil
}

// Run starts the schedule and blocks until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Start registers the refresh job and starts the cron runner. Jobs run with a
// context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RefreshAll(ctx); err != nil {
			logger.Logger(ctx).WithError(err).Error("scheduled dataset refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule dataset refresh: %w", err)
	}

	s.cron.Start()
	s.running = true
	logger.Logger(ctx).WithField("schedule", s.schedule).Info("dataset refresh scheduled")
	return nil
}

// Stop waits for a running refresh to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && len(s.cron.Entries()) > 0
}

// RefreshAll refreshes every reference type in turn. A type that fails keeps
// its cached entries; the failures are returned together.
func (s *Scheduler) RefreshAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var errs []error
	counts := logrus.Fields{}
	for _, t := range types.ReferenceTypes {
		n, err := s.refresher.RefreshReference(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		counts[string(t)] = n
	}

	logger.Logger(ctx).WithFields(counts).WithField("failed", len(errs)).Info("dataset refresh finished")
	return utilerrors.NewAggregate(errs)
}
