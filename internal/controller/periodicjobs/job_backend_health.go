package periodicjobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/types"
)

const (
	// BackendHealthJobPrefix is followed by the backend name to form the job name
	BackendHealthJobPrefix = "backend_health_"

	DefaultBackendHealthInterval = 30 * time.Second

	// DefaultBackendHealthTimeout bounds one health check plus its usage estimate
	DefaultBackendHealthTimeout = 8 * time.Second
)

// HealthChecker applies one health check to a named backend and returns its
// resulting state. The failover controller implements it.
type HealthChecker interface {
	CheckBackend(ctx context.Context, name string) (types.HealthStatus, error)
}

// BackendHealthJob health checks a single backend so that an unreachable one is
// detected, and a recovered one restored, without waiting for traffic.
type BackendHealthJob struct {
	checker  HealthChecker
	backend  string
	interval time.Duration
	timeout  time.Duration
}

func NewBackendHealthJob(checker HealthChecker, backend string, interval, timeout time.Duration) (*BackendHealthJob, error) {
	if checker == nil {
		return nil, errors.New("health checker is required")
	}
	if backend == "" {
		return nil, errors.New("backend name is required")
	}
	if interval <= 0 {
		interval = DefaultBackendHealthInterval
	}
	if timeout <= 0 {
		timeout = DefaultBackendHealthTimeout
	}
	return &BackendHealthJob{
		checker:  checker,
		backend:  backend,
		interval: interval,
		timeout:  timeout,
	}, nil
}

// add the job to the periodic task manager
func (j *BackendHealthJob) AddToPeriodicTaskManager(mgr *PeriodicTaskManager) {
	mgr.AddTask(j)
}

func (j *BackendHealthJob) GetInterval() time.Duration {
	return j.interval
}

func (j *BackendHealthJob) GetName() string {
	return BackendHealthJobPrefix + j.backend
}

func (j *BackendHealthJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	status, err := j.checker.CheckBackend(ctx, j.backend)
	if err != nil {
		return fmt.Errorf("health check of %s: %w", j.backend, err)
	}

	log := logger.Logger(ctx).WithField("status", status)
	if status == types.StatusUnreachable {
		log.Warn("backend is unreachable")
		return nil
	}
	log.Debug("backend checked")
	return nil
}
