package periodicjobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xzinc/IPL/pkg/interactions"
	"github.com/xzinc/IPL/pkg/logger"
)

const (
	InteractionPruneJobName         = "interaction_prune"
	DefaultInteractionPruneInterval = time.Hour
)

// Pruner applies the retention policy to the interaction log
type Pruner interface {
	Prune(ctx context.Context) (interactions.PruneResult, error)
}

// InteractionPruneJob enforces retention and the per-user maximum on every
// reachable backend, independently of the usage-triggered prune.
type InteractionPruneJob struct {
	pruner   Pruner
	interval time.Duration
}

func NewInteractionPruneJob(pruner Pruner, interval time.Duration) (*InteractionPruneJob, error) {
	if pruner == nil {
		return nil, errors.New("pruner is required")
	}
	if interval <= 0 {
		interval = DefaultInteractionPruneInterval
	}
	return &InteractionPruneJob{pruner: pruner, interval: interval}, nil
}

// add the job to the periodic task manager
func (j *InteractionPruneJob) AddToPeriodicTaskManager(mgr *PeriodicTaskManager) {
	mgr.AddTask(j)
}

func (j *InteractionPruneJob) GetInterval() time.Duration {
	return j.interval
}

func (*InteractionPruneJob) GetName() string {
	return InteractionPruneJobName
}

// Run prunes once. Removals on backends that succeeded are kept even when
// another backend fails; the failure is returned for logging.
func (j *InteractionPruneJob) Run(ctx context.Context) error {
	result, err := j.pruner.Prune(ctx)

	logger.Logger(ctx).WithFields(logrus.Fields{
		"removed":     result.Removed,
		"per_backend": result.PerBackend,
	}).Info("scheduled interaction prune finished")

	if err != nil {
		return fmt.Errorf("interaction prune: %w", err)
	}
	return nil
}
