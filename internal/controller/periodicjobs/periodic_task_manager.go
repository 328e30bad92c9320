// Package periodicjobs provides the scheduled background jobs of the data layer.
package periodicjobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/xzinc/IPL/pkg/logger"
)

// jitterFactor spreads task runs so jobs sharing an interval do not fire together
const jitterFactor = 0.1

// PeriodicTask is a unit of background work run on a fixed interval
type PeriodicTask interface {
	GetName() string
	GetInterval() time.Duration
	Run(ctx context.Context) error
}

// PeriodicTaskManager runs every registered task on its own interval
type PeriodicTaskManager struct {
	mu    sync.Mutex
	tasks []PeriodicTask
}

func NewPeriodicTaskManager() *PeriodicTaskManager {
	return &PeriodicTaskManager{}
}

// AddTask registers a task. Tasks added after RunAll has started are not run.
func (m *PeriodicTaskManager) AddTask(task PeriodicTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

// TaskNames lists the registered tasks in registration order
func (m *PeriodicTaskManager) TaskNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tasks))
	for _, t := range m.tasks {
		names = append(names, t.GetName())
	}
	return names
}

// RunAll runs each task immediately and then on its interval until ctx is
// done. A failed run is logged and the task runs again on its next tick.
func (m *PeriodicTaskManager) RunAll(ctx context.Context) error {
	m.mu.Lock()
	tasks := append([]PeriodicTask(nil), m.tasks...)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, task := range tasks {
		log := logger.Logger(ctx).WithField("task", task.GetName())
		if task.GetInterval() <= 0 {
			log.Warn("periodic task has no interval, not scheduling it")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.WithField("interval", task.GetInterval()).Info("periodic task scheduled")
			wait.JitterUntilWithContext(ctx, func(ctx context.Context) {
				runOnce(ctx, task)
			}, task.GetInterval(), jitterFactor, true)
		}()
	}

	wg.Wait()
	return nil
}

func runOnce(ctx context.Context, task PeriodicTask) {
	ctx = logger.WithFields(ctx, logrus.Fields{"task": task.GetName()})
	started := time.Now()
	err := task.Run(ctx)

	log := logger.Logger(ctx).WithField("elapsed", time.Since(started))
	if err != nil {
		log.WithError(err).Error("periodic task failed")
		return
	}
	log.Debug("periodic task completed")
}
