/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/xzinc/IPL/internal/controller/periodicjobs"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/logger"
)

const defaultInitialDelay = 10 * time.Second

// PeriodicTasksRunner owns the background jobs of the data layer: one health
// check per configured backend and the scheduled interaction prune.
type PeriodicTasksRunner struct {
	taskManager  *periodicjobs.PeriodicTaskManager
	initialDelay time.Duration
}

// NewPeriodicTasksRunner builds the job set from a config snapshot. Intervals
// are fixed at construction; a config update takes effect on restart.
func NewPeriodicTasksRunner(
	checker periodicjobs.HealthChecker,
	backends []string,
	pruner periodicjobs.Pruner,
	cfg *config.AppConfig,
) (*PeriodicTasksRunner, error) {
	periodicTaskManager := periodicjobs.NewPeriodicTaskManager()

	for _, name := range backends {
		healthJob, err := periodicjobs.NewBackendHealthJob(
			checker, name, cfg.Failover.HealthCheckInterval, healthCheckBudget(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create health check job for %s: %w", name, err)
		}
		healthJob.AddToPeriodicTaskManager(periodicTaskManager)
	}

	pruneJob, err := periodicjobs.NewInteractionPruneJob(pruner, cfg.Interactions.PruneInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create interaction prune job: %w", err)
	}
	pruneJob.AddToPeriodicTaskManager(periodicTaskManager)

	return &PeriodicTasksRunner{
		taskManager:  periodicTaskManager,
		initialDelay: defaultInitialDelay,
	}, nil
}

// healthCheckBudget covers the health check and the usage estimate that follows it,
// each of which the controller bounds with its own timeout
func healthCheckBudget(cfg *config.AppConfig) time.Duration {
	return cfg.Failover.HealthCheckTimeout + cfg.Failover.OperationTimeout
}

// WithInitialDelay overrides how long Start waits before the first run
func (ptr *PeriodicTasksRunner) WithInitialDelay(d time.Duration) *PeriodicTasksRunner {
	ptr.initialDelay = d
	return ptr
}

func (ptr *PeriodicTasksRunner) TaskNames() []string {
	return ptr.taskManager.TaskNames()
}

// Start blocks until ctx is done. The initial delay lets the startup health
// check and first dataset pull finish before the jobs begin.
func (ptr *PeriodicTasksRunner) Start(ctx context.Context) error {
	log := logger.Logger(ctx).WithField("component", "periodictasks")
	log.Info("Starting periodic tasks runner")
	defer log.Info("Finishing periodic tasks runner")

	select {
	case <-ctx.Done():
		log.Info("Context canceled during initialization")
		return nil
	case <-time.After(ptr.initialDelay):
	}

	log.WithField("tasks", ptr.taskManager.TaskNames()).Info("Invoking task manager to run all periodic tasks")
	return ptr.taskManager.RunAll(ctx)
}
