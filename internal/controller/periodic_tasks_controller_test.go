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
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/interactions"
	"github.com/xzinc/IPL/pkg/types"
)

type checkRecorder struct {
	mu     sync.Mutex
	counts map[string]int
	// budget is the time left on the first check's context
	budget time.Duration
}

func (c *checkRecorder) CheckBackend(ctx context.Context, name string) (types.HealthStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
	if deadline, ok := ctx.Deadline(); ok && c.budget == 0 {
		c.budget = time.Until(deadline)
	}
	return types.StatusHealthy, nil
}

func (c *checkRecorder) firstBudget() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

func (c *checkRecorder) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

type pruneRecorder struct {
	mu    sync.Mutex
	calls int
}

func (p *pruneRecorder) Prune(context.Context) (interactions.PruneResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return interactions.PruneResult{}, nil
}

func (p *pruneRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var _ = Describe("Periodic tasks runner", func() {
	var (
		checker *checkRecorder
		pruner  *pruneRecorder
		cfg     *config.AppConfig
	)

	BeforeEach(func() {
		checker = &checkRecorder{counts: map[string]int{}}
		pruner = &pruneRecorder{}
		cfg = &config.AppConfig{
			Failover: config.Failover{
				HealthCheckInterval: 10 * time.Millisecond,
				HealthCheckTimeout:  time.Second,
				OperationTimeout:    2 * time.Second,
			},
			Interactions: config.Interactions{PruneInterval: 10 * time.Millisecond},
		}
	})

	It("registers one health check per backend and the prune job", func() {
		runner, err := NewPeriodicTasksRunner(checker, []string{"mongo", "redis", "local"}, pruner, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.TaskNames()).To(Equal([]string{
			"backend_health_mongo",
			"backend_health_redis",
			"backend_health_local",
			"interaction_prune",
		}))
	})

	It("runs every job until the context is cancelled", func() {
		runner, err := NewPeriodicTasksRunner(checker, []string{"mongo", "local"}, pruner, cfg)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.WithInitialDelay(0).Start(ctx) }()

		Eventually(func() int { return checker.count("mongo") }).Should(BeNumerically(">=", 2))
		Eventually(func() int { return checker.count("local") }).Should(BeNumerically(">=", 2))
		Eventually(pruner.count).Should(BeNumerically(">=", 2))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("gives each health check time for the check and the usage estimate", func() {
		Expect(healthCheckBudget(cfg)).To(Equal(3 * time.Second))

		runner, err := NewPeriodicTasksRunner(checker, []string{"mongo"}, pruner, cfg)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- runner.WithInitialDelay(0).Start(ctx) }()

		Eventually(checker.firstBudget).Should(BeNumerically(">", 2*time.Second))
		Expect(checker.firstBudget()).To(BeNumerically("<=", 3*time.Second))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("returns promptly when cancelled during the initial delay", func() {
		runner, err := NewPeriodicTasksRunner(checker, []string{"mongo"}, pruner, cfg)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(runner.WithInitialDelay(time.Hour).Start(ctx)).To(Succeed())
		Expect(checker.count("mongo")).To(BeZero())
	})

	It("rejects a missing pruner", func() {
		_, err := NewPeriodicTasksRunner(checker, []string{"mongo"}, nil, cfg)
		Expect(err).To(HaveOccurred())
	})
})
