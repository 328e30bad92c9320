// Package probe runs bounded health probes for backend adapters.
package probe

import (
	"context"
	"time"

	"github.com/xzinc/IPL/pkg/types"
)

// DefaultTimeout bounds a probe when the adapter was configured without one
const DefaultTimeout = 3 * time.Second

// Run executes ping within timeout. Errors and timeouts are Unreachable; a probe
// slower than half the timeout is Degraded. Run never returns an error.
func Run(ctx context.Context, timeout time.Duration, ping func(ctx context.Context) error) types.HealthStatus {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- ping(ctx)
	}()

	select {
	case <-ctx.Done():
		return types.StatusUnreachable
	case err := <-done:
		if err != nil {
			return types.StatusUnreachable
		}
		if time.Since(start) > timeout/2 {
			return types.StatusDegraded
		}
		return types.StatusHealthy
	}
}
