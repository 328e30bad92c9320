package failover

import (
	"github.com/xzinc/IPL/pkg/types"
)

// applyCheck folds one health check outcome into a descriptor.
//
//	failure:            Healthy -> Degraded, FailureThreshold consecutive failures -> Unreachable
//	success:            Unreachable -> Degraded, RecoveryThreshold consecutive successes in Degraded -> Healthy
//	reported Degraded:  counters reset, state Degraded
func applyCheck(d *types.BackendDescriptor, outcome types.HealthStatus, s Settings) {
	switch outcome {
	case types.StatusHealthy:
		d.ConsecutiveFailures = 0
		switch d.Status {
		case types.StatusUnreachable:
			d.Status = types.StatusDegraded
			d.ConsecutiveSuccesses = 0
		case types.StatusDegraded:
			d.ConsecutiveSuccesses++
			if d.ConsecutiveSuccesses >= s.RecoveryThreshold {
				d.Status = types.StatusHealthy
			}
		default:
			d.ConsecutiveSuccesses++
		}
	case types.StatusDegraded:
		d.ConsecutiveFailures = 0
		d.ConsecutiveSuccesses = 0
		d.Status = types.StatusDegraded
	default:
		applyFailure(d, "health check failed", s)
	}
}

// applyFailure records one failed check or operation
func applyFailure(d *types.BackendDescriptor, reason string, s Settings) {
	d.ConsecutiveSuccesses = 0
	d.ConsecutiveFailures++
	d.ErrorCount++
	d.LastError = reason
	if d.ConsecutiveFailures >= s.FailureThreshold {
		d.Status = types.StatusUnreachable
		return
	}
	if d.Status == types.StatusHealthy {
		d.Status = types.StatusDegraded
	}
}
