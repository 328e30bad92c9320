package types

import (
	"fmt"
	"time"
)

// BackendKind is the closed set of storage technologies a backend can be
type BackendKind string

const (
	KindRemoteDocument BackendKind = "remote-document"
	KindRemoteKeyValue BackendKind = "remote-key-value"
	KindLocalFile      BackendKind = "local-file"
)

// ParseBackendKind validates a configured backend kind
func ParseBackendKind(s string) (BackendKind, error) {
	switch k := BackendKind(s); k {
	case KindRemoteDocument, KindRemoteKeyValue, KindLocalFile:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown backend kind %q", ErrConfiguration, s)
}

// HealthStatus is the health of a single backend as tracked by the failover controller
type HealthStatus string

const (
	StatusHealthy     HealthStatus = "healthy"
	StatusDegraded    HealthStatus = "degraded"
	StatusUnreachable HealthStatus = "unreachable"
)

// BackendDescriptor is the externally visible state of one configured backend
type BackendDescriptor struct {
	Name                 string       `json:"name"`
	Kind                 BackendKind  `json:"kind"`
	Priority             int          `json:"priority"`
	Status               HealthStatus `json:"status"`
	Usage                float64      `json:"usage"`
	CapacityMB           int64        `json:"capacity_mb"`
	LastChecked          time.Time    `json:"last_checked"`
	LastError            string       `json:"last_error,omitempty"`
	ErrorCount           int64        `json:"error_count"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`
	Active               bool         `json:"active"`
}
