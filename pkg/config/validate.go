package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/xzinc/IPL/pkg/types"
)

// ErrInvalid wraps every validation failure; it is a configuration error
var ErrInvalid = fmt.Errorf("invalid configuration: %w", types.ErrConfiguration)

const defaultKeyTTL = 30 * 24 * time.Hour

// Validate checks thresholds, learning rate and that at least one backend can be connected to
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Failover.PruneThreshold <= 0 || c.Failover.PruneThreshold >= c.Failover.HighWaterMark {
		errs = append(errs, fmt.Errorf("prune_threshold %.2f must be above 0 and below high_water_mark %.2f",
			c.Failover.PruneThreshold, c.Failover.HighWaterMark))
	}
	if c.Failover.HighWaterMark > 1 {
		errs = append(errs, fmt.Errorf("high_water_mark %.2f must not exceed 1", c.Failover.HighWaterMark))
	}
	if c.Failover.FailureThreshold < 1 || c.Failover.RecoveryThreshold < 1 {
		errs = append(errs, fmt.Errorf("failure_threshold and recovery_threshold must be at least 1"))
	}
	if _, err := ProfileFor(c.Learning.Rate); err != nil {
		errs = append(errs, err)
	}
	if c.Freshness.TTL <= 0 {
		errs = append(errs, fmt.Errorf("freshness ttl must be positive"))
	}

	seen := make(map[string]bool)
	for _, b := range c.Backends {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("backend name is required"))
			continue
		}
		if seen[b.Name] {
			errs = append(errs, fmt.Errorf("duplicate backend name %q", b.Name))
		}
		seen[b.Name] = true
		if _, err := types.ParseBackendKind(b.Kind); err != nil {
			errs = append(errs, fmt.Errorf("backend %s: %v", b.Name, err))
		}
	}

	if usable, _ := c.UsableBackends(); len(usable) == 0 {
		errs = append(errs, fmt.Errorf("no enabled backend has connection info"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// UsableBackends returns the enabled backends with connection info in priority order,
// and the names of enabled backends skipped for missing connection info.
func (c *AppConfig) UsableBackends() ([]Backend, []string) {
	var usable []Backend
	var skipped []string
	for _, b := range c.Backends {
		if !b.Enabled {
			continue
		}
		if b.Kind != string(types.KindLocalFile) && b.URI == "" {
			skipped = append(skipped, b.Name)
			continue
		}
		usable = append(usable, b)
	}
	return usable, skipped
}
