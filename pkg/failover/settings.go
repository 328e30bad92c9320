package failover

import (
	"time"

	"github.com/xzinc/IPL/pkg/config"
)

// Settings are the controller thresholds; they can be replaced at runtime
type Settings struct {
	HighWaterMark     float64
	PruneThreshold    float64
	OperationTimeout  time.Duration
	UsageCacheTTL     time.Duration
	FailureThreshold  int
	RecoveryThreshold int
	AutoFailover      bool
	Failback          bool
}

// SettingsFrom extracts controller settings from a config snapshot
func SettingsFrom(cfg *config.AppConfig) Settings {
	return Settings{
		HighWaterMark:     cfg.Failover.HighWaterMark,
		PruneThreshold:    cfg.Failover.PruneThreshold,
		OperationTimeout:  cfg.Failover.OperationTimeout,
		UsageCacheTTL:     cfg.Failover.UsageCacheTTL,
		FailureThreshold:  cfg.Failover.FailureThreshold,
		RecoveryThreshold: cfg.Failover.RecoveryThreshold,
		AutoFailover:      cfg.Failover.AutoFailover,
		Failback:          cfg.Failover.Failback,
	}
}

// DefaultSettings mirror the config defaults
func DefaultSettings() Settings {
	return Settings{
		HighWaterMark:     0.95,
		PruneThreshold:    0.85,
		OperationTimeout:  5 * time.Second,
		UsageCacheTTL:     15 * time.Second,
		FailureThreshold:  3,
		RecoveryThreshold: 2,
		AutoFailover:      true,
		Failback:          true,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.HighWaterMark <= 0 {
		s.HighWaterMark = d.HighWaterMark
	}
	if s.OperationTimeout <= 0 {
		s.OperationTimeout = d.OperationTimeout
	}
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = d.FailureThreshold
	}
	if s.RecoveryThreshold <= 0 {
		s.RecoveryThreshold = d.RecoveryThreshold
	}
	return s
}
