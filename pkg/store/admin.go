package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/failover"
	"github.com/xzinc/IPL/pkg/freshness"
	"github.com/xzinc/IPL/pkg/interactions"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/types"
)

// StatusReport is the operator view of the data layer
type StatusReport struct {
	Active        string                    `json:"active"`
	Backends      []types.BackendDescriptor `json:"backends"`
	Interactions  interactions.Stats        `json:"interactions"`
	References    freshness.Stats           `json:"references"`
	CachedEntries map[types.EntityType]int  `json:"cached_entries"`
	LearningRate  string                    `json:"learning_rate"`
	Learning      bool                      `json:"learning_enabled"`
}

func (s *Store) Status(ctx context.Context) StatusReport {
	st := s.controller.Status()
	cfg := s.holder.Snapshot()

	report := StatusReport{
		Active:        st.Active,
		Backends:      st.Backends,
		Interactions:  s.log.Stats(),
		References:    s.refs.Stats(),
		CachedEntries: make(map[types.EntityType]int, len(types.ReferenceTypes)),
		LearningRate:  cfg.Learning.Rate,
		Learning:      cfg.Learning.Enabled,
	}
	for _, t := range types.ReferenceTypes {
		n, err := s.refs.Size(ctx, t)
		if err != nil {
			logger.Logger(ctx).WithField("entity_type", t).WithError(err).Debug("failed to count cached entries")
			continue
		}
		report.CachedEntries[t] = n
	}
	return report
}

func (s *Store) ForceSwitch(ctx context.Context, name string) error {
	if err := s.controller.ForceSwitch(ctx, name); err != nil {
		return err
	}
	logger.Logger(ctx).WithField("backend", name).Info("active backend switched by operator")
	return nil
}

func (s *Store) CheckBackends(ctx context.Context) map[string]types.HealthStatus {
	return s.controller.CheckAll(ctx)
}

// RefreshReference refetches every entity of a reference type from its source
func (s *Store) RefreshReference(ctx context.Context, t types.EntityType) (int, error) {
	if !t.IsReference() {
		return 0, fmt.Errorf("%w: %q is not a reference type", ErrInvalidEntity, t)
	}
	return s.refs.Refresh(ctx, t, nil)
}

// InvalidateReference makes the next read of t refetch regardless of age
func (s *Store) InvalidateReference(t types.EntityType) error {
	if !t.IsReference() {
		return fmt.Errorf("%w: %q is not a reference type", ErrInvalidEntity, t)
	}
	s.refs.Invalidate(t)
	return nil
}

func (s *Store) PruneNow(ctx context.Context) (interactions.PruneResult, error) {
	return s.log.Prune(ctx)
}

func (s *Store) Config() *config.AppConfig {
	return s.holder.Snapshot()
}

// UpdateConfig validates and applies a configuration change, then pushes the
// new thresholds to the running components
func (s *Store) UpdateConfig(ctx context.Context, fn func(*config.AppConfig)) (*config.AppConfig, error) {
	next, err := s.holder.Update(fn)
	if err != nil {
		return nil, err
	}

	s.controller.UpdateSettings(failover.SettingsFrom(next))
	s.refs.SetTTL(next.Freshness.TTL)

	logger.Logger(ctx).WithFields(logrus.Fields{
		"learning_rate":   next.Learning.Rate,
		"high_water_mark": next.Failover.HighWaterMark,
		"prune_threshold": next.Failover.PruneThreshold,
	}).Info("configuration updated")
	return next, nil
}
