package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xzinc/IPL/pkg/backend"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/failover"
	"github.com/xzinc/IPL/pkg/freshness"
	"github.com/xzinc/IPL/pkg/interactions"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/types"
)

// ErrInvalidEntity is returned for entities rejected before reaching any backend
var ErrInvalidEntity = errors.New("invalid entity")

const referenceMirror = "reference-cache"

// Store is the single entry point to the data layer. It routes entity and
// interaction traffic through the failover controller and serves reference
// data through the freshness cache.
type Store struct {
	controller *failover.Controller
	refs       *freshness.Cache
	log        *interactions.Log
	holder     *config.Holder

	now func() time.Time
}

// New wires the components together: fetched reference data is persisted
// through the controller and backend pressure triggers an interaction prune.
func New(controller *failover.Controller, refs *freshness.Cache, log *interactions.Log, holder *config.Holder) *Store {
	s := &Store{
		controller: controller,
		refs:       refs,
		log:        log,
		holder:     holder,
		now:        time.Now,
	}
	refs.SetWriter(s.persist)
	controller.OnPressure(func(name string, usage float64) {
		logger.Logger(context.Background()).WithFields(logrus.Fields{
			"backend": name,
			"usage":   usage,
		}).Info("backend usage above prune threshold, pruning interactions")
		log.TriggerPrune()
	})
	return s
}

func (s *Store) ReadEntity(ctx context.Context, t types.EntityType, key string) (types.Entity, bool, error) {
	if _, err := types.ParseEntityType(string(t)); err != nil {
		return types.Entity{}, false, fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}
	key = types.NormalizeKey(key)
	if key == "" {
		return types.Entity{}, false, fmt.Errorf("%w: key is required", ErrInvalidEntity)
	}

	if !t.IsReference() {
		e, err := s.readBackend(ctx, t, key)
		return e, false, err
	}

	e, fromCache, err := s.refs.Read(ctx, t, key)
	if err == nil {
		return e, fromCache, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return types.Entity{}, false, err
	}

	e, err = s.readBackend(ctx, t, key)
	if err != nil {
		return types.Entity{}, false, err
	}
	if err := s.refs.Put(ctx, e); err != nil {
		logger.Logger(ctx).WithField("entity", e.ID()).WithError(err).Warn("failed to seed reference cache")
	}
	return e, false, nil
}

func (s *Store) WriteEntity(ctx context.Context, e types.Entity) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.now().UTC()
	}

	if err := s.persist(ctx, e); err != nil {
		return err
	}

	if !e.Type.IsReference() {
		return nil
	}
	if err := s.refs.Put(ctx, e); err != nil {
		logger.Logger(ctx).WithField("entity", e.ID()).WithError(err).Warn("entity written but reference cache not updated")
		return &types.PartialWriteFailure{EntityID: e.ID(), Mirror: referenceMirror, Err: err}
	}
	return nil
}

func (s *Store) RecordInteraction(ctx context.Context, it types.Interaction) {
	s.log.Record(ctx, it)
}

func (s *Store) RecentInteractions(ctx context.Context, userID string, limit int) ([]types.Interaction, error) {
	return s.log.Recent(ctx, userID, limit)
}

// persist writes to the backends only; it is also the writer for fetched reference data
func (s *Store) persist(ctx context.Context, e types.Entity) error {
	return s.controller.Write(ctx, "put", func(ctx context.Context, a backend.Adapter) error {
		return a.Put(ctx, e)
	})
}

func (s *Store) readBackend(ctx context.Context, t types.EntityType, key string) (types.Entity, error) {
	var out types.Entity
	err := s.controller.Read(ctx, "get", func(ctx context.Context, a backend.Adapter) error {
		e, err := a.Get(ctx, t, key)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

var _ Interface = (*Store)(nil)
