package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xzinc/IPL/pkg/backend"
	"github.com/xzinc/IPL/pkg/backend/file"
	"github.com/xzinc/IPL/pkg/cache"
	"github.com/xzinc/IPL/pkg/cache/inmemory"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/failover"
	"github.com/xzinc/IPL/pkg/freshness"
	"github.com/xzinc/IPL/pkg/interactions"
	"github.com/xzinc/IPL/pkg/types"
)

// brokenCache accepts nothing
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (interface{}, error) {
	return nil, inmemory.ErrKeyNotFound
}
func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("cache is read-only")
}
func (brokenCache) Delete(context.Context, string) error { return nil }
func (brokenCache) GetByPattern(context.Context, string) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

type fixture struct {
	store    *Store
	primary  *file.Store
	fallback *file.Store
	fetches  *atomic.Int32
	failing  *atomic.Bool
}

func testConfig(t *testing.T) *config.AppConfig {
	return &config.AppConfig{
		Backends: []config.Backend{
			{Name: "primary", Kind: string(types.KindLocalFile), Enabled: true, Path: t.TempDir()},
		},
		Failover: config.Failover{
			HighWaterMark:     0.95,
			PruneThreshold:    0.85,
			OperationTimeout:  time.Second,
			FailureThreshold:  3,
			RecoveryThreshold: 2,
			AutoFailover:      true,
			Failback:          true,
		},
		Freshness:    config.Freshness{TTL: time.Hour},
		Learning:     config.Learning{Rate: config.LearningNormal, Enabled: true},
		Interactions: config.Interactions{QueueSize: 16, Workers: 1},
	}
}

func newFixture(t *testing.T, refCache cache.Cache) *fixture {
	t.Helper()
	ctx := context.Background()

	if refCache == nil {
		c, err := inmemory.NewCache(&inmemory.Config{DefaultExpiration: -1, CleanupInterval: -1})
		require.NoError(t, err)
		refCache = c
	}

	primary, err := file.New(file.Config{Name: "primary", Root: t.TempDir()})
	require.NoError(t, err)
	fallback, err := file.New(file.Config{Name: "fallback", Root: t.TempDir()})
	require.NoError(t, err)

	holder := config.NewHolder(testConfig(t))
	controller, err := failover.New([]backend.Adapter{primary, fallback}, failover.SettingsFrom(holder.Snapshot()))
	require.NoError(t, err)

	refs := freshness.New(refCache, time.Hour)
	fetches, failing := &atomic.Int32{}, &atomic.Bool{}
	refs.Register(types.EntityTeam, func(_ context.Context, t types.EntityType) ([]types.Entity, error) {
		fetches.Add(1)
		if failing.Load() {
			return nil, errors.New("github unreachable")
		}
		return []types.Entity{{Type: t, Name: "Royal Challengers Bangalore", Stats: map[string]float64{"wins": 114}}}, nil
	})

	log := interactions.New(controller, holder)
	log.Start(ctx)
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = log.Stop(stopCtx)
	})

	return &fixture{
		store:    New(controller, refs, log, holder),
		primary:  primary,
		fallback: fallback,
		fetches:  fetches,
		failing:  failing,
	}
}

func TestReadEntity_ReferenceFetchedAndPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	e, fromCache, err := f.store.ReadEntity(ctx, types.EntityTeam, "Royal Challengers Bangalore")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 114.0, e.Stats["wins"])

	persisted, err := f.primary.Get(ctx, types.EntityTeam, "royal-challengers-bangalore")
	require.NoError(t, err)
	assert.Equal(t, "Royal Challengers Bangalore", persisted.Name)

	_, fromCache, err = f.store.ReadEntity(ctx, types.EntityTeam, "royal-challengers-bangalore")
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, int32(1), f.fetches.Load())
}

func TestReadEntity_FallsBackToBackendAndSeedsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.failing.Store(true)

	require.NoError(t, f.primary.Put(ctx, types.Entity{Type: types.EntityTeam, Key: "punjab-kings", Name: "Punjab Kings"}))

	e, fromCache, err := f.store.ReadEntity(ctx, types.EntityTeam, "Punjab Kings")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "Punjab Kings", e.Name)

	_, fromCache, err = f.store.ReadEntity(ctx, types.EntityTeam, "punjab-kings")
	require.NoError(t, err)
	assert.True(t, fromCache)

	_, _, err = f.store.ReadEntity(ctx, types.EntityTeam, "deccan-chargers")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestReadEntity_MatchesBypassCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, _, err := f.store.ReadEntity(ctx, types.EntityMatch, "2023-final")
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, f.store.WriteEntity(ctx, types.Entity{Type: types.EntityMatch, Name: "2023 Final"}))
	e, fromCache, err := f.store.ReadEntity(ctx, types.EntityMatch, "2023-final")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.False(t, e.UpdatedAt.IsZero())

	_, _, err = f.store.ReadEntity(ctx, "stadium", "x")
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestWriteEntity(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		refCache   cache.Cache
		entity     types.Entity
		wantErr    error
		wantStored bool
	}{
		{
			name:       "reference entity is mirrored",
			entity:     types.Entity{Type: types.EntityVenue, Name: "Eden Gardens"},
			wantStored: true,
		},
		{
			name:    "invalid entity never reaches a backend",
			entity:  types.Entity{Type: "umpire", Name: "Nitin Menon"},
			wantErr: ErrInvalidEntity,
		},
		{
			name:       "mirror failure is a partial write",
			refCache:   brokenCache{},
			entity:     types.Entity{Type: types.EntityVenue, Name: "Eden Gardens"},
			wantStored: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.refCache)
			err := f.store.WriteEntity(ctx, tt.entity)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.refCache != nil:
				var partial *types.PartialWriteFailure
				require.True(t, errors.As(err, &partial))
				assert.Equal(t, "venue:eden-gardens", partial.EntityID)
				assert.Equal(t, referenceMirror, partial.Mirror)
			default:
				require.NoError(t, err)
				e, fromCache, err := f.store.ReadEntity(ctx, types.EntityVenue, "eden-gardens")
				require.NoError(t, err)
				assert.True(t, fromCache)
				assert.Equal(t, "Eden Gardens", e.Name)
			}

			_, err = f.primary.Get(ctx, types.EntityVenue, "eden-gardens")
			if tt.wantStored {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, types.ErrNotFound)
			}
		})
	}
}

func TestInteractions_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for _, msg := range []string{"who won in 2016?", "who won in 2016?"} {
		f.store.RecordInteraction(ctx, types.Interaction{UserID: "42", Message: msg, Response: "SRH"})
	}
	require.NoError(t, f.store.log.Flush(ctx))

	got, err := f.store.RecentInteractions(ctx, "42", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	report := f.store.Status(ctx)
	assert.Equal(t, int64(2), report.Interactions.Recorded)
}

func TestAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	t.Run("force switch", func(t *testing.T) {
		require.NoError(t, f.store.ForceSwitch(ctx, "fallback"))
		report := f.store.Status(ctx)
		assert.Equal(t, "fallback", report.Active)
		assert.Len(t, report.Backends, 2)
		assert.Error(t, f.store.ForceSwitch(ctx, "mystery"))
	})

	t.Run("refresh and invalidate", func(t *testing.T) {
		n, err := f.store.RefreshReference(ctx, types.EntityTeam)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, f.store.Status(ctx).CachedEntries[types.EntityTeam])

		require.NoError(t, f.store.InvalidateReference(types.EntityTeam))
		_, fromCache, err := f.store.ReadEntity(ctx, types.EntityTeam, "royal-challengers-bangalore")
		require.NoError(t, err)
		assert.False(t, fromCache)

		_, err = f.store.RefreshReference(ctx, types.EntityMatch)
		assert.ErrorIs(t, err, ErrInvalidEntity)
		assert.ErrorIs(t, f.store.InvalidateReference(types.EntityMatch), ErrInvalidEntity)
	})

	t.Run("check backends", func(t *testing.T) {
		got := f.store.CheckBackends(ctx)
		assert.Equal(t, map[string]types.HealthStatus{
			"primary":  types.StatusHealthy,
			"fallback": types.StatusHealthy,
		}, got)
	})

	t.Run("prune", func(t *testing.T) {
		result, err := f.store.PruneNow(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Removed)
		assert.Equal(t, 200, result.MaxPerUser)
	})

	t.Run("update config", func(t *testing.T) {
		next, err := f.store.UpdateConfig(ctx, func(c *config.AppConfig) {
			c.Learning.Rate = config.LearningFast
		})
		require.NoError(t, err)
		assert.Equal(t, config.LearningFast, next.Learning.Rate)
		assert.Equal(t, config.LearningFast, f.store.Config().Learning.Rate)

		result, err := f.store.PruneNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50, result.MaxPerUser)

		_, err = f.store.UpdateConfig(ctx, func(c *config.AppConfig) {
			c.Learning.Rate = "glacial"
		})
		assert.ErrorIs(t, err, types.ErrConfiguration)
		assert.Equal(t, config.LearningFast, f.store.Config().Learning.Rate)
	})
}
