package store

import (
	"context"

	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/interactions"
	"github.com/xzinc/IPL/pkg/types"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/xzinc/IPL/pkg/store Interface

// Interface is the data layer seen by the assistant and the admin API.
// Every method is safe for concurrent use and safe to retry once.
type Interface interface {
	// ReadEntity returns an entity by type and key. fromCache reports whether a
	// reference entity was served from the freshness cache.
	ReadEntity(ctx context.Context, t types.EntityType, key string) (e types.Entity, fromCache bool, err error)

	// WriteEntity persists through the active backend with failover. A write that
	// reached a backend but not the reference cache returns *types.PartialWriteFailure.
	WriteEntity(ctx context.Context, e types.Entity) error

	// RecordInteraction queues an interaction; it never blocks and never fails
	RecordInteraction(ctx context.Context, it types.Interaction)

	// RecentInteractions returns a user's interactions newest first
	RecentInteractions(ctx context.Context, userID string, limit int) ([]types.Interaction, error)

	Status(ctx context.Context) StatusReport

	// ForceSwitch makes the named backend active
	ForceSwitch(ctx context.Context, name string) error
	CheckBackends(ctx context.Context) map[string]types.HealthStatus

	RefreshReference(ctx context.Context, t types.EntityType) (int, error)
	InvalidateReference(t types.EntityType) error

	PruneNow(ctx context.Context) (interactions.PruneResult, error)

	Config() *config.AppConfig
	UpdateConfig(ctx context.Context, fn func(*config.AppConfig)) (*config.AppConfig, error)
}
