package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/xzinc/IPL/pkg/backend/file"
	"github.com/xzinc/IPL/pkg/backend/mongo"
	"github.com/xzinc/IPL/pkg/backend/redis"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/types"
)

//go:generate mockgen -destination=mocks/mock_adapter.go -package=mocks github.com/xzinc/IPL/pkg/backend Adapter

// Adapter is the uniform contract over one physical store.
// Callers never branch on Kind; it is informational only.
type Adapter interface {
	Name() string
	Kind() types.BackendKind

	// Get returns types.ErrNotFound when the entity is absent
	Get(ctx context.Context, entityType types.EntityType, key string) (types.Entity, error)
	Put(ctx context.Context, entity types.Entity) error

	Append(ctx context.Context, it types.Interaction) error
	// Recent returns a user's interactions newest first; limit <= 0 means all
	Recent(ctx context.Context, userID string, limit int) ([]types.Interaction, error)
	// Prune removes interactions the policy does not keep and returns how many were removed
	Prune(ctx context.Context, policy types.PrunePolicy) (int, error)

	// HealthCheck is bounded by the adapter's timeout and never fails;
	// connection errors and timeouts fold into StatusUnreachable
	HealthCheck(ctx context.Context) types.HealthStatus
	// UsageEstimate is the fraction of quota consumed, 0 when unknown
	UsageEstimate(ctx context.Context) (float64, error)

	Close(ctx context.Context) error
}

// Options carries settings shared by every adapter
type Options struct {
	HealthCheckTimeout time.Duration
	// BucketLimit caps each file-store interaction bucket; 0 keeps everything
	BucketLimit int
}

// New builds the adapter for a configured backend from its kind
func New(ctx context.Context, cfg config.Backend, opts Options) (Adapter, error) {
	kind, err := types.ParseBackendKind(cfg.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case types.KindRemoteDocument:
		store, err := mongo.New(ctx, mongo.Config{
			Name:          cfg.Name,
			URI:           cfg.URI,
			Database:      cfg.Database,
			CapacityMB:    cfg.CapacityMB,
			HealthTimeout: opts.HealthCheckTimeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case types.KindRemoteKeyValue:
		store, err := redis.New(redis.Config{
			Name:          cfg.Name,
			URI:           cfg.URI,
			CapacityMB:    cfg.CapacityMB,
			MaxKeys:       cfg.MaxKeys,
			KeyTTL:        cfg.KeyTTL,
			HealthTimeout: opts.HealthCheckTimeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case types.KindLocalFile:
		store, err := file.New(file.Config{
			Name:        cfg.Name,
			Root:        cfg.Path,
			BucketLimit: opts.BucketLimit,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("%w: unsupported backend kind %s", types.ErrConfiguration, kind)
}

// Compile-time interface compliance checks
var (
	_ Adapter = (*mongo.Store)(nil)
	_ Adapter = (*redis.Store)(nil)
	_ Adapter = (*file.Store)(nil)
)
