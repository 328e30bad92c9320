package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xzinc/IPL/pkg/cache/inmemory"
	"github.com/xzinc/IPL/pkg/cache/redis"
)

// NoExpiration keeps an entry until it is deleted explicitly
const NoExpiration time.Duration = -1

// Cache is the key/value surface shared by the in-memory and redis drivers.
// Values are stored as strings by convention (JSON documents).
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// GetByPattern returns every entry whose key matches a glob pattern such as "ref:team:*"
	GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error)
}

// Config selects and configures a cache driver
type Config struct {
	Driver   string           `mapstructure:"driver"`
	InMemory *inmemory.Config `mapstructure:"inmemory"`
	Redis    *redis.Config    `mapstructure:"redis"`
}

// New creates the cache driver named in the config
func New(config *Config) (Cache, error) {
	switch config.Driver {
	case "memory", "":
		cfg := config.InMemory
		if cfg == nil {
			cfg = &inmemory.Config{DefaultExpiration: -1, CleanupInterval: 600}
		}
		return inmemory.NewCache(cfg)
	case "redis":
		if config.Redis == nil {
			return nil, fmt.Errorf("redis cache driver selected without redis configuration")
		}
		return redis.NewCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", config.Driver)
	}
}

// IsNotFound reports whether err is a miss from any driver
func IsNotFound(err error) bool {
	return errors.Is(err, inmemory.ErrKeyNotFound) || errors.Is(err, redis.ErrKeyNotFound)
}

var (
	_ Cache = (*inmemory.Cache)(nil)
	_ Cache = (*redis.Cache)(nil)
)
