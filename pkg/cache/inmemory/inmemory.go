package inmemory

import (
	"context"
	"errors"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrKeyNotFound is returned by Get for a missing or expired key
var ErrKeyNotFound = errors.New("key not found in cache")

// Config holds expiration settings in seconds; negative values disable expiry/cleanup
type Config struct {
	DefaultExpiration int32 `mapstructure:"default_expiration"`
	CleanupInterval   int32 `mapstructure:"cleanup_interval"`
}

// Cache is a process-local cache on top of go-cache
type Cache struct {
	client *gocache.Cache
}

func seconds(v int32) time.Duration {
	if v < 0 {
		return gocache.NoExpiration
	}
	return time.Duration(v) * time.Second
}

// NewCache creates an in-memory cache
func NewCache(config *Config) (*Cache, error) {
	return &Cache{
		client: gocache.New(seconds(config.DefaultExpiration), seconds(config.CleanupInterval)),
	}, nil
}

func (c *Cache) Get(_ context.Context, key string) (interface{}, error) {
	val, found := c.client.Get(key)
	if !found {
		return nil, ErrKeyNotFound
	}
	return val, nil
}

func (c *Cache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	c.client.Set(key, value, ttl)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.client.Delete(key)
	return nil
}

func (c *Cache) GetByPattern(_ context.Context, pattern string) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for key, item := range c.client.Items() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if matched {
			result[key] = item.Object
		}
	}
	return result, nil
}
