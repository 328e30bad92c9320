package freshness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/xzinc/IPL/pkg/cache"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/telemetry"
	"github.com/xzinc/IPL/pkg/types"
)

const keyPrefix = "ref"

// DefaultTTL is how long a fetched reference entity is served without refetching
const DefaultTTL = 24 * time.Hour

// Fetcher pulls every entity of one type from an external source
type Fetcher func(ctx context.Context, t types.EntityType) ([]types.Entity, error)

// Writer persists a fetched entity to the backends
type Writer func(ctx context.Context, e types.Entity) error

// Stats are cumulative counters since process start
type Stats struct {
	Hits            int64 `json:"hits"`
	Misses          int64 `json:"misses"`
	Fetches         int64 `json:"fetches"`
	FetchFailures   int64 `json:"fetch_failures"`
	PersistFailures int64 `json:"persist_failures"`
}

type entry struct {
	Entity     types.Entity `json:"entity"`
	FetchedAt  time.Time    `json:"fetched_at"`
	Generation int64        `json:"generation"`
}

// Cache serves reference entities (teams, players, venues) with a freshness
// window. Entries live in a cache.Cache under ref:<type>:<key>.
type Cache struct {
	store cache.Cache
	group singleflight.Group

	mu          sync.RWMutex
	ttl         time.Duration
	fetchers    map[types.EntityType]Fetcher
	generations map[types.EntityType]int64
	writer      Writer

	hits, misses, fetches, fetchFailures, persistFailures atomic.Int64

	now     func() time.Time
	metrics *telemetry.DatastoreMetrics
}

// New creates a freshness cache over store. A non-positive ttl uses DefaultTTL.
func New(store cache.Cache, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:       store,
		ttl:         ttl,
		fetchers:    make(map[types.EntityType]Fetcher),
		generations: make(map[types.EntityType]int64),
		now:         time.Now,
		metrics:     telemetry.GetDatastoreMetrics(),
	}
}

// Register sets the external fetcher used on misses of entity type t
func (c *Cache) Register(t types.EntityType, f Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[t] = f
}

// SetWriter sets where freshly fetched entities are persisted
func (c *Cache) SetWriter(w Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = w
}

// SetTTL changes the freshness window for subsequent reads
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Read returns the cached entity when it is fresh. Otherwise it fetches the whole
// type from the registered source and serves the refreshed copy; if that fails
// a stale copy is still served. fromCache is false only for a freshly fetched entity.
func (c *Cache) Read(ctx context.Context, t types.EntityType, key string) (types.Entity, bool, error) {
	key = types.NormalizeKey(key)
	cached, ok := c.lookup(ctx, t, key)
	if ok && c.fresh(t, cached) {
		c.hits.Add(1)
		c.metrics.RecordCacheLookup(ctx, string(t), true)
		return cached.Entity, true, nil
	}
	c.misses.Add(1)
	c.metrics.RecordCacheLookup(ctx, string(t), false)

	fetcher := c.fetcherFor(t)
	if fetcher == nil {
		if ok {
			return cached.Entity, true, nil
		}
		return types.Entity{}, false, fmt.Errorf("%s %q: %w", t, key, types.ErrNotFound)
	}

	if _, err := c.refresh(ctx, t, fetcher); err != nil {
		if ok {
			logger.Logger(ctx).WithFields(logrus.Fields{
				"entity_type": t,
				"key":         key,
			}).WithError(err).Warn("reference fetch failed, serving stale entry")
			return cached.Entity, true, nil
		}
		return types.Entity{}, false, fmt.Errorf("%s %q: %w", t, key, types.ErrNotFound)
	}

	fetched, ok := c.lookup(ctx, t, key)
	if !ok {
		return types.Entity{}, false, fmt.Errorf("%s %q: %w", t, key, types.ErrNotFound)
	}
	return fetched.Entity, false, nil
}

// Put mirrors a written entity into the cache as freshly fetched
func (c *Cache) Put(ctx context.Context, e types.Entity) error {
	e.Normalize()
	return c.save(ctx, e, c.now(), c.generation(e.Type))
}

// Invalidate forces the next read of entity type t to refetch regardless of age
func (c *Cache) Invalidate(t types.EntityType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[t]++
}

// Refresh fetches and stores every entity of type t. A nil fetcher uses the
// registered one. It returns the number of entities stored.
func (c *Cache) Refresh(ctx context.Context, t types.EntityType, fetcher Fetcher) (int, error) {
	if fetcher == nil {
		fetcher = c.fetcherFor(t)
	}
	if fetcher == nil {
		return 0, fmt.Errorf("%w: no source registered for %s", types.ErrConfiguration, t)
	}
	return c.refresh(ctx, t, fetcher)
}

// Size counts the cached entries of type t
func (c *Cache) Size(ctx context.Context, t types.EntityType) (int, error) {
	entries, err := c.store.GetByPattern(ctx, cacheKey(t, "*"))
	if err != nil {
		return 0, fmt.Errorf("failed to list %s entries: %w", t, err)
	}
	return len(entries), nil
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Fetches:         c.fetches.Load(),
		FetchFailures:   c.fetchFailures.Load(),
		PersistFailures: c.persistFailures.Load(),
	}
}

// refresh collapses concurrent fetches of the same type into one call
func (c *Cache) refresh(ctx context.Context, t types.EntityType, fetcher Fetcher) (int, error) {
	v, err, _ := c.group.Do(string(t), func() (interface{}, error) {
		gen := c.generation(t)
		c.fetches.Add(1)

		entities, err := fetcher(ctx, t)
		c.metrics.RecordFetch(ctx, string(t), err)
		if err != nil {
			c.fetchFailures.Add(1)
			return 0, fmt.Errorf("failed to fetch %s: %w", t, err)
		}

		fetchedAt := c.now()
		writer := c.writerFn()
		stored := 0
		for _, e := range entities {
			if e.Type == "" {
				e.Type = t
			}
			e.Normalize()
			if err := e.Validate(); err != nil {
				logger.Logger(ctx).WithField("entity_type", t).WithError(err).Debug("skipping invalid fetched entity")
				continue
			}
			if err := c.save(ctx, e, fetchedAt, gen); err != nil {
				return stored, err
			}
			stored++

			if writer == nil {
				continue
			}
			if err := writer(ctx, e); err != nil {
				c.persistFailures.Add(1)
				logger.Logger(ctx).WithField("entity", e.ID()).WithError(err).Warn("failed to persist fetched entity")
			}
		}

		logger.Logger(ctx).WithFields(logrus.Fields{
			"entity_type": t,
			"stored":      stored,
		}).Info("reference data refreshed")
		return stored, nil
	})
	n, _ := v.(int)
	return n, err
}

func (c *Cache) lookup(ctx context.Context, t types.EntityType, key string) (entry, bool) {
	raw, err := c.store.Get(ctx, cacheKey(t, key))
	if err != nil {
		if !cache.IsNotFound(err) {
			logger.Logger(ctx).WithError(err).Warn("reference cache read failed")
		}
		return entry{}, false
	}

	var e entry
	if err := json.Unmarshal([]byte(fmt.Sprint(raw)), &e); err != nil {
		logger.Logger(ctx).WithField("key", cacheKey(t, key)).WithError(err).Warn("discarding unreadable cache entry")
		return entry{}, false
	}
	return e, true
}

func (c *Cache) save(ctx context.Context, e types.Entity, fetchedAt time.Time, gen int64) error {
	data, err := json.Marshal(entry{Entity: e, FetchedAt: fetchedAt, Generation: gen})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", e.ID(), err)
	}
	if err := c.store.Set(ctx, cacheKey(e.Type, e.Key), string(data), cache.NoExpiration); err != nil {
		return fmt.Errorf("failed to cache %s: %w", e.ID(), err)
	}
	return nil
}

func (c *Cache) fresh(t types.EntityType, e entry) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return e.Generation == c.generations[t] && c.now().Sub(e.FetchedAt) < c.ttl
}

func (c *Cache) generation(t types.EntityType) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[t]
}

func (c *Cache) fetcherFor(t types.EntityType) Fetcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchers[t]
}

func (c *Cache) writerFn() Writer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writer
}

func cacheKey(t types.EntityType, key string) string {
	return strings.Join([]string{keyPrefix, string(t), key}, ":")
}
