package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xzinc/IPL/pkg/types"
)

const (
	entitiesDir     = "entities"
	interactionsDir = "interactions"

	defaultBucketCacheSize = 256
)

type Config struct {
	Name string
	Root string
	// BucketLimit keeps only the newest N interactions per user on append; 0 keeps all
	BucketLimit     int
	BucketCacheSize int
}

// Store is the local-file fallback backend.
// Layout under Root:
//
//	entities/<type>/<key>.json    one JSON document per entity
//	interactions/<user>.json      one JSON bucket per user, oldest first
type Store struct {
	name        string
	root        string
	bucketLimit int

	// mu serializes file writes; buckets caches decoded interaction buckets
	mu      sync.Mutex
	buckets *lru.Cache[string, []types.Interaction]
}

func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("%w: file backend %s has no path", types.ErrConfiguration, cfg.Name)
	}
	size := cfg.BucketCacheSize
	if size <= 0 {
		size = defaultBucketCacheSize
	}
	buckets, err := lru.New[string, []types.Interaction](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket cache: %w", err)
	}

	for _, dir := range []string{entitiesDir, interactionsDir} {
		if err := os.MkdirAll(filepath.Join(cfg.Root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return &Store{
		name:        cfg.Name,
		root:        cfg.Root,
		bucketLimit: cfg.BucketLimit,
		buckets:     buckets,
	}, nil
}

func (s *Store) Name() string { return s.name }

func (s *Store) Kind() types.BackendKind { return types.KindLocalFile }

func (s *Store) entityPath(entityType types.EntityType, key string) string {
	return filepath.Join(s.root, entitiesDir, url.PathEscape(string(entityType)), url.PathEscape(key)+".json")
}

func (s *Store) bucketPath(userID string) string {
	return filepath.Join(s.root, interactionsDir, url.PathEscape(userID)+".json")
}

func (s *Store) Get(_ context.Context, entityType types.EntityType, key string) (types.Entity, error) {
	data, err := os.ReadFile(s.entityPath(entityType, key))
	if errors.Is(err, fs.ErrNotExist) {
		return types.Entity{}, types.ErrNotFound
	}
	if err != nil {
		return types.Entity{}, fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}
	var entity types.Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return types.Entity{}, fmt.Errorf("failed to unmarshal entity %s: %w", key, err)
	}
	return entity, nil
}

func (s *Store) Put(_ context.Context, entity types.Entity) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.entityPath(entity.Type, entity.Key), data)
}

func (s *Store) Append(_ context.Context, it types.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, err := s.loadBucket(it.UserID)
	if err != nil {
		return err
	}
	bucket = append(bucket, it)
	sortOldestFirst(bucket)
	if s.bucketLimit > 0 && len(bucket) > s.bucketLimit {
		bucket = bucket[len(bucket)-s.bucketLimit:]
	}
	return s.saveBucket(it.UserID, bucket)
}

func (s *Store) Recent(_ context.Context, userID string, limit int) ([]types.Interaction, error) {
	s.mu.Lock()
	bucket, err := s.loadBucket(userID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	n := len(bucket)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.Interaction, 0, n)
	for i := len(bucket) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, bucket[i])
	}
	return out, nil
}

func (s *Store) Prune(_ context.Context, policy types.PrunePolicy) (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, interactionsDir))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if entry.IsDir() || !ok {
			continue
		}
		userID, err := url.PathUnescape(name)
		if err != nil {
			continue
		}

		bucket, err := s.loadBucket(userID)
		if err != nil {
			return removed, err
		}

		kept := make([]types.Interaction, 0, len(bucket))
		for i := len(bucket) - 1; i >= 0; i-- {
			if policy.Keep(bucket[i], len(kept)) {
				kept = append(kept, bucket[i])
			}
		}
		if len(kept) == len(bucket) {
			continue
		}
		removed += len(bucket) - len(kept)
		sortOldestFirst(kept)

		if len(kept) == 0 {
			s.buckets.Remove(userID)
			if err := os.Remove(s.bucketPath(userID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, fmt.Errorf("failed to remove bucket %s: %w", userID, err)
			}
			continue
		}
		if err := s.saveBucket(userID, kept); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// HealthCheck reports Healthy while the root directory is writable
func (s *Store) HealthCheck(_ context.Context) types.HealthStatus {
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return types.StatusUnreachable
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return types.StatusHealthy
}

// UsageEstimate is always 0; the local disk has no quota
func (s *Store) UsageEstimate(_ context.Context) (float64, error) {
	return 0, nil
}

func (s *Store) Close(_ context.Context) error {
	s.buckets.Purge()
	return nil
}

// loadBucket returns a copy of a user's bucket. Caller must hold s.mu.
func (s *Store) loadBucket(userID string) ([]types.Interaction, error) {
	if cached, ok := s.buckets.Get(userID); ok {
		return append([]types.Interaction(nil), cached...), nil
	}

	data, err := os.ReadFile(s.bucketPath(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}

	var bucket []types.Interaction
	if err := json.Unmarshal(data, &bucket); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interactions of %s: %w", userID, err)
	}
	s.buckets.Add(userID, bucket)
	return append([]types.Interaction(nil), bucket...), nil
}

// saveBucket persists a bucket and refreshes the cached copy. Caller must hold s.mu.
func (s *Store) saveBucket(userID string, bucket []types.Interaction) error {
	data, err := json.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("failed to marshal interactions: %w", err)
	}
	if err := writeAtomic(s.bucketPath(userID), data); err != nil {
		return err
	}
	s.buckets.Add(userID, append([]types.Interaction(nil), bucket...))
	return nil
}

func sortOldestFirst(bucket []types.Interaction) {
	sort.SliceStable(bucket, func(i, j int) bool {
		return bucket[i].Timestamp.Before(bucket[j].Timestamp)
	})
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}
	return nil
}
