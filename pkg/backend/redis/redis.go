package redis

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xzinc/IPL/pkg/backend/internal/probe"
	"github.com/xzinc/IPL/pkg/types"
)

const usersKey = "interactions:users"

type Config struct {
	Name       string
	URI        string
	CapacityMB int64
	// MaxKeys is the key quota used when memory usage cannot be read
	MaxKeys       int64
	KeyTTL        time.Duration
	HealthTimeout time.Duration
}

// Store is the remote-key-value backend.
// Key format:
//
//	entity:<type>:<key>     JSON entity
//	interactions:<user>     sorted set of JSON interactions scored by unix millis
//	interactions:users      set of users with interactions
type Store struct {
	name          string
	client        goredis.UniversalClient
	capacityBytes float64
	maxKeys       int64
	keyTTL        time.Duration
	healthTimeout time.Duration
}

// New parses a redis:// or rediss:// uri and instruments the client
func New(cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: redis backend %s has no uri", types.ErrConfiguration, cfg.Name)
	}
	opts, err := goredis.ParseURL(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis uri for %s: %v", types.ErrConfiguration, cfg.Name, err)
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = probe.DefaultTimeout
	}
	opts.DialTimeout = cfg.HealthTimeout

	client := goredis.NewClient(opts)
	if err := redisotel.InstrumentMetrics(client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis metrics: %w", err)
	}
	return NewWithClient(cfg, client), nil
}

// NewWithClient wraps an existing client
func NewWithClient(cfg Config, client goredis.UniversalClient) *Store {
	return &Store{
		name:          cfg.Name,
		client:        client,
		capacityBytes: float64(cfg.CapacityMB) * 1024 * 1024,
		maxKeys:       cfg.MaxKeys,
		keyTTL:        cfg.KeyTTL,
		healthTimeout: cfg.HealthTimeout,
	}
}

func entityKey(entityType types.EntityType, key string) string {
	return "entity:" + types.EntityID(entityType, key)
}

func interactionsKey(userID string) string {
	return "interactions:" + userID
}

func (s *Store) Name() string { return s.name }

func (s *Store) Kind() types.BackendKind { return types.KindRemoteKeyValue }

func (s *Store) Get(ctx context.Context, entityType types.EntityType, key string) (types.Entity, error) {
	val, err := s.client.Get(ctx, entityKey(entityType, key)).Result()
	if err != nil {
		return types.Entity{}, classify(err)
	}
	var entity types.Entity
	if err := json.Unmarshal([]byte(val), &entity); err != nil {
		return types.Entity{}, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return entity, nil
}

func (s *Store) Put(ctx context.Context, entity types.Entity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	return classify(s.client.Set(ctx, entityKey(entity.Type, entity.Key), string(data), 0).Err())
}

func (s *Store) Append(ctx context.Context, it types.Interaction) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction: %w", err)
	}
	key := interactionsKey(it.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, key, goredis.Z{Score: float64(it.Timestamp.UnixMilli()), Member: string(data)})
		pipe.SAdd(ctx, usersKey, it.UserID)
		if s.keyTTL > 0 {
			pipe.Expire(ctx, key, s.keyTTL)
		}
		return nil
	})
	return classify(err)
}

func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]types.Interaction, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := s.client.ZRevRange(ctx, interactionsKey(userID), 0, stop).Result()
	if err != nil {
		return nil, classify(err)
	}
	out := make([]types.Interaction, 0, len(members))
	for _, m := range members {
		var it types.Interaction
		if err := json.Unmarshal([]byte(m), &it); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interaction: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) Prune(ctx context.Context, policy types.PrunePolicy) (int, error) {
	users, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return 0, classify(err)
	}

	removed := 0
	for _, userID := range users {
		key := interactionsKey(userID)
		if !policy.Before.IsZero() {
			max := "(" + strconv.FormatInt(policy.Before.UnixMilli(), 10)
			n, err := s.client.ZRemRangeByScore(ctx, key, "-inf", max).Result()
			if err != nil {
				return removed, classify(err)
			}
			removed += int(n)
		}
		if policy.MaxPerUser > 0 {
			n, err := s.client.ZRemRangeByRank(ctx, key, 0, -int64(policy.MaxPerUser)-1).Result()
			if err != nil {
				return removed, classify(err)
			}
			removed += int(n)
		}

		left, err := s.client.ZCard(ctx, key).Result()
		if err != nil {
			return removed, classify(err)
		}
		if left == 0 {
			if err := s.client.SRem(ctx, usersKey, userID).Err(); err != nil {
				return removed, classify(err)
			}
		}
	}
	return removed, nil
}

func (s *Store) HealthCheck(ctx context.Context) types.HealthStatus {
	return probe.Run(ctx, s.healthTimeout, func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

// UsageEstimate prefers used_memory over the capacity, then DBSIZE over the key quota
func (s *Store) UsageEstimate(ctx context.Context) (float64, error) {
	if s.capacityBytes > 0 {
		info, err := s.client.Info(ctx, "memory").Result()
		if err == nil {
			if used, ok := usedMemory(info); ok {
				return clamp(used / s.capacityBytes), nil
			}
		}
	}
	if s.maxKeys > 0 {
		n, err := s.client.DBSize(ctx).Result()
		if err != nil {
			return 0, classify(err)
		}
		return clamp(float64(n) / float64(s.maxKeys)), nil
	}
	return 0, nil
}

func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}

func usedMemory(info string) (float64, bool) {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
			f, err := strconv.ParseFloat(v, 64)
			return f, err == nil
		}
	}
	return 0, false
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, goredis.Nil) {
		return types.ErrNotFound
	}
	if strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: %v", types.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
}
