package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/xzinc/IPL/pkg/backend/internal/probe"
	"github.com/xzinc/IPL/pkg/types"
)

const (
	entitiesCollection     = "entities"
	interactionsCollection = "interactions"

	// atlasQuotaCode is returned by free-tier clusters once the storage quota is used up
	atlasQuotaCode = 8000
)

type Config struct {
	Name          string
	URI           string
	Database      string
	CapacityMB    int64
	HealthTimeout time.Duration
}

// Store is the remote-document backend on MongoDB.
// Entities live in "entities" keyed by "<type>:<key>"; interactions in "interactions".
type Store struct {
	name          string
	client        *mongo.Client
	entities      *mongo.Collection
	interactions  *mongo.Collection
	db            *mongo.Database
	capacityBytes float64
	healthTimeout time.Duration
}

type entityDoc struct {
	ID           string `bson:"_id"`
	types.Entity `bson:",inline"`
}

// New creates the client. Connecting is lazy, so an unreachable server does not fail startup.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: mongodb backend %s has no uri", types.ErrConfiguration, cfg.Name)
	}
	if cfg.Database == "" {
		cfg.Database = "ipl"
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = probe.DefaultTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.HealthTimeout).
		SetConnectTimeout(cfg.HealthTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongodb client for %s: %w", cfg.Name, err)
	}
	return newStore(cfg, client), nil
}

func newStore(cfg Config, client *mongo.Client) *Store {
	db := client.Database(cfg.Database)
	return &Store{
		name:          cfg.Name,
		client:        client,
		db:            db,
		entities:      db.Collection(entitiesCollection),
		interactions:  db.Collection(interactionsCollection),
		capacityBytes: float64(cfg.CapacityMB) * 1024 * 1024,
		healthTimeout: cfg.HealthTimeout,
	}
}

// EnsureIndexes creates the interaction lookup index
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.interactions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return classify(err)
}

func (s *Store) Name() string { return s.name }

func (s *Store) Kind() types.BackendKind { return types.KindRemoteDocument }

func (s *Store) Get(ctx context.Context, entityType types.EntityType, key string) (types.Entity, error) {
	var doc entityDoc
	err := s.entities.FindOne(ctx, bson.M{"_id": types.EntityID(entityType, key)}).Decode(&doc)
	if err != nil {
		return types.Entity{}, classify(err)
	}
	return doc.Entity, nil
}

func (s *Store) Put(ctx context.Context, entity types.Entity) error {
	doc := entityDoc{ID: entity.ID(), Entity: entity}
	_, err := s.entities.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return classify(err)
}

func (s *Store) Append(ctx context.Context, it types.Interaction) error {
	_, err := s.interactions.InsertOne(ctx, it)
	if mongo.IsDuplicateKeyError(err) {
		// the same interaction landed on an earlier attempt
		return nil
	}
	return classify(err)
}

func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]types.Interaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.interactions.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, classify(err)
	}
	var out []types.Interaction
	if err := cursor.All(ctx, &out); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) Prune(ctx context.Context, policy types.PrunePolicy) (int, error) {
	removed := 0

	if !policy.Before.IsZero() {
		res, err := s.interactions.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": policy.Before}})
		if err != nil {
			return removed, classify(err)
		}
		removed += int(res.DeletedCount)
	}

	if policy.MaxPerUser <= 0 {
		return removed, nil
	}

	users, err := s.interactions.Distinct(ctx, "user_id", bson.M{})
	if err != nil {
		return removed, classify(err)
	}
	for _, u := range users {
		userID, ok := u.(string)
		if !ok {
			continue
		}
		n, err := s.trimUser(ctx, userID, policy.MaxPerUser)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// trimUser deletes everything past the newest max interactions of a user
func (s *Store) trimUser(ctx context.Context, userID string, max int) (int, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(max)).
		SetProjection(bson.M{"_id": 1})
	cursor, err := s.interactions.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return 0, classify(err)
	}
	var stale []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return 0, classify(err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, d := range stale {
		ids = append(ids, d.ID)
	}
	res, err := s.interactions.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, classify(err)
	}
	return int(res.DeletedCount), nil
}

func (s *Store) HealthCheck(ctx context.Context) types.HealthStatus {
	return probe.Run(ctx, s.healthTimeout, func(ctx context.Context) error {
		return s.client.Ping(ctx, readpref.Primary())
	})
}

// UsageEstimate is dataSize over the configured capacity; 0 without a capacity
func (s *Store) UsageEstimate(ctx context.Context) (float64, error) {
	if s.capacityBytes <= 0 {
		return 0, nil
	}
	var stats struct {
		DataSize  float64 `bson:"dataSize"`
		IndexSize float64 `bson:"indexSize"`
	}
	if err := s.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&stats); err != nil {
		return 0, classify(err)
	}
	usage := (stats.DataSize + stats.IndexSize) / s.capacityBytes
	if usage > 1 {
		usage = 1
	}
	return usage, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.ErrNotFound
	}
	if isQuotaError(err) {
		return fmt.Errorf("%w: %v", types.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
}

func isQuotaError(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(atlasQuotaCode) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "space quota")
}
