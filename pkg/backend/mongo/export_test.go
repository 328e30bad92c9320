package mongo

import "go.mongodb.org/mongo-driver/mongo"

// Internals exposed to the external mongo_test package, which cannot live in
// package mongo because it imports pkg/backend (and pkg/backend imports mongo).

const (
	EntitiesCollection     = entitiesCollection
	InteractionsCollection = interactionsCollection
	AtlasQuotaCode         = atlasQuotaCode
)

var (
	NewStore = newStore
	Classify = classify
)

func (s *Store) DB() *mongo.Database { return s.db }
