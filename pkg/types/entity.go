package types

import (
	"fmt"
	"strings"
	"time"
)

// EntityType identifies a family of cricket entities
type EntityType string

const (
	EntityTeam   EntityType = "team"
	EntityPlayer EntityType = "player"
	EntityVenue  EntityType = "venue"
	EntityMatch  EntityType = "match"
)

// ReferenceTypes are the entity types sourced from external datasets
var ReferenceTypes = []EntityType{EntityTeam, EntityPlayer, EntityVenue}

// ParseEntityType validates a raw entity type name
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case EntityTeam, EntityPlayer, EntityVenue, EntityMatch:
		return t, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// IsReference reports whether reads of this type go through the freshness cache
func (t EntityType) IsReference() bool {
	return t == EntityTeam || t == EntityPlayer || t == EntityVenue
}

// Entity is a team, player, venue or match with its statistical aggregates
type Entity struct {
	Type       EntityType         `json:"type" bson:"type"`
	Key        string             `json:"key" bson:"key"`
	Name       string             `json:"name" bson:"name"`
	Stats      map[string]float64 `json:"stats,omitempty" bson:"stats,omitempty"`
	Attributes map[string]string  `json:"attributes,omitempty" bson:"attributes,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// NormalizeKey turns a display name into the natural key used by every backend.
// "Chennai Super Kings " becomes "chennai-super-kings".
func NormalizeKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// Normalize fills Key from Name when missing and normalizes it
func (e *Entity) Normalize() {
	if e.Key == "" {
		e.Key = e.Name
	}
	e.Key = NormalizeKey(e.Key)
	if e.Name == "" {
		e.Name = e.Key
	}
}

// Validate checks the fields every backend relies on
func (e Entity) Validate() error {
	if _, err := ParseEntityType(string(e.Type)); err != nil {
		return err
	}
	if e.Key == "" {
		return fmt.Errorf("entity key is required")
	}
	return nil
}

// ID returns the backend-independent identifier "<type>:<key>"
func (e Entity) ID() string {
	return EntityID(e.Type, e.Key)
}

// EntityID builds the identifier for an entity type and key
func EntityID(t EntityType, key string) string {
	return string(t) + ":" + key
}
