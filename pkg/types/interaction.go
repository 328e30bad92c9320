package types

import "time"

// ChatType is the conversation context an interaction happened in
type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

// Interaction is one recorded exchange between a user and the assistant.
// Interactions are append-only and only ever removed by pruning.
type Interaction struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	ChatType  ChatType  `json:"chat_type" bson:"chat_type"`
	GroupID   string    `json:"group_id,omitempty" bson:"group_id,omitempty"`
	Message   string    `json:"message" bson:"message"`
	Response  string    `json:"response" bson:"response"`
	Language  string    `json:"language,omitempty" bson:"language,omitempty"`
	Feedback  string    `json:"feedback,omitempty" bson:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// PrunePolicy describes which interactions a prune removes: everything older
// than Before and everything beyond the newest MaxPerUser of each user.
// A zero Before or MaxPerUser disables that half of the policy.
type PrunePolicy struct {
	Before     time.Time
	MaxPerUser int
}

// Keep reports whether an interaction at rank (0 = newest for its user) survives the policy
func (p PrunePolicy) Keep(it Interaction, rank int) bool {
	if !p.Before.IsZero() && it.Timestamp.Before(p.Before) {
		return false
	}
	if p.MaxPerUser > 0 && rank >= p.MaxPerUser {
		return false
	}
	return true
}
