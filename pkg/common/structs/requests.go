package structs

import (
	"time"

	"github.com/xzinc/IPL/pkg/types"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// EntityResponse wraps an entity with where it was served from
type EntityResponse struct {
	Entity    types.Entity `json:"entity"`
	FromCache bool         `json:"from_cache"`
	// Warning is set when the write reached a backend but not every mirror
	Warning string `json:"warning,omitempty"`
}

type EntityRequest struct {
	Name       string             `json:"name"`
	Stats      map[string]float64 `json:"stats,omitempty"`
	Attributes map[string]string  `json:"attributes,omitempty"`
}

func (r EntityRequest) ToEntity(t types.EntityType, key string) types.Entity {
	return types.Entity{
		Type:       t,
		Key:        key,
		Name:       r.Name,
		Stats:      r.Stats,
		Attributes: r.Attributes,
	}
}

type InteractionRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	ChatType string `json:"chat_type,omitempty"`
	GroupID  string `json:"group_id,omitempty"`
	Message  string `json:"message"`
	Response string `json:"response"`
	Language string `json:"language,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

func (r InteractionRequest) ToInteraction() types.Interaction {
	return types.Interaction{
		UserID:   r.UserID,
		ChatType: types.ChatType(r.ChatType),
		GroupID:  r.GroupID,
		Message:  r.Message,
		Response: r.Response,
		Language: r.Language,
		Feedback: r.Feedback,
	}
}

type InteractionsResponse struct {
	UserID       string              `json:"user_id"`
	Interactions []types.Interaction `json:"interactions"`
}

type RefreshResponse struct {
	Type  types.EntityType `json:"type"`
	Count int              `json:"count"`
}

type PruneResponse struct {
	Removed    int            `json:"removed"`
	PerBackend map[string]int `json:"per_backend"`
	Before     time.Time      `json:"before"`
	MaxPerUser int            `json:"max_per_user"`
}
