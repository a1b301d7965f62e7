package dto

import (
	"time"

	"github.com/edulog/edulog-go-api/internal/models"
)

// ActivityListQuery filters the audit trail listing.
type ActivityListQuery struct {
	Page       int    `query:"page"`
	PageSize   int    `query:"page_size"`
	ActorID    string `query:"actor_id"`
	Action     string `query:"action"`
	EntityType string `query:"entity_type"`
}

// ActivityResponse is one audit trail entry.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    string                 `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// PaginationMeta describes the page window of a listing.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewActivityResponse converts an activity log model to a DTO.
func NewActivityResponse(model models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:         model.ID,
		ActorID:    model.ActorID,
		ActorRole:  model.ActorRole,
		Action:     model.Action,
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		Metadata:   map[string]interface{}(model.Metadata),
		CreatedAt:  model.CreatedAt,
	}
}
