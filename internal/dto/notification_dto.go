package dto

import (
	"time"

	"github.com/edulog/edulog-go-api/internal/models"
)

// NotificationResponse represents notification data returned to clients and
// carried on the stream.
type NotificationResponse struct {
	ID        uint                   `json:"id"`
	UserID    string                 `json:"user_id"`
	Role      string                 `json:"role"`
	Kind      string                 `json:"kind"`
	Message   string                 `json:"message"`
	StudentID *uint                  `json:"student_id,omitempty"`
	SubjectID *uint                  `json:"subject_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	response := NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Role:      model.Role,
		Kind:      model.Kind,
		Message:   model.Message,
		StudentID: model.StudentID,
		SubjectID: model.SubjectID,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	if model.Metadata != nil {
		response.Metadata = map[string]interface{}(model.Metadata)
	}
	return response
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

// UnreadCountResponse reports how many notifications remain unread.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// NotificationListMeta carries pagination counters for listings.
type NotificationListMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
