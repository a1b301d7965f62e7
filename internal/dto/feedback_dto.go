package dto

import (
	"time"

	"github.com/edulog/edulog-go-api/internal/models"
)

// SubmitFeedbackRequest files a new entry with the feedback desk.
type SubmitFeedbackRequest struct {
	Type      string `json:"type" validate:"omitempty,oneof=general bug_report feature_request improvement compliment"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Subject   string `json:"subject" validate:"required,min=3,max=255"`
	Message   string `json:"message" validate:"required,min=1,max=5000"`
	Anonymous bool   `json:"anonymous"`
}

// FeedbackRespondRequest stores an admin response on an entry.
type FeedbackRespondRequest struct {
	Response string `json:"response" validate:"required,min=1,max=5000"`
}

// FeedbackListQuery filters the admin listing.
type FeedbackListQuery struct {
	Type   string `query:"type" validate:"omitempty,oneof=general bug_report feature_request improvement compliment"`
	Rating int    `query:"rating" validate:"omitempty,min=1,max=5"`
	Unread bool   `query:"unread"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
}

// FeedbackResponse is the serialized representation of one entry. Anonymous
// entries omit the author identity.
type FeedbackResponse struct {
	ID            uint       `json:"id"`
	UserID        string     `json:"user_id,omitempty"`
	Role          string     `json:"role,omitempty"`
	Type          string     `json:"type"`
	Rating        int        `json:"rating"`
	Subject       string     `json:"subject"`
	Message       string     `json:"message"`
	Anonymous     bool       `json:"anonymous"`
	Read          bool       `json:"read"`
	Archived      bool       `json:"archived"`
	AdminResponse string     `json:"admin_response,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewFeedbackResponse converts a model into a DTO, hiding the author when the
// entry is anonymous and the caller is not the author.
func NewFeedbackResponse(model models.Feedback, revealAuthor bool) FeedbackResponse {
	response := FeedbackResponse{
		ID:            model.ID,
		Type:          model.Type,
		Rating:        model.Rating,
		Subject:       model.Subject,
		Message:       model.Message,
		Anonymous:     model.Anonymous,
		Read:          model.Read,
		Archived:      model.Archived,
		AdminResponse: model.AdminResponse,
		RespondedAt:   model.RespondedAt,
		CreatedAt:     model.CreatedAt,
	}
	if !model.Anonymous || revealAuthor {
		response.UserID = model.UserID
		response.Role = model.Role
	}
	return response
}

// NewFeedbackResponseSlice converts a slice of models into DTOs.
func NewFeedbackResponseSlice(items []models.Feedback, revealAuthor bool) []FeedbackResponse {
	out := make([]FeedbackResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewFeedbackResponse(item, revealAuthor))
	}
	return out
}
