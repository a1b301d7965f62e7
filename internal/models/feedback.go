package models

import "time"

// Feedback is a message submitted through the feedback desk by any signed-in
// role. Anonymous entries keep the author on the row but hide it in listings.
type Feedback struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        string     `gorm:"size:64;index;not null" json:"user_id"`
	Role          string     `gorm:"size:16;not null" json:"role"`
	Type          string     `gorm:"size:32;not null;default:general" json:"type"`
	Rating        int        `gorm:"not null" json:"rating"`
	Subject       string     `gorm:"size:255;not null" json:"subject"`
	Message       string     `gorm:"type:text;not null" json:"message"`
	Anonymous     bool       `gorm:"not null;default:false" json:"anonymous"`
	Read          bool       `gorm:"not null;default:false" json:"read"`
	Archived      bool       `gorm:"not null;default:false" json:"archived"`
	AdminResponse string     `gorm:"type:text" json:"admin_response"`
	RespondedAt   *time.Time `json:"responded_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Feedback types accepted by the desk.
const (
	FeedbackGeneral     = "general"
	FeedbackBugReport   = "bug_report"
	FeedbackFeature     = "feature_request"
	FeedbackImprovement = "improvement"
	FeedbackCompliment  = "compliment"
)
