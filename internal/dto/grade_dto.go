package dto

import (
	"time"

	"github.com/edulog/edulog-go-api/internal/models"
)

// UpsertGradeRequest records or corrects one score. Term defaults to the
// midterm when omitted.
type UpsertGradeRequest struct {
	StudentID uint     `json:"student_id" validate:"required"`
	SubjectID uint     `json:"subject_id" validate:"required"`
	Term      string   `json:"term" validate:"omitempty,max=32"`
	Score     *float64 `json:"score" validate:"required,min=0,max=100"`
}

// GradeResponse is the serialized representation of one score.
type GradeResponse struct {
	ID         uint      `json:"id"`
	StudentID  uint      `json:"student_id"`
	SubjectID  uint      `json:"subject_id"`
	Term       string    `json:"term"`
	Score      float64   `json:"score"`
	RecordedBy *string   `json:"recorded_by,omitempty"`
	Created    bool      `json:"created"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewGradeResponse converts a model into a DTO.
func NewGradeResponse(record models.GradeRecord, created bool) GradeResponse {
	return GradeResponse{
		ID:         record.ID,
		StudentID:  record.StudentID,
		SubjectID:  record.SubjectID,
		Term:       record.Term,
		Score:      record.Score,
		RecordedBy: record.RecordedBy,
		Created:    created,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}
