package dto

import (
	"time"

	"github.com/edulog/edulog-go-api/internal/models"
)

// MarkAttendanceRequest records or corrects one attendance mark. Date is
// optional and defaults to today.
type MarkAttendanceRequest struct {
	StudentID uint   `json:"student_id" validate:"required"`
	SubjectID uint   `json:"subject_id" validate:"required"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,oneof=present absent late"`
}

// BulkAttendanceEntry is one student mark inside a bulk request.
type BulkAttendanceEntry struct {
	StudentID uint   `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late"`
}

// BulkAttendanceRequest marks a whole register page in one call.
type BulkAttendanceRequest struct {
	SubjectID uint                  `json:"subject_id" validate:"required"`
	Date      string                `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Entries   []BulkAttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceResponse is the serialized representation of one mark.
type AttendanceResponse struct {
	ID         uint      `json:"id"`
	StudentID  uint      `json:"student_id"`
	SubjectID  uint      `json:"subject_id"`
	Date       string    `json:"date"`
	Status     string    `json:"status"`
	RecordedBy *string   `json:"recorded_by,omitempty"`
	Created    bool      `json:"created"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewAttendanceResponse converts a model into a DTO. Created reports whether
// the upsert inserted a new row rather than correcting an existing one.
func NewAttendanceResponse(record models.AttendanceRecord, created bool) AttendanceResponse {
	return AttendanceResponse{
		ID:         record.ID,
		StudentID:  record.StudentID,
		SubjectID:  record.SubjectID,
		Date:       record.Date.Format("2006-01-02"),
		Status:     record.Status,
		RecordedBy: record.RecordedBy,
		Created:    created,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

// BulkAttendanceError describes one failed entry in a bulk request.
type BulkAttendanceError struct {
	StudentID uint   `json:"student_id"`
	Reason    string `json:"reason"`
}

// BulkAttendanceResult aggregates the outcome of a bulk request.
type BulkAttendanceResult struct {
	Created int                   `json:"created"`
	Updated int                   `json:"updated"`
	Failed  int                   `json:"failed"`
	Errors  []BulkAttendanceError `json:"errors,omitempty"`
}

// AttendanceFeedEvent is the payload broadcast on the live register feed
// whenever a mark lands.
type AttendanceFeedEvent struct {
	SubjectID   uint      `json:"subject_id"`
	StudentID   uint      `json:"student_id"`
	StudentName string    `json:"student_name"`
	Date        string    `json:"date"`
	Status      string    `json:"status"`
	Created     bool      `json:"created"`
	MarkedAt    time.Time `json:"marked_at"`
}
