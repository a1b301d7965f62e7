package dto

import (
	"time"

	"github.com/edulog/edulog-go-api/internal/models"
)

// StandingResponse reports the last known classification of a student in a
// subject along with the metrics behind it.
type StandingResponse struct {
	StudentID     uint      `json:"student_id"`
	SubjectID     uint      `json:"subject_id"`
	Status        string    `json:"status"`
	AttendancePct float64   `json:"attendance_pct"`
	GradeAverage  float64   `json:"grade_average"`
	GWA           float64   `json:"gwa"`
	ChangedAt     time.Time `json:"changed_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewStandingResponse converts a standing model to a DTO. The caller supplies
// the GWA derived from the grade average.
func NewStandingResponse(model models.SubjectStanding, gwa float64) StandingResponse {
	return StandingResponse{
		StudentID:     model.StudentID,
		SubjectID:     model.SubjectID,
		Status:        model.Status,
		AttendancePct: model.AttendancePct,
		GradeAverage:  model.GradeAverage,
		GWA:           gwa,
		ChangedAt:     model.ChangedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// PerformanceSummaryResponse is a live view of a student's metrics in one
// subject, computed from the raw records rather than the recorded standing.
type PerformanceSummaryResponse struct {
	StudentID         uint    `json:"student_id"`
	SubjectID         uint    `json:"subject_id"`
	AttendancePct     float64 `json:"attendance_pct"`
	AttendanceCount   int64   `json:"attendance_count"`
	AverageGrade      float64 `json:"average_grade"`
	GradeCount        int64   `json:"grade_count"`
	GWA               float64 `json:"gwa"`
	Status            string  `json:"status"`
	AttendanceWarning bool    `json:"attendance_warning"`
	GradeWarning      bool    `json:"grade_warning"`
}
