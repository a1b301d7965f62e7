package models

import "time"

// AttendanceRecord is one mark for a student in a subject on a calendar day.
// The (student, subject, date) triple is unique; corrective edits update the
// status in place instead of inserting a second row.
type AttendanceRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_attendance_student_subject_date" json:"student_id"`
	SubjectID  uint      `gorm:"not null;uniqueIndex:idx_attendance_student_subject_date" json:"subject_id"`
	Date       time.Time `gorm:"type:date;not null;uniqueIndex:idx_attendance_student_subject_date" json:"date"`
	Status     string    `gorm:"size:16;not null" json:"status"`
	RecordedBy *string   `gorm:"size:64" json:"recorded_by"`
	Student    Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
	Subject    Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	// AttendancePresent marks the student as in class.
	AttendancePresent = "present"
	// AttendanceAbsent marks the student as missing without excuse.
	AttendanceAbsent = "absent"
	// AttendanceLate marks the student as arriving after the cutoff.
	AttendanceLate = "late"
)

// IsAbsent reports whether the record counts toward an absence streak.
func (a AttendanceRecord) IsAbsent() bool {
	return a.Status == AttendanceAbsent
}
