package models

import "time"

// SubjectStanding is the last known classification of a student in a subject.
// One row per (student, subject) pair; the pair index makes the latest-status
// lookup a point read instead of a scan over the notification log.
type SubjectStanding struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudentID     uint      `gorm:"not null;uniqueIndex:idx_standings_student_subject" json:"student_id"`
	SubjectID     uint      `gorm:"not null;uniqueIndex:idx_standings_student_subject" json:"subject_id"`
	Status        string    `gorm:"size:16;not null" json:"status"`
	AttendancePct float64   `gorm:"not null" json:"attendance_pct"`
	GradeAverage  float64   `gorm:"not null" json:"grade_average"`
	ChangedAt     time.Time `gorm:"not null" json:"changed_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	// StandingActive is the healthy classification.
	StandingActive = "active"
	// StandingAtRisk applies when attendance or grade average drops below
	// the at-risk threshold.
	StandingAtRisk = "at_risk"
)
