package models

import "time"

// DefaultTerm is assumed when a grade upsert omits the term label.
const DefaultTerm = "Midterm"

// GradeRecord is one numeric score for a student in a subject and term.
// The (student, subject, term) triple is unique.
type GradeRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_grades_student_subject_term" json:"student_id"`
	SubjectID  uint      `gorm:"not null;uniqueIndex:idx_grades_student_subject_term" json:"subject_id"`
	Term       string    `gorm:"size:32;not null;uniqueIndex:idx_grades_student_subject_term" json:"term"`
	Score      float64   `gorm:"not null" json:"score"`
	RecordedBy *string   `gorm:"size:64" json:"recorded_by"`
	Student    Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
	Subject    Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
