package models

import "time"

const (
	// StudentNoPrefix prefixes issued student numbers (STD-2025-00001).
	StudentNoPrefix = "STD"
	// TeacherNoPrefix prefixes issued teacher numbers.
	TeacherNoPrefix = "TCH"
	// ParentNoPrefix prefixes issued parent numbers.
	ParentNoPrefix = "PRT"
)

// Student represents an enrolled learner tracked by the engine.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentNo string    `gorm:"size:16;uniqueIndex;not null" json:"student_no"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     *string   `gorm:"size:255;uniqueIndex" json:"email"`
	UserID    *string   `gorm:"size:64;index" json:"user_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Section   string    `gorm:"size:64;index" json:"section"`
	Parent    *Parent   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"parent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Parent represents a guardian that can receive copies of student alerts.
type Parent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ParentNo      string    `gorm:"size:16;uniqueIndex;not null" json:"parent_no"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Email         *string   `gorm:"size:255;uniqueIndex" json:"email"`
	UserID        *string   `gorm:"size:64;index" json:"user_id"`
	ContactNumber string    `gorm:"size:32" json:"contact_number"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Teacher represents a staff member that records attendance and grades.
type Teacher struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TeacherNo  string    `gorm:"size:16;uniqueIndex;not null" json:"teacher_no"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Email      *string   `gorm:"size:255;uniqueIndex" json:"email"`
	UserID     *string   `gorm:"size:64;index" json:"user_id"`
	Department string    `gorm:"size:128" json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Subject represents a class offering; the assigned teacher receives
// escalation copies of at-risk and streak alerts.
type Subject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:32;not null;uniqueIndex:idx_subjects_code_section" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Section   string    `gorm:"size:64;uniqueIndex:idx_subjects_code_section" json:"section"`
	TeacherID *uint     `gorm:"index" json:"teacher_id"`
	Teacher   *Teacher  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"teacher,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Label returns the human-facing subject label used in alert wording.
func (s Subject) Label() string {
	return s.Code + " - " + s.Name
}
