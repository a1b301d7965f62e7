package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is one alert addressed to a single recipient. DedupKey is the
// idempotency key: the unique index on it is the only thing standing between
// the engine and duplicate alerts, so every insert must go through the
// conflict-ignoring repository primitive.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    string            `gorm:"size:64;index;not null" json:"user_id"`
	Role      string            `gorm:"size:16;not null" json:"role"`
	Kind      string            `gorm:"size:64;index;not null" json:"kind"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	StudentID *uint             `gorm:"index" json:"student_id"`
	SubjectID *uint             `gorm:"index" json:"subject_id"`
	DedupKey  string            `gorm:"size:255;uniqueIndex;not null" json:"dedup_key"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Notification kinds, one per distinct alert the engine can raise.
const (
	KindAttendanceAbsent           = "attendance_absent"
	KindAttendanceLate             = "attendance_late"
	KindPerformanceAtRisk          = "performance_at_risk"
	KindPerformanceImproved        = "performance_improved"
	KindWarningAttendance          = "performance_warning_attendance"
	KindWarningGrade               = "performance_warning_gpa"
	KindConsecutiveAbsences        = "consecutive_absences"
	KindTeacherStudentAtRisk       = "teacher_student_at_risk"
	KindTeacherConsecutiveAbsences = "teacher_consecutive_absences"
	KindGeneral                    = "general"
)

// Recipient roles carried on notifications and JWT claims.
const (
	RoleStudent = "student"
	RoleParent  = "parent"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)
