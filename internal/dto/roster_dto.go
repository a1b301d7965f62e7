package dto

import (
	"time"

	"github.com/edulog/edulog-go-api/internal/models"
)

// CreateStudentRequest enrolls a new student; the student number is issued by
// the service.
type CreateStudentRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=255"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	UserID  string `json:"user_id" validate:"omitempty,max=64"`
	Section string `json:"section" validate:"omitempty,max=64"`
}

// CreateParentRequest registers a guardian.
type CreateParentRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=255"`
	Email         string `json:"email" validate:"omitempty,email,max=255"`
	UserID        string `json:"user_id" validate:"omitempty,max=64"`
	ContactNumber string `json:"contact_number" validate:"omitempty,max=32"`
}

// CreateTeacherRequest registers a staff member.
type CreateTeacherRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=255"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
	UserID     string `json:"user_id" validate:"omitempty,max=64"`
	Department string `json:"department" validate:"omitempty,max=128"`
}

// CreateSubjectRequest opens a class offering.
type CreateSubjectRequest struct {
	Code      string `json:"code" validate:"required,min=2,max=32"`
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Section   string `json:"section" validate:"omitempty,max=64"`
	TeacherID *uint  `json:"teacher_id"`
}

// LinkParentRequest attaches a guardian to a student.
type LinkParentRequest struct {
	ParentID uint `json:"parent_id" validate:"required"`
}

// AssignTeacherRequest attaches a teacher to a subject.
type AssignTeacherRequest struct {
	TeacherID uint `json:"teacher_id" validate:"required"`
}

// StudentResponse is the serialized representation of a student.
type StudentResponse struct {
	ID        uint      `json:"id"`
	StudentNo string    `json:"student_no"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	ParentID  *uint     `json:"parent_id,omitempty"`
	Section   string    `json:"section,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStudentResponse converts a model into a DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	response := StudentResponse{
		ID:        model.ID,
		StudentNo: model.StudentNo,
		Name:      model.Name,
		ParentID:  model.ParentID,
		Section:   model.Section,
		CreatedAt: model.CreatedAt,
	}
	if model.Email != nil {
		response.Email = *model.Email
	}
	if model.UserID != nil {
		response.UserID = *model.UserID
	}
	return response
}

// NewStudentResponseSlice converts a slice of models into DTOs.
func NewStudentResponseSlice(items []models.Student) []StudentResponse {
	out := make([]StudentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewStudentResponse(item))
	}
	return out
}

// ParentResponse is the serialized representation of a guardian.
type ParentResponse struct {
	ID            uint      `json:"id"`
	ParentNo      string    `json:"parent_no"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	ContactNumber string    `json:"contact_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewParentResponse converts a model into a DTO.
func NewParentResponse(model models.Parent) ParentResponse {
	response := ParentResponse{
		ID:            model.ID,
		ParentNo:      model.ParentNo,
		Name:          model.Name,
		ContactNumber: model.ContactNumber,
		CreatedAt:     model.CreatedAt,
	}
	if model.Email != nil {
		response.Email = *model.Email
	}
	if model.UserID != nil {
		response.UserID = *model.UserID
	}
	return response
}

// TeacherResponse is the serialized representation of a staff member.
type TeacherResponse struct {
	ID         uint      `json:"id"`
	TeacherNo  string    `json:"teacher_no"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewTeacherResponse converts a model into a DTO.
func NewTeacherResponse(model models.Teacher) TeacherResponse {
	response := TeacherResponse{
		ID:         model.ID,
		TeacherNo:  model.TeacherNo,
		Name:       model.Name,
		Department: model.Department,
		CreatedAt:  model.CreatedAt,
	}
	if model.Email != nil {
		response.Email = *model.Email
	}
	if model.UserID != nil {
		response.UserID = *model.UserID
	}
	return response
}

// SubjectResponse is the serialized representation of a class offering.
type SubjectResponse struct {
	ID        uint      `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Section   string    `json:"section,omitempty"`
	TeacherID *uint     `json:"teacher_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSubjectResponse converts a model into a DTO.
func NewSubjectResponse(model models.Subject) SubjectResponse {
	return SubjectResponse{
		ID:        model.ID,
		Code:      model.Code,
		Name:      model.Name,
		Section:   model.Section,
		TeacherID: model.TeacherID,
		CreatedAt: model.CreatedAt,
	}
}

// NewSubjectResponseSlice converts a slice of models into DTOs.
func NewSubjectResponseSlice(items []models.Subject) []SubjectResponse {
	out := make([]SubjectResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewSubjectResponse(item))
	}
	return out
}
