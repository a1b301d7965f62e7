package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/models"
)

// RosterRepository is the directory behind the engine: it owns the roster
// CRUD and resolves the optional student-to-parent and subject-to-teacher
// links the fan-out follows. A missing link surfaces as gorm.ErrRecordNotFound.
type RosterRepository interface {
	CreateStudent(ctx context.Context, student *models.Student) error
	FindStudent(ctx context.Context, id uint) (models.Student, error)
	ListStudents(ctx context.Context, section string, limit, offset int) ([]models.Student, int64, error)
	LinkParent(ctx context.Context, studentID, parentID uint) error
	CountStudentNumbers(ctx context.Context, prefix string) (int64, error)

	CreateParent(ctx context.Context, parent *models.Parent) error
	FindParent(ctx context.Context, id uint) (models.Parent, error)
	CountParentNumbers(ctx context.Context, prefix string) (int64, error)

	CreateTeacher(ctx context.Context, teacher *models.Teacher) error
	FindTeacher(ctx context.Context, id uint) (models.Teacher, error)
	CountTeacherNumbers(ctx context.Context, prefix string) (int64, error)

	CreateSubject(ctx context.Context, subject *models.Subject) error
	FindSubject(ctx context.Context, id uint) (models.Subject, error)
	ListSubjects(ctx context.Context, limit, offset int) ([]models.Subject, int64, error)
	AssignTeacher(ctx context.Context, subjectID, teacherID uint) error

	ParentOf(ctx context.Context, studentID uint) (models.Parent, error)
	TeacherOf(ctx context.Context, subjectID uint) (models.Teacher, error)
}

type rosterRepository struct {
	db *gorm.DB
}

// NewRosterRepository constructs a repository backed by GORM.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) CreateStudent(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *rosterRepository) FindStudent(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).First(&student, id).Error
	return student, err
}

func (r *rosterRepository) ListStudents(ctx context.Context, section string, limit, offset int) ([]models.Student, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.Student{})
	if section != "" {
		query = query.Where("section = ?", section)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var students []models.Student
	if err := query.
		Order("student_no ASC").
		Offset(offset).
		Limit(limit).
		Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *rosterRepository) LinkParent(ctx context.Context, studentID, parentID uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("id = ?", studentID).
		Update("parent_id", parentID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *rosterRepository) CountStudentNumbers(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("student_no LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}

func (r *rosterRepository) CreateParent(ctx context.Context, parent *models.Parent) error {
	return r.db.WithContext(ctx).Create(parent).Error
}

func (r *rosterRepository) FindParent(ctx context.Context, id uint) (models.Parent, error) {
	var parent models.Parent
	err := r.db.WithContext(ctx).First(&parent, id).Error
	return parent, err
}

func (r *rosterRepository) CountParentNumbers(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Parent{}).
		Where("parent_no LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}

func (r *rosterRepository) CreateTeacher(ctx context.Context, teacher *models.Teacher) error {
	return r.db.WithContext(ctx).Create(teacher).Error
}

func (r *rosterRepository) FindTeacher(ctx context.Context, id uint) (models.Teacher, error) {
	var teacher models.Teacher
	err := r.db.WithContext(ctx).First(&teacher, id).Error
	return teacher, err
}

func (r *rosterRepository) CountTeacherNumbers(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Teacher{}).
		Where("teacher_no LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}

func (r *rosterRepository) CreateSubject(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *rosterRepository) FindSubject(ctx context.Context, id uint) (models.Subject, error) {
	var subject models.Subject
	err := r.db.WithContext(ctx).First(&subject, id).Error
	return subject, err
}

func (r *rosterRepository) ListSubjects(ctx context.Context, limit, offset int) ([]models.Subject, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.Subject{})

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var subjects []models.Subject
	if err := query.
		Order("code ASC").
		Offset(offset).
		Limit(limit).
		Find(&subjects).Error; err != nil {
		return nil, 0, err
	}

	return subjects, total, nil
}

func (r *rosterRepository) AssignTeacher(ctx context.Context, subjectID, teacherID uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Subject{}).
		Where("id = ?", subjectID).
		Update("teacher_id", teacherID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *rosterRepository) ParentOf(ctx context.Context, studentID uint) (models.Parent, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, studentID).Error; err != nil {
		return models.Parent{}, err
	}
	if student.ParentID == nil {
		return models.Parent{}, gorm.ErrRecordNotFound
	}

	var parent models.Parent
	if err := r.db.WithContext(ctx).First(&parent, *student.ParentID).Error; err != nil {
		return models.Parent{}, err
	}
	return parent, nil
}

func (r *rosterRepository) TeacherOf(ctx context.Context, subjectID uint) (models.Teacher, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).First(&subject, subjectID).Error; err != nil {
		return models.Teacher{}, err
	}
	if subject.TeacherID == nil {
		return models.Teacher{}, gorm.ErrRecordNotFound
	}

	var teacher models.Teacher
	if err := r.db.WithContext(ctx).First(&teacher, *subject.TeacherID).Error; err != nil {
		return models.Teacher{}, err
	}
	return teacher, nil
}
