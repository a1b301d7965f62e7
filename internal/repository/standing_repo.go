package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edulog/edulog-go-api/internal/models"
)

// StandingRepository persists the last known classification per
// (student, subject) pair.
type StandingRepository interface {
	Get(ctx context.Context, studentID, subjectID uint) (models.SubjectStanding, error)
	Upsert(ctx context.Context, standing *models.SubjectStanding) error
	ListByStudent(ctx context.Context, studentID uint) ([]models.SubjectStanding, error)
	ListAtRisk(ctx context.Context, limit, offset int) ([]models.SubjectStanding, int64, error)
}

type standingRepository struct {
	db *gorm.DB
}

// NewStandingRepository constructs a repository backed by GORM.
func NewStandingRepository(db *gorm.DB) StandingRepository {
	return &standingRepository{db: db}
}

func (r *standingRepository) Get(ctx context.Context, studentID, subjectID uint) (models.SubjectStanding, error) {
	var standing models.SubjectStanding
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ?", studentID, subjectID).
		First(&standing).Error
	return standing, err
}

func (r *standingRepository) Upsert(ctx context.Context, standing *models.SubjectStanding) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "subject_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "attendance_pct", "grade_average", "changed_at", "updated_at"}),
		}).
		Create(standing).Error
}

func (r *standingRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.SubjectStanding, error) {
	var standings []models.SubjectStanding
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("subject_id ASC").
		Find(&standings).Error
	return standings, err
}

func (r *standingRepository) ListAtRisk(ctx context.Context, limit, offset int) ([]models.SubjectStanding, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).
		Model(&models.SubjectStanding{}).
		Where("status = ?", models.StandingAtRisk)

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var standings []models.SubjectStanding
	if err := query.
		Order("changed_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&standings).Error; err != nil {
		return nil, 0, err
	}

	return standings, total, nil
}
