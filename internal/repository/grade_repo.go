package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edulog/edulog-go-api/internal/models"
)

// GradeRepository persists scores and serves the grade aggregates the engine
// depends on.
type GradeRepository interface {
	// Upsert writes the score for (student, subject, term). It reports
	// whether a new row was inserted and whether the stored score changed.
	Upsert(ctx context.Context, record *models.GradeRecord) (created, changed bool, err error)
	// Average returns the mean score and the record count for the pair.
	Average(ctx context.Context, studentID, subjectID uint) (float64, int64, error)
	// ListByPair returns the scores for the pair, newest term first.
	ListByPair(ctx context.Context, studentID, subjectID uint) ([]models.GradeRecord, error)
	// DistinctPairs pages through the (student, subject) pairs that have scores.
	DistinctPairs(ctx context.Context, offset, limit int) ([]StudentSubjectPair, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs a repository backed by GORM.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) Upsert(ctx context.Context, record *models.GradeRecord) (bool, bool, error) {
	var existing models.GradeRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ? AND term = ?", record.StudentID, record.SubjectID, record.Term).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "student_id"}, {Name: "subject_id"}, {Name: "term"}},
				DoNothing: true,
			}).
			Create(record)
		if result.Error != nil {
			return false, false, result.Error
		}
		if result.RowsAffected == 1 {
			return true, true, nil
		}
		// Lost the insert race; reload and treat as a corrective edit.
		if err := r.db.WithContext(ctx).
			Where("student_id = ? AND subject_id = ? AND term = ?", record.StudentID, record.SubjectID, record.Term).
			First(&existing).Error; err != nil {
			return false, false, err
		}
	case err != nil:
		return false, false, err
	}

	if existing.Score == record.Score {
		*record = existing
		return false, false, nil
	}

	existing.Score = record.Score
	existing.RecordedBy = record.RecordedBy
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return false, false, err
	}

	*record = existing
	return false, true, nil
}

func (r *gradeRepository) Average(ctx context.Context, studentID, subjectID uint) (float64, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.GradeRecord{}).
		Where("student_id = ? AND subject_id = ?", studentID, subjectID)

	var count int64
	if err := base.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	var average float64
	if err := base.Session(&gorm.Session{}).
		Select("AVG(score)").
		Scan(&average).Error; err != nil {
		return 0, 0, err
	}

	return average, count, nil
}

func (r *gradeRepository) ListByPair(ctx context.Context, studentID, subjectID uint) ([]models.GradeRecord, error) {
	var records []models.GradeRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ?", studentID, subjectID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

func (r *gradeRepository) DistinctPairs(ctx context.Context, offset, limit int) ([]StudentSubjectPair, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var pairs []StudentSubjectPair
	err := r.db.WithContext(ctx).
		Model(&models.GradeRecord{}).
		Distinct("student_id", "subject_id").
		Order("student_id ASC, subject_id ASC").
		Offset(offset).
		Limit(limit).
		Scan(&pairs).Error
	return pairs, err
}
