package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edulog/edulog-go-api/internal/models"
)

// StudentSubjectPair identifies one evaluation target for the engine.
type StudentSubjectPair struct {
	StudentID uint `json:"student_id"`
	SubjectID uint `json:"subject_id"`
}

// AttendanceRepository persists attendance marks and serves the record reads
// the engine depends on.
type AttendanceRepository interface {
	// Upsert writes the mark for (student, subject, date). It reports
	// whether a new row was inserted and whether the stored status changed.
	Upsert(ctx context.Context, record *models.AttendanceRecord) (created, changed bool, err error)
	// Recent returns the newest records for the pair, date descending.
	Recent(ctx context.Context, studentID, subjectID uint, limit int) ([]models.AttendanceRecord, error)
	// CountByStatus returns the present count and the total count for the pair.
	CountByStatus(ctx context.Context, studentID, subjectID uint) (present, total int64, err error)
	// PageAlertable pages through absent and late records for backfill runs.
	PageAlertable(ctx context.Context, offset, limit int) ([]models.AttendanceRecord, error)
	// DistinctPairs pages through the (student, subject) pairs that have marks.
	DistinctPairs(ctx context.Context, offset, limit int) ([]StudentSubjectPair, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository constructs a repository backed by GORM.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (bool, bool, error) {
	var existing models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ? AND date = ?", record.StudentID, record.SubjectID, record.Date).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "student_id"}, {Name: "subject_id"}, {Name: "date"}},
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
			Where("student_id = ? AND subject_id = ? AND date = ?", record.StudentID, record.SubjectID, record.Date).
			First(&existing).Error; err != nil {
			return false, false, err
		}
	case err != nil:
		return false, false, err
	}

	if existing.Status == record.Status {
		*record = existing
		return false, false, nil
	}

	existing.Status = record.Status
	existing.RecordedBy = record.RecordedBy
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return false, false, err
	}

	*record = existing
	return false, true, nil
}

func (r *attendanceRepository) Recent(ctx context.Context, studentID, subjectID uint, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 5
	}

	var records []models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND subject_id = ?", studentID, subjectID).
		Order("date DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *attendanceRepository) CountByStatus(ctx context.Context, studentID, subjectID uint) (int64, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Where("student_id = ? AND subject_id = ?", studentID, subjectID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}

	var present int64
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", models.AttendancePresent).
		Count(&present).Error; err != nil {
		return 0, 0, err
	}

	return present, total, nil
}

func (r *attendanceRepository) PageAlertable(ctx context.Context, offset, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var records []models.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.AttendanceAbsent, models.AttendanceLate}).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *attendanceRepository) DistinctPairs(ctx context.Context, offset, limit int) ([]StudentSubjectPair, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	var pairs []StudentSubjectPair
	err := r.db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Distinct("student_id", "subject_id").
		Order("student_id ASC, subject_id ASC").
		Offset(offset).
		Limit(limit).
		Scan(&pairs).Error
	return pairs, err
}
