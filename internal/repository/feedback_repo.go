package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edulog/edulog-go-api/internal/models"
)

// FeedbackFilter narrows feedback desk listings.
type FeedbackFilter struct {
	Type   string
	Rating int
	Unread bool
	Limit  int
	Offset int
}

// FeedbackRepository persists feedback desk entries.
type FeedbackRepository interface {
	Create(ctx context.Context, entry *models.Feedback) error
	FindByID(ctx context.Context, id uint) (models.Feedback, error)
	List(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error)
	MarkRead(ctx context.Context, id uint) error
	Respond(ctx context.Context, id uint, response string, at time.Time) (models.Feedback, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository constructs a repository backed by GORM.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, entry *models.Feedback) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *feedbackRepository) FindByID(ctx context.Context, id uint) (models.Feedback, error) {
	var entry models.Feedback
	err := r.db.WithContext(ctx).First(&entry, id).Error
	return entry, err
}

func (r *feedbackRepository) List(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.Feedback{}).Where("archived = ?", false)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Rating > 0 {
		query = query.Where("rating = ?", filter.Rating)
	}
	if filter.Unread {
		query = query.Where("read = ?", false)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.Feedback
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *feedbackRepository) MarkRead(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Feedback{}).
		Where("id = ?", id).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *feedbackRepository) Respond(ctx context.Context, id uint, response string, at time.Time) (models.Feedback, error) {
	var entry models.Feedback
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return models.Feedback{}, err
	}

	entry.AdminResponse = response
	entry.RespondedAt = &at
	entry.Read = true
	if err := r.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return models.Feedback{}, err
	}

	return entry, nil
}
