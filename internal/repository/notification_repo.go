package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edulog/edulog-go-api/internal/models"
)

// NotificationRepository handles persistence for notification entities. All
// creation funnels through CreateIfAbsent so the dedup key stays the single
// gate against duplicates.
type NotificationRepository interface {
	CreateIfAbsent(ctx context.Context, notification *models.Notification) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id uint, userID string) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// CreateIfAbsent inserts the notification unless a row with the same dedup
// key already exists. The conflict target is the unique index on dedup_key,
// so concurrent callers cannot both insert; exactly one wins and the rest
// observe created=false.
func (r *notificationRepository) CreateIfAbsent(ctx context.Context, notification *models.Notification) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(notification)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uint, userID string) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	if notification.Read {
		return notification, nil
	}

	notification.Read = true
	if err := r.db.WithContext(ctx).Save(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	return notification, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}
