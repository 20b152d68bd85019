package repository

import (
	"gorm.io/gorm"

	"github.com/devtrackhq/devtrack/internal/models"
)

// GormNotificationRepository is a GORM implementation of NotificationRepository
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create creates a new notification
func (r *GormNotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

// ListForUser lists a user's notifications, newest first
func (r *GormNotificationRepository) ListForUser(recipientID uint64, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	query := r.db.
		Where("recipient_id = ?", recipientID).
		Preload("Sender").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead marks one of the user's notifications as read
func (r *GormNotificationRepository) MarkRead(id, recipientID uint64) error {
	return r.db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true).Error
}

// MarkAllRead marks all of the user's notifications as read
func (r *GormNotificationRepository) MarkAllRead(recipientID uint64) error {
	return r.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true).Error
}
