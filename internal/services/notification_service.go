package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/devtrackhq/devtrack/internal/dto"
	"github.com/devtrackhq/devtrack/internal/metrics"
	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/realtime"
	"github.com/devtrackhq/devtrack/internal/repository"
)

// NotificationService persists notifications and pushes them to the
// recipient's personal channel.
type NotificationService struct {
	repo      repository.NotificationRepository
	users     repository.UserRepository
	publisher realtime.Publisher
	log       *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, publisher realtime.Publisher, log *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:      repo,
		users:     users,
		publisher: publisher,
		log:       log,
	}
}

// Notify stores the notification and emits it to the recipient's channel.
// The emit is best-effort: a failed publish is logged and the notification
// stays readable on the next poll, so the triggering request still succeeds.
func (s *NotificationService) Notify(n *models.Notification) error {
	if err := s.repo.Create(n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if n.Sender == nil && n.SenderID != nil {
		if sender, err := s.users.FindByID(*n.SenderID); err == nil {
			n.Sender = sender
		}
	}

	err := s.publisher.Publish(realtime.UserChannel(n.RecipientID), realtime.EventNotification, dto.ToNotificationDTO(*n))
	if err != nil {
		metrics.PublishFailures.Inc()
		s.log.Warn("failed to publish notification",
			zap.Uint64("recipient_id", n.RecipientID),
			zap.Error(err))
	}

	return nil
}

// ListForUser returns the user's most recent notifications.
func (s *NotificationService) ListForUser(userID uint64, limit int) ([]models.Notification, error) {
	notifications, err := s.repo.ListForUser(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(id, userID uint64) error {
	if err := s.repo.MarkRead(id, userID); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks all of the user's notifications as read.
func (s *NotificationService) MarkAllRead(userID uint64) error {
	if err := s.repo.MarkAllRead(userID); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
