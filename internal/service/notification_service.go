package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
)

// NotificationStore is the notification persistence surface.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// NotificationService manages in-app notifications.
type NotificationService struct {
	notifications NotificationStore
	logger        *zap.Logger
}

// NewNotificationService creates a notification service.
func NewNotificationService(notifications NotificationStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: notifications,
		logger:        logger.Named("notification"),
	}
}

// Notify creates an in-app notification for a user.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind types.NotificationKind, title, body string) error {
	n := &models.Notification{
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	}
	return s.notifications.Create(ctx, n)
}

// List lists the user's notifications with the unread count.
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]*models.Notification, int64, error) {
	items, err := s.notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	if err := s.notifications.MarkRead(ctx, notificationID, userID); err != nil {
		return mapStorageErr(err, "notification not found", "")
	}
	return nil
}

// MarkAllRead marks everything read, returning how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}
