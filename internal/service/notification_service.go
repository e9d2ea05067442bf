package service

import (
	"context"
	"fmt"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/mapper"
	"github.com/brasmat/proposal-api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationService handles in-app notifications
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	logger           *zap.Logger
}

// NewNotificationService creates a new NotificationService instance
func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// newNotification builds an unread notification about an entity
func newNotification(userID uuid.UUID, notificationType domain.NotificationType, title, message, entityType string, entityID *uuid.UUID) *domain.Notification {
	return &domain.Notification{
		UserID:     userID,
		Type:       string(notificationType),
		Title:      title,
		Message:    truncate(message, 500),
		EntityType: entityType,
		EntityID:   entityID,
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// CreateForUser creates a notification for a specific user
func (s *NotificationService) CreateForUser(
	ctx context.Context,
	userID uuid.UUID,
	notificationType domain.NotificationType,
	title string,
	message string,
	entityType string,
	entityID *uuid.UUID,
) (*domain.NotificationDTO, error) {
	notification := newNotification(userID, notificationType, title, message, entityType, entityID)

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return nil, persistenceError("create notification", err)
	}

	s.logger.Info("notification created",
		zap.String("notificationID", notification.ID.String()),
		zap.String("userID", userID.String()),
		zap.String("type", string(notificationType)),
	)

	dto := mapper.ToNotificationDTO(notification)
	return &dto, nil
}

// GetForCurrentUser returns the caller's notifications, newest first
func (s *NotificationService) GetForCurrentUser(ctx context.Context, page, pageSize int, unreadOnly bool) (*domain.PaginatedResponse, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	notifications, total, err := s.notificationRepo.ListByUser(ctx, user.UserID, page, pageSize, unreadOnly)
	if err != nil {
		return nil, persistenceError("list notifications", err)
	}

	dtos := make([]domain.NotificationDTO, len(notifications))
	for i := range notifications {
		dtos[i] = mapper.ToNotificationDTO(&notifications[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}

// MarkAsRead marks one of the caller's notifications as read. Notifications of other
// users are reported as not found.
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID uuid.UUID) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	notification, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		if isNotFound(err) {
			return ErrNotificationNotFound
		}
		return persistenceError("get notification", err)
	}
	if notification.UserID != user.UserID {
		return ErrNotificationNotFound
	}
	if notification.Read {
		return nil
	}

	if _, err := s.notificationRepo.MarkAsRead(ctx, notificationID, user.UserID); err != nil {
		return persistenceError("mark notification read", err)
	}

	s.logger.Debug("notification marked as read",
		zap.String("notificationID", notificationID.String()),
		zap.String("userID", user.UserID.String()),
	)
	return nil
}

// MarkAllAsReadForUser marks all of the caller's notifications as read
func (s *NotificationService) MarkAllAsReadForUser(ctx context.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if err := s.notificationRepo.MarkAllAsRead(ctx, user.UserID); err != nil {
		return persistenceError("mark all notifications read", err)
	}

	s.logger.Info("all notifications marked as read", zap.String("userID", user.UserID.String()))
	return nil
}

// GetUnreadCount returns the count of unread notifications for the caller
func (s *NotificationService) GetUnreadCount(ctx context.Context) (*domain.UnreadCountDTO, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	count, err := s.notificationRepo.CountUnread(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: count unread notifications: %v", ErrPersistence, err)
	}
	return &domain.UnreadCountDTO{Count: count}, nil
}
