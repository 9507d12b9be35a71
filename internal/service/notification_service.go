package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/notify"
)

type notificationRepository interface {
	List(ctx context.Context, schoolID string, filter models.NotificationFilter) ([]models.Notification, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Notification, error)
	Create(ctx context.Context, notification *models.Notification) error
	Update(ctx context.Context, notification *models.Notification) error
	MarkRead(ctx context.Context, schoolID, id string, readAt time.Time) error
	MarkAllRead(ctx context.Context, schoolID, userID string, readAt time.Time) (int64, error)
	CountUnread(ctx context.Context, schoolID, userID string) (int, error)
	Delete(ctx context.Context, schoolID, id string) error
}

// NotificationChannel is the push channel notifications are published on.
const NotificationChannel = "notifications"

// NotificationRequest creates or replaces a notification.
type NotificationRequest struct {
	UserID  *string                 `json:"user_id"`
	Title   string                  `json:"title" validate:"required,max=200"`
	Message string                  `json:"message" validate:"required"`
	Type    models.NotificationType `json:"type" validate:"omitempty,oneof=info warning alert success"`
}

// NotificationService manages in-app notifications and their push fan-out.
type NotificationService struct {
	repo      notificationRepository
	users     schoolMemberChecker
	publisher notify.Publisher
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService constructs a NotificationService. A nil publisher disables push.
func NewNotificationService(repo notificationRepository, users schoolMemberChecker, publisher notify.Publisher, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &NotificationService{repo: repo, users: users, publisher: publisher, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// List returns notifications visible to the user.
func (s *NotificationService) List(ctx context.Context, scope models.TenantScope, userID string, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	filter.UserID = userID
	notifications, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list notifications")
	}
	return notifications, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a notification addressed to the user or to the whole school.
func (s *NotificationService) Get(ctx context.Context, scope models.TenantScope, userID, id string) (*models.Notification, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	notification, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "notification")
	}
	if userID != "" && notification.UserID != nil && *notification.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return notification, nil
}

// Create stores a notification and publishes it to push subscribers.
func (s *NotificationService) Create(ctx context.Context, scope models.TenantScope, req NotificationRequest) (*models.Notification, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	notification := &models.Notification{SchoolID: scope.SchoolID}
	if err := s.apply(ctx, notification, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, internalError(err, "failed to create notification")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))

	if err := s.publisher.Publish(ctx, scope.SchoolID, NotificationChannel, notification); err != nil {
		s.logger.Warn("failed to publish notification", zap.String("notification_id", notification.ID), zap.Error(err))
	}
	return notification, nil
}

// Update replaces a notification's content.
func (s *NotificationService) Update(ctx context.Context, scope models.TenantScope, id string, req NotificationRequest) (*models.Notification, error) {
	notification, err := s.Get(ctx, scope, "", id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, notification, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, notification); err != nil {
		return nil, internalError(err, "failed to update notification")
	}
	return notification, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, scope models.TenantScope, userID, id string) (*models.Notification, error) {
	notification, err := s.Get(ctx, scope, userID, id)
	if err != nil {
		return nil, err
	}
	if notification.IsRead {
		return notification, nil
	}
	readAt := s.now().UTC()
	if err := s.repo.MarkRead(ctx, scope.SchoolID, id, readAt); err != nil {
		return nil, internalError(err, "failed to mark notification read")
	}
	notification.IsRead = true
	notification.ReadAt = &readAt
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return notification, nil
}

// MarkAllRead flags every unread notification visible to the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, scope models.TenantScope, userID string) (int64, error) {
	if err := requireScope(scope); err != nil {
		return 0, err
	}
	updated, err := s.repo.MarkAllRead(ctx, scope.SchoolID, userID, s.now().UTC())
	if err != nil {
		return 0, internalError(err, "failed to mark notifications read")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return updated, nil
}

// UnreadCount counts unread notifications visible to the user.
func (s *NotificationService) UnreadCount(ctx context.Context, scope models.TenantScope, userID string) (int, error) {
	if err := requireScope(scope); err != nil {
		return 0, err
	}
	count, err := s.repo.CountUnread(ctx, scope.SchoolID, userID)
	if err != nil {
		return 0, internalError(err, "failed to count notifications")
	}
	return count, nil
}

// Delete removes a notification.
func (s *NotificationService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if _, err := s.Get(ctx, scope, "", id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return internalError(err, "failed to delete notification")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return nil
}

func (s *NotificationService) apply(ctx context.Context, notification *models.Notification, req NotificationRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid notification payload")
	}
	userID := optionalString(req.UserID)
	if userID != nil {
		exists, err := s.users.ExistsInSchool(ctx, notification.SchoolID, *userID)
		if err != nil {
			return internalError(err, "failed to check notification user")
		}
		if !exists {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
	}

	notification.UserID = userID
	notification.Title = strings.TrimSpace(req.Title)
	notification.Message = req.Message
	notification.Type = req.Type
	if notification.Type == "" {
		notification.Type = models.NotificationInfo
	}
	return nil
}
