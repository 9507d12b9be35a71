package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const notificationColumns = "id, school_id, user_id, title, message, type, is_read, read_at, created_at, updated_at"

// NotificationRepository handles persistence for notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// audience restricts rows to those addressed to the user or to the whole school.
func (b *filterBuilder) audience(userID string) {
	if userID == "" {
		return
	}
	b.add("(user_id = $%d OR user_id IS NULL)", userID)
}

// List returns notifications visible to a user.
func (r *NotificationRepository) List(ctx context.Context, schoolID string, filter models.NotificationFilter) ([]models.Notification, int, error) {
	b := scoped("school_id", schoolID)
	b.audience(filter.UserID)
	if filter.Type != "" {
		b.add("type = $%d", filter.Type)
	}
	if filter.Unread != nil {
		b.add("is_read = $%d", !*filter.Unread)
	}

	order := orderBy("created_at", filter.SortOrder, "created_at", "DESC", map[string]bool{"created_at": true})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM notifications %s %s LIMIT %d OFFSET %d", notificationColumns, b.where(), order, limit, offset)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// FindByID returns a notification by ID.
func (r *NotificationRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, "SELECT "+notificationColumns+" FROM notifications WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	const query = `INSERT INTO notifications (id, school_id, user_id, title, message, type, is_read, read_at, created_at, updated_at) VALUES (:id, :school_id, :user_id, :title, :message, :type, :is_read, :read_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// Update modifies a notification.
func (r *NotificationRepository) Update(ctx context.Context, notification *models.Notification) error {
	notification.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notifications SET user_id = :user_id, title = :title, message = :message, type = :type, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// MarkRead flags a notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, schoolID, id string, readAt time.Time) error {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = $1, updated_at = $1 WHERE school_id = $2 AND id = $3 AND is_read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, readAt, schoolID, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead flags every unread notification visible to the user and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, schoolID, userID string, readAt time.Time) (int64, error) {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = $1, updated_at = $1 WHERE school_id = $2 AND (user_id = $3 OR user_id IS NULL) AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, query, readAt, schoolID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return affected, nil
}

// CountUnread counts unread notifications visible to the user.
func (r *NotificationRepository) CountUnread(ctx context.Context, schoolID, userID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM notifications WHERE school_id = $1 AND (user_id = $2 OR user_id IS NULL) AND is_read = FALSE`
	if err := r.db.GetContext(ctx, &count, query, schoolID, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// Delete removes a notification.
func (r *NotificationRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
