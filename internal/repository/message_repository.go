package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const messageColumns = "id, school_id, sender_id, recipient_id, subject, body, is_read, read_at, created_at, updated_at"

// MessageRepository handles persistence for direct messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a message repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// List returns the inbox or sent folder of a user.
func (r *MessageRepository) List(ctx context.Context, schoolID string, filter models.MessageFilter) ([]models.Message, int, error) {
	b := scoped("school_id", schoolID)
	if filter.Folder == models.MessageFolderSent {
		b.add("sender_id = $%d", filter.UserID)
	} else {
		b.add("recipient_id = $%d", filter.UserID)
	}
	if filter.Unread != nil {
		b.add("is_read = $%d", !*filter.Unread)
	}

	order := orderBy("created_at", filter.SortOrder, "created_at", "DESC", map[string]bool{"created_at": true})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM messages %s %s LIMIT %d OFFSET %d", messageColumns, b.where(), order, limit, offset)
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM messages "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return messages, total, nil
}

// FindByID returns a message by ID.
func (r *MessageRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Message, error) {
	var message models.Message
	if err := r.db.GetContext(ctx, &message, "SELECT "+messageColumns+" FROM messages WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &message, nil
}

// Create inserts a message.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	message.CreatedAt = now
	message.UpdatedAt = now
	const query = `INSERT INTO messages (id, school_id, sender_id, recipient_id, subject, body, is_read, read_at, created_at, updated_at) VALUES (:id, :school_id, :sender_id, :recipient_id, :subject, :body, :is_read, :read_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// Update changes the subject and body of a message.
func (r *MessageRepository) Update(ctx context.Context, message *models.Message) error {
	message.UpdatedAt = time.Now().UTC()
	const query = `UPDATE messages SET subject = :subject, body = :body, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// MarkRead flags a message as read once.
func (r *MessageRepository) MarkRead(ctx context.Context, schoolID, id string, readAt time.Time) error {
	const query = `UPDATE messages SET is_read = TRUE, read_at = $1, updated_at = $1 WHERE school_id = $2 AND id = $3 AND is_read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, readAt, schoolID, id); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

// Delete removes a message.
func (r *MessageRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
