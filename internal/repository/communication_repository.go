package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const communicationColumns = "id, school_id, channel, recipients, subject, body, status, provider, provider_ref, error, attempts, requested_by, sent_at, created_at, updated_at"

// CommunicationRepository persists outbound email and SMS logs.
type CommunicationRepository struct {
	db *sqlx.DB
}

// NewCommunicationRepository creates a communication log repository.
func NewCommunicationRepository(db *sqlx.DB) *CommunicationRepository {
	return &CommunicationRepository{db: db}
}

// List returns communication logs of a school.
func (r *CommunicationRepository) List(ctx context.Context, schoolID string, filter models.CommunicationFilter) ([]models.CommunicationLog, int, error) {
	b := scoped("school_id", schoolID)
	if filter.Channel != "" {
		b.add("channel = $%d", filter.Channel)
	}
	if filter.Status != "" {
		b.add("status = $%d", filter.Status)
	}

	order := orderBy("created_at", filter.SortOrder, "created_at", "DESC", map[string]bool{"created_at": true})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM communication_logs %s %s LIMIT %d OFFSET %d", communicationColumns, b.where(), order, limit, offset)
	var logs []models.CommunicationLog
	if err := r.db.SelectContext(ctx, &logs, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list communication logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM communication_logs "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count communication logs: %w", err)
	}
	return logs, total, nil
}

// FindByID returns a communication log by ID.
func (r *CommunicationRepository) FindByID(ctx context.Context, schoolID, id string) (*models.CommunicationLog, error) {
	var entry models.CommunicationLog
	if err := r.db.GetContext(ctx, &entry, "SELECT "+communicationColumns+" FROM communication_logs WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts a queued communication log.
func (r *CommunicationRepository) Create(ctx context.Context, entry *models.CommunicationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	const query = `INSERT INTO communication_logs (id, school_id, channel, recipients, subject, body, status, provider, provider_ref, error, attempts, requested_by, sent_at, created_at, updated_at)
		VALUES (:id, :school_id, :channel, :recipients, :subject, :body, :status, :provider, :provider_ref, :error, :attempts, :requested_by, :sent_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create communication log: %w", err)
	}
	return nil
}

// UpdateDelivery records the outcome of a dispatch attempt.
func (r *CommunicationRepository) UpdateDelivery(ctx context.Context, entry *models.CommunicationLog) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE communication_logs SET status = :status, provider_ref = :provider_ref, error = :error, attempts = :attempts, sent_at = :sent_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update communication log: %w", err)
	}
	return nil
}

// ListQueued returns undelivered logs across all schools, oldest first.
func (r *CommunicationRepository) ListQueued(ctx context.Context, limit int) ([]models.CommunicationLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []models.CommunicationLog
	query := "SELECT " + communicationColumns + " FROM communication_logs WHERE status = $1 ORDER BY created_at ASC LIMIT $2"
	if err := r.db.SelectContext(ctx, &logs, query, models.CommunicationQueued, limit); err != nil {
		return nil, fmt.Errorf("list queued communication logs: %w", err)
	}
	return logs, nil
}
