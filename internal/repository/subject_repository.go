package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const subjectColumns = "id, school_id, name, code, description, department_id, created_at, updated_at"

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns paginated subjects.
func (r *SubjectRepository) List(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.Subject, int, error) {
	b := scoped("school_id", schoolID)
	if filter.DepartmentID != "" {
		b.add("department_id = $%d", filter.DepartmentID)
	}
	b.search(filter.Search, "name", "code")

	order := orderBy(filter.SortBy, filter.SortOrder, "name", "ASC", map[string]bool{
		"name": true, "code": true, "created_at": true,
	})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM subjects %s %s LIMIT %d OFFSET %d", subjectColumns, b.where(), order, limit, offset)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM subjects "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// FindByID returns a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, "SELECT "+subjectColumns+" FROM subjects WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ExistsByCode checks if a subject code already exists in the school.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, schoolID, code, excludeID string) (bool, error) {
	query, args := excluding("SELECT 1 FROM subjects WHERE school_id = $1 AND UPPER(code) = UPPER($2)", []interface{}{schoolID, code}, excludeID)
	exists, err := rowExists(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return exists, nil
}

// Create inserts a subject record.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, school_id, name, code, description, department_id, created_at, updated_at) VALUES (:id, :school_id, :name, :code, :description, :department_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies a subject record.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, code = :code, description = :description, department_id = :department_id, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject.
func (r *SubjectRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
