package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const schoolColumns = "id, tenant_id, name, code, address, phone, email, created_at, updated_at"

// SchoolRepository handles persistence for schools.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository instantiates a school repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools of a tenant.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	b := scoped("tenant_id", filter.TenantID)
	b.search(filter.Search, "name", "code")

	order := orderBy(filter.SortBy, filter.SortOrder, "created_at", "ASC", map[string]bool{
		"name": true, "code": true, "created_at": true,
	})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM schools %s %s LIMIT %d OFFSET %d", schoolColumns, b.where(), order, limit, offset)
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schools "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}
	return schools, total, nil
}

// FindByID loads a school by identifier regardless of tenant.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	if err := r.db.GetContext(ctx, &school, "SELECT "+schoolColumns+" FROM schools WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &school, nil
}

// FirstByTenant returns the oldest school of a tenant.
func (r *SchoolRepository) FirstByTenant(ctx context.Context, tenantID string) (*models.School, error) {
	var school models.School
	query := "SELECT " + schoolColumns + " FROM schools WHERE tenant_id = $1 ORDER BY created_at ASC, id ASC LIMIT 1"
	if err := r.db.GetContext(ctx, &school, query, tenantID); err != nil {
		return nil, err
	}
	return &school, nil
}

// ExistsByCode checks code uniqueness within a tenant.
func (r *SchoolRepository) ExistsByCode(ctx context.Context, tenantID, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM schools WHERE tenant_id = $1 AND code = $2"
	args := []interface{}{tenantID, code}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check school code: %w", err)
	}
	return true, nil
}

// Create inserts a new school.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now

	const query = `INSERT INTO schools (id, tenant_id, name, code, address, phone, email, created_at, updated_at) VALUES (:id, :tenant_id, :name, :code, :address, :phone, :email, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// Update persists school changes.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, code = :code, address = :address, phone = :phone, email = :email, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

// Delete removes a school.
func (r *SchoolRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schools WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete school: %w", err)
	}
	return nil
}

// schoolTables lists every table holding rows scoped to a school.
var schoolTables = []string{
	"users", "academic_years", "terms", "departments", "staff", "classes", "subjects",
	"payments", "payrolls", "messages", "notifications", "communication_logs", "settings",
}

// CountDependents reports how many rows across the school-scoped tables reference the school.
func (r *SchoolRepository) CountDependents(ctx context.Context, id string) (int, error) {
	counts := make([]string, len(schoolTables))
	for i, table := range schoolTables {
		counts[i] = fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE school_id = $1)", table)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT "+strings.Join(counts, " + "), id); err != nil {
		return 0, fmt.Errorf("count school dependents: %w", err)
	}
	return count, nil
}
