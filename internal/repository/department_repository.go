package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const departmentColumns = "id, school_id, name, code, description, head_staff_id, created_at, updated_at"

// DepartmentRepository handles persistence for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a department repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns departments of a school.
func (r *DepartmentRepository) List(ctx context.Context, schoolID string, filter models.DepartmentFilter) ([]models.Department, int, error) {
	b := scoped("school_id", schoolID)
	b.search(filter.Search, "name", "code")

	order := orderBy(filter.SortBy, filter.SortOrder, "name", "ASC", map[string]bool{"name": true, "code": true, "created_at": true})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM departments %s %s LIMIT %d OFFSET %d", departmentColumns, b.where(), order, limit, offset)
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM departments "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}
	return departments, total, nil
}

// FindByID returns a department by ID.
func (r *DepartmentRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Department, error) {
	var department models.Department
	if err := r.db.GetContext(ctx, &department, "SELECT "+departmentColumns+" FROM departments WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// ExistsByName checks department name uniqueness in the school.
func (r *DepartmentRepository) ExistsByName(ctx context.Context, schoolID, name, excludeID string) (bool, error) {
	query, args := excluding("SELECT 1 FROM departments WHERE school_id = $1 AND LOWER(name) = LOWER($2)", []interface{}{schoolID, name}, excludeID)
	exists, err := rowExists(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("check department name: %w", err)
	}
	return exists, nil
}

// Create inserts a department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, school_id, name, code, description, head_staff_id, created_at, updated_at) VALUES (:id, :school_id, :name, :code, :description, :head_staff_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update modifies a department.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, code = :code, description = :description, head_staff_id = :head_staff_id, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// Delete removes a department.
func (r *DepartmentRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return nil
}

// CountReferences returns how many staff and subjects point at the department.
func (r *DepartmentRepository) CountReferences(ctx context.Context, schoolID, id string) (staff int, subjects int, err error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM staff WHERE school_id = $1 AND department_id = $2) AS staff,
		(SELECT COUNT(*) FROM subjects WHERE school_id = $1 AND department_id = $2) AS subjects`
	var counts struct {
		Staff    int `db:"staff"`
		Subjects int `db:"subjects"`
	}
	if err := r.db.GetContext(ctx, &counts, query, schoolID, id); err != nil {
		return 0, 0, fmt.Errorf("count department references: %w", err)
	}
	return counts.Staff, counts.Subjects, nil
}
