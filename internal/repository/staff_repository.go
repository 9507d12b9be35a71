package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const staffColumns = "id, school_id, employee_number, first_name, last_name, email, phone, position, department_id, employment_type, hire_date, salary, status, created_at, updated_at"

// StaffRepository handles persistence for staff members.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository creates a staff repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// List returns staff members of a school.
func (r *StaffRepository) List(ctx context.Context, schoolID string, filter models.StaffFilter) ([]models.Staff, int, error) {
	b := scoped("school_id", schoolID)
	if filter.DepartmentID != "" {
		b.add("department_id = $%d", filter.DepartmentID)
	}
	if filter.Status != "" {
		b.add("status = $%d", filter.Status)
	}
	if filter.EmploymentType != "" {
		b.add("employment_type = $%d", filter.EmploymentType)
	}
	b.search(filter.Search, "first_name", "last_name", "email", "employee_number")

	order := orderBy(filter.SortBy, filter.SortOrder, "last_name", "ASC", map[string]bool{
		"first_name": true, "last_name": true, "email": true, "hire_date": true, "salary": true, "created_at": true,
	})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM staff %s %s LIMIT %d OFFSET %d", staffColumns, b.where(), order, limit, offset)
	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM staff "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}
	return staff, total, nil
}

// FindByID returns a staff member by ID.
func (r *StaffRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Staff, error) {
	var member models.Staff
	if err := r.db.GetContext(ctx, &member, "SELECT "+staffColumns+" FROM staff WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// ExistsByEmail checks email uniqueness in the school.
func (r *StaffRepository) ExistsByEmail(ctx context.Context, schoolID, email, excludeID string) (bool, error) {
	query, args := excluding("SELECT 1 FROM staff WHERE school_id = $1 AND LOWER(email) = LOWER($2)", []interface{}{schoolID, email}, excludeID)
	exists, err := rowExists(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("check staff email: %w", err)
	}
	return exists, nil
}

// Create inserts a staff member.
func (r *StaffRepository) Create(ctx context.Context, member *models.Staff) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now
	const query = `INSERT INTO staff (id, school_id, employee_number, first_name, last_name, email, phone, position, department_id, employment_type, hire_date, salary, status, created_at, updated_at)
		VALUES (:id, :school_id, :employee_number, :first_name, :last_name, :email, :phone, :position, :department_id, :employment_type, :hire_date, :salary, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// Update modifies a staff member.
func (r *StaffRepository) Update(ctx context.Context, member *models.Staff) error {
	member.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff SET employee_number = :employee_number, first_name = :first_name, last_name = :last_name, email = :email, phone = :phone,
		position = :position, department_id = :department_id, employment_type = :employment_type, hire_date = :hire_date, salary = :salary, status = :status, updated_at = :updated_at
		WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("update staff: %w", err)
	}
	return nil
}

// UpdateStatus changes only the status column.
func (r *StaffRepository) UpdateStatus(ctx context.Context, schoolID, id string, status models.StaffStatus) error {
	const query = `UPDATE staff SET status = $1, updated_at = $2 WHERE school_id = $3 AND id = $4`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), schoolID, id); err != nil {
		return fmt.Errorf("update staff status: %w", err)
	}
	return nil
}

// Delete removes a staff member.
func (r *StaffRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM staff WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	return nil
}

// CountPayrolls returns the payroll rows held by the staff member.
func (r *StaffRepository) CountPayrolls(ctx context.Context, schoolID, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payrolls WHERE school_id = $1 AND staff_id = $2`, schoolID, id); err != nil {
		return 0, fmt.Errorf("count staff payrolls: %w", err)
	}
	return count, nil
}

// CountByStatus groups the school's staff by status.
func (r *StaffRepository) CountByStatus(ctx context.Context, schoolID string) ([]models.StatusCount, error) {
	var counts []models.StatusCount
	const query = `SELECT status, COUNT(*) AS count FROM staff WHERE school_id = $1 GROUP BY status ORDER BY status`
	if err := r.db.SelectContext(ctx, &counts, query, schoolID); err != nil {
		return nil, fmt.Errorf("count staff by status: %w", err)
	}
	return counts, nil
}
