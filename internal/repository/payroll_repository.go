package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const payrollColumns = "p.id, p.school_id, p.staff_id, p.period_start, p.period_end, p.basic_salary, p.allowances, p.deductions, p.net_salary, p.status, p.paid_at, p.notes, p.created_at, p.updated_at"

var payrollSorts = map[string]bool{
	"p.period_start": true, "p.net_salary": true, "p.status": true, "p.created_at": true, "staff_name": true,
}

// PayrollRepository handles persistence for payroll entries.
type PayrollRepository struct {
	db *sqlx.DB
}

// NewPayrollRepository creates a payroll repository.
func NewPayrollRepository(db *sqlx.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

func (r *PayrollRepository) filter(schoolID string, filter models.PayrollFilter) *filterBuilder {
	b := scoped("p.school_id", schoolID)
	if filter.StaffID != "" {
		b.add("p.staff_id = $%d", filter.StaffID)
	}
	if filter.Status != "" {
		b.add("p.status = $%d", filter.Status)
	}
	if filter.From != nil {
		b.add("p.period_start >= $%d", *filter.From)
	}
	if filter.To != nil {
		b.add("p.period_end <= $%d", *filter.To)
	}
	return b
}

func payrollSort(filter models.PayrollFilter) string {
	sortBy := filter.SortBy
	if sortBy != "" && sortBy != "staff_name" {
		sortBy = "p." + sortBy
	}
	return orderBy(sortBy, filter.SortOrder, "p.period_start", "DESC", payrollSorts)
}

// List returns payroll entries joined with staff names.
func (r *PayrollRepository) List(ctx context.Context, schoolID string, filter models.PayrollFilter) ([]models.PayrollDetail, int, error) {
	b := r.filter(schoolID, filter)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s, s.first_name || ' ' || s.last_name AS staff_name FROM payrolls p JOIN staff s ON s.id = p.staff_id %s %s LIMIT %d OFFSET %d`,
		payrollColumns, b.where(), payrollSort(filter), limit, offset)
	var rows []models.PayrollDetail
	if err := r.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list payroll: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payrolls p "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count payroll: %w", err)
	}
	return rows, total, nil
}

// ListAll returns up to limit payroll entries for export.
func (r *PayrollRepository) ListAll(ctx context.Context, schoolID string, filter models.PayrollFilter, limit int) ([]models.PayrollDetail, error) {
	b := r.filter(schoolID, filter)
	query := fmt.Sprintf(`SELECT %s, s.first_name || ' ' || s.last_name AS staff_name FROM payrolls p JOIN staff s ON s.id = p.staff_id %s %s LIMIT %d`,
		payrollColumns, b.where(), payrollSort(filter), limit)
	var rows []models.PayrollDetail
	if err := r.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("export payroll: %w", err)
	}
	return rows, nil
}

// FindByID returns a payroll entry by ID.
func (r *PayrollRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Payroll, error) {
	var payroll models.Payroll
	if err := r.db.GetContext(ctx, &payroll, "SELECT "+payrollColumns+" FROM payrolls p WHERE p.school_id = $1 AND p.id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &payroll, nil
}

// ExistsForPeriod checks whether the staff member already has payroll for the exact period.
func (r *PayrollRepository) ExistsForPeriod(ctx context.Context, schoolID, staffID string, start, end time.Time, excludeID string) (bool, error) {
	query, args := excluding("SELECT 1 FROM payrolls WHERE school_id = $1 AND staff_id = $2 AND period_start = $3 AND period_end = $4",
		[]interface{}{schoolID, staffID, start, end}, excludeID)
	exists, err := rowExists(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("check payroll period: %w", err)
	}
	return exists, nil
}

// Create inserts a payroll entry.
func (r *PayrollRepository) Create(ctx context.Context, payroll *models.Payroll) error {
	if payroll.ID == "" {
		payroll.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payroll.CreatedAt = now
	payroll.UpdatedAt = now
	const query = `INSERT INTO payrolls (id, school_id, staff_id, period_start, period_end, basic_salary, allowances, deductions, net_salary, status, paid_at, notes, created_at, updated_at)
		VALUES (:id, :school_id, :staff_id, :period_start, :period_end, :basic_salary, :allowances, :deductions, :net_salary, :status, :paid_at, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payroll); err != nil {
		return fmt.Errorf("create payroll: %w", err)
	}
	return nil
}

// Update modifies a payroll entry that has not been paid.
func (r *PayrollRepository) Update(ctx context.Context, payroll *models.Payroll) error {
	payroll.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payrolls SET staff_id = :staff_id, period_start = :period_start, period_end = :period_end, basic_salary = :basic_salary, allowances = :allowances,
		deductions = :deductions, net_salary = :net_salary, status = :status, paid_at = :paid_at, notes = :notes, updated_at = :updated_at
		WHERE id = :id AND school_id = :school_id AND status <> 'paid'`
	res, err := r.db.NamedExecContext(ctx, query, payroll)
	if err != nil {
		return fmt.Errorf("update payroll: %w", err)
	}
	return requireAffected(res, "update payroll")
}

// MarkPaid flags the entry as paid at the given time.
func (r *PayrollRepository) MarkPaid(ctx context.Context, schoolID, id string, paidAt time.Time) error {
	const query = `UPDATE payrolls SET status = 'paid', paid_at = $1, updated_at = $1 WHERE school_id = $2 AND id = $3 AND status <> 'paid'`
	res, err := r.db.ExecContext(ctx, query, paidAt, schoolID, id)
	if err != nil {
		return fmt.Errorf("mark payroll paid: %w", err)
	}
	return requireAffected(res, "mark payroll paid")
}

// Delete removes an unpaid payroll entry.
func (r *PayrollRepository) Delete(ctx context.Context, schoolID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payrolls WHERE school_id = $1 AND id = $2 AND status <> 'paid'`, schoolID, id)
	if err != nil {
		return fmt.Errorf("delete payroll: %w", err)
	}
	return requireAffected(res, "delete payroll")
}
