package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const paymentColumns = "id, school_id, payer_name, student_reference, amount, currency, payment_date, method, status, reference, description, academic_year_id, term_id, recorded_by, created_at, updated_at"

var paymentSorts = map[string]bool{
	"payment_date": true, "amount": true, "payer_name": true, "status": true, "created_at": true,
}

// PaymentRepository handles persistence for payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a payment repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) filter(schoolID string, filter models.PaymentFilter) *filterBuilder {
	b := scoped("school_id", schoolID)
	if filter.Status != "" {
		b.add("status = $%d", filter.Status)
	}
	if filter.Method != "" {
		b.add("method = $%d", filter.Method)
	}
	if filter.From != nil {
		b.add("payment_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		b.add("payment_date <= $%d", *filter.To)
	}
	if filter.TermID != "" {
		b.add("term_id = $%d", filter.TermID)
	}
	if filter.AcademicYearID != "" {
		b.add("academic_year_id = $%d", filter.AcademicYearID)
	}
	b.search(filter.Search, "payer_name", "student_reference", "reference")
	return b
}

// List returns a page of payments, the total row count and the summed amount for the filter.
func (r *PaymentRepository) List(ctx context.Context, schoolID string, filter models.PaymentFilter) ([]models.Payment, int, float64, error) {
	b := r.filter(schoolID, filter)
	order := orderBy(filter.SortBy, filter.SortOrder, "payment_date", "DESC", paymentSorts)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM payments %s %s LIMIT %d OFFSET %d", paymentColumns, b.where(), order, limit, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, b.args...); err != nil {
		return nil, 0, 0, fmt.Errorf("list payments: %w", err)
	}

	var summary struct {
		Total  int     `db:"total"`
		Amount float64 `db:"amount"`
	}
	if err := r.db.GetContext(ctx, &summary, "SELECT COUNT(*) AS total, COALESCE(SUM(amount), 0) AS amount FROM payments "+b.where(), b.args...); err != nil {
		return nil, 0, 0, fmt.Errorf("summarise payments: %w", err)
	}
	return payments, summary.Total, summary.Amount, nil
}

// ListAll returns up to limit payments for export.
func (r *PaymentRepository) ListAll(ctx context.Context, schoolID string, filter models.PaymentFilter, limit int) ([]models.Payment, error) {
	b := r.filter(schoolID, filter)
	order := orderBy(filter.SortBy, filter.SortOrder, "payment_date", "DESC", paymentSorts)
	query := fmt.Sprintf("SELECT %s FROM payments %s %s LIMIT %d", paymentColumns, b.where(), order, limit)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, b.args...); err != nil {
		return nil, fmt.Errorf("export payments: %w", err)
	}
	return payments, nil
}

// FindByID returns a payment by ID.
func (r *PaymentRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, "SELECT "+paymentColumns+" FROM payments WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create inserts a payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, school_id, payer_name, student_reference, amount, currency, payment_date, method, status, reference, description, academic_year_id, term_id, recorded_by, created_at, updated_at)
		VALUES (:id, :school_id, :payer_name, :student_reference, :amount, :currency, :payment_date, :method, :status, :reference, :description, :academic_year_id, :term_id, :recorded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Update modifies a payment.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET payer_name = :payer_name, student_reference = :student_reference, amount = :amount, currency = :currency, payment_date = :payment_date,
		method = :method, status = :status, reference = :reference, description = :description, academic_year_id = :academic_year_id, term_id = :term_id, updated_at = :updated_at
		WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// Delete removes a payment.
func (r *PaymentRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}
