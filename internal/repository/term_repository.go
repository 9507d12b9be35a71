package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const termColumns = "id, school_id, academic_year_id, name, start_date, end_date, is_current, created_at, updated_at"

// TermRepository handles persistence for academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching provided filters.
func (r *TermRepository) List(ctx context.Context, schoolID string, filter models.TermFilter) ([]models.Term, int, error) {
	b := scoped("school_id", schoolID)
	if filter.AcademicYearID != "" {
		b.add("academic_year_id = $%d", filter.AcademicYearID)
	}
	if filter.IsCurrent != nil {
		b.add("is_current = $%d", *filter.IsCurrent)
	}

	order := orderBy(filter.SortBy, filter.SortOrder, "start_date", "DESC", map[string]bool{
		"name": true, "start_date": true, "end_date": true, "created_at": true,
	})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM terms %s %s LIMIT %d OFFSET %d", termColumns, b.where(), order, limit, offset)
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM terms "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}
	return terms, total, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Term, error) {
	var term models.Term
	if err := r.db.GetContext(ctx, &term, "SELECT "+termColumns+" FROM terms WHERE school_id = $1 AND id = $2", schoolID, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindCurrent returns the school's current term.
func (r *TermRepository) FindCurrent(ctx context.Context, schoolID string) (*models.Term, error) {
	var term models.Term
	if err := r.db.GetContext(ctx, &term, "SELECT "+termColumns+" FROM terms WHERE school_id = $1 AND is_current = TRUE LIMIT 1", schoolID); err != nil {
		return nil, err
	}
	return &term, nil
}

// ExistsByName checks the term name is unique within its academic year.
func (r *TermRepository) ExistsByName(ctx context.Context, schoolID, academicYearID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM terms WHERE school_id = $1 AND academic_year_id = $2 AND LOWER(name) = LOWER($3)"
	args := []interface{}{schoolID, academicYearID, name}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check term uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	term.CreatedAt = now
	term.UpdatedAt = now

	const query = `INSERT INTO terms (id, school_id, academic_year_id, name, start_date, end_date, is_current, created_at, updated_at) VALUES (:id, :school_id, :academic_year_id, :name, :start_date, :end_date, :is_current, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update modifies an existing term.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms SET academic_year_id = :academic_year_id, name = :name, start_date = :start_date, end_date = :end_date, is_current = :is_current, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// SetCurrent marks the term as current and clears the flag on the school's other terms.
func (r *TermRepository) SetCurrent(ctx context.Context, schoolID, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err = clearCurrent(ctx, tx, "terms", "school_id", schoolID, id, now); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE terms SET is_current = TRUE, updated_at = $1 WHERE school_id = $2 AND id = $3`, now, schoolID, id); err != nil {
		return fmt.Errorf("set current term: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set current tx: %w", err)
	}
	return nil
}

// Delete removes a term permanently.
func (r *TermRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM terms WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return nil
}

// CountPayments returns the number of payments recorded against the term.
func (r *TermRepository) CountPayments(ctx context.Context, schoolID, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payments WHERE school_id = $1 AND term_id = $2`, schoolID, id); err != nil {
		return 0, fmt.Errorf("count term payments: %w", err)
	}
	return count, nil
}
