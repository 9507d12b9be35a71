package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const academicYearColumns = "id, school_id, name, start_date, end_date, is_current, created_at, updated_at"

// AcademicYearRepository handles persistence for academic years.
type AcademicYearRepository struct {
	db *sqlx.DB
}

// NewAcademicYearRepository instantiates an academic year repository.
func NewAcademicYearRepository(db *sqlx.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// List returns academic years of a school.
func (r *AcademicYearRepository) List(ctx context.Context, schoolID string, filter models.AcademicYearFilter) ([]models.AcademicYear, int, error) {
	b := scoped("school_id", schoolID)
	if filter.IsCurrent != nil {
		b.add("is_current = $%d", *filter.IsCurrent)
	}
	b.search(filter.Search, "name")

	order := orderBy(filter.SortBy, filter.SortOrder, "start_date", "DESC", map[string]bool{
		"name": true, "start_date": true, "end_date": true, "created_at": true,
	})
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM academic_years %s %s LIMIT %d OFFSET %d", academicYearColumns, b.where(), order, limit, offset)
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list academic years: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM academic_years "+b.where(), b.args...); err != nil {
		return nil, 0, fmt.Errorf("count academic years: %w", err)
	}
	return years, total, nil
}

// FindByID loads an academic year within a school.
func (r *AcademicYearRepository) FindByID(ctx context.Context, schoolID, id string) (*models.AcademicYear, error) {
	var year models.AcademicYear
	query := "SELECT " + academicYearColumns + " FROM academic_years WHERE school_id = $1 AND id = $2"
	if err := r.db.GetContext(ctx, &year, query, schoolID, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindCurrent returns the school's current academic year.
func (r *AcademicYearRepository) FindCurrent(ctx context.Context, schoolID string) (*models.AcademicYear, error) {
	var year models.AcademicYear
	query := "SELECT " + academicYearColumns + " FROM academic_years WHERE school_id = $1 AND is_current = TRUE LIMIT 1"
	if err := r.db.GetContext(ctx, &year, query, schoolID); err != nil {
		return nil, err
	}
	return &year, nil
}

// ExistsByName checks name uniqueness within a school.
func (r *AcademicYearRepository) ExistsByName(ctx context.Context, schoolID, name, excludeID string) (bool, error) {
	query, args := excluding("SELECT 1 FROM academic_years WHERE school_id = $1 AND LOWER(name) = LOWER($2)", []interface{}{schoolID, name}, excludeID)
	exists, err := rowExists(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("check academic year name: %w", err)
	}
	return exists, nil
}

// Create inserts an academic year. When it is current, other years of the school are cleared in the same transaction.
func (r *AcademicYearRepository) Create(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	year.CreatedAt = now
	year.UpdatedAt = now

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if year.IsCurrent {
			if err := clearCurrent(ctx, tx, "academic_years", "school_id", year.SchoolID, year.ID, now); err != nil {
				return err
			}
		}
		const query = `INSERT INTO academic_years (id, school_id, name, start_date, end_date, is_current, created_at, updated_at) VALUES (:id, :school_id, :name, :start_date, :end_date, :is_current, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, year); err != nil {
			return fmt.Errorf("create academic year: %w", err)
		}
		return nil
	})
}

// Update persists academic year changes with the same current-year rule as Create.
func (r *AcademicYearRepository) Update(ctx context.Context, year *models.AcademicYear) error {
	year.UpdatedAt = time.Now().UTC()
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if year.IsCurrent {
			if err := clearCurrent(ctx, tx, "academic_years", "school_id", year.SchoolID, year.ID, year.UpdatedAt); err != nil {
				return err
			}
		}
		const query = `UPDATE academic_years SET name = :name, start_date = :start_date, end_date = :end_date, is_current = :is_current, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
		if _, err := tx.NamedExecContext(ctx, query, year); err != nil {
			return fmt.Errorf("update academic year: %w", err)
		}
		return nil
	})
}

// Delete removes an academic year.
func (r *AcademicYearRepository) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM academic_years WHERE school_id = $1 AND id = $2`, schoolID, id); err != nil {
		return fmt.Errorf("delete academic year: %w", err)
	}
	return nil
}

// CountDependents returns how many terms, classes and payments reference the academic year.
func (r *AcademicYearRepository) CountDependents(ctx context.Context, schoolID, id string) (int, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM terms WHERE school_id = $1 AND academic_year_id = $2) +
		(SELECT COUNT(*) FROM classes WHERE school_id = $1 AND academic_year_id = $2) +
		(SELECT COUNT(*) FROM payments WHERE school_id = $1 AND academic_year_id = $2)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, id); err != nil {
		return 0, fmt.Errorf("count academic year dependents: %w", err)
	}
	return count, nil
}

func (r *AcademicYearRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin academic year tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit academic year tx: %w", err)
	}
	return nil
}

// clearCurrent unsets is_current on every row of table in the scope except keepID.
func clearCurrent(ctx context.Context, tx *sqlx.Tx, table, scopeColumn, scopeValue, keepID string, now time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET is_current = FALSE, updated_at = $1 WHERE %s = $2 AND is_current = TRUE AND id <> $3", table, scopeColumn)
	if _, err := tx.ExecContext(ctx, query, now, scopeValue, keepID); err != nil {
		return fmt.Errorf("clear current %s: %w", table, err)
	}
	return nil
}
