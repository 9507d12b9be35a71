package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the dashboard summary.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository creates a dashboard repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Counts loads school-wide aggregates; payments are summed for the academic year when one is given.
func (r *DashboardRepository) Counts(ctx context.Context, schoolID, academicYearID string) (*models.DashboardCounts, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM classes WHERE school_id = $1) AS classes,
		(SELECT COUNT(*) FROM subjects WHERE school_id = $1) AS subjects,
		(SELECT COUNT(*) FROM departments WHERE school_id = $1) AS departments,
		(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE school_id = $1 AND status = 'completed'
			AND ($2 = '' OR academic_year_id::text = $2)) AS payments_total,
		(SELECT COUNT(*) FROM payrolls WHERE school_id = $1 AND status <> 'paid') AS pending_payroll`
	var counts models.DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query, schoolID, academicYearID); err != nil {
		return nil, fmt.Errorf("load dashboard counts: %w", err)
	}
	return &counts, nil
}
