package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edutenant-api/internal/models"
)

func newStaffRepo(t *testing.T) (*StaffRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewStaffRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestStaffRepositoryListAppliesFilters(t *testing.T) {
	repo, mock, done := newStaffRepo(t)
	defer done()

	now := time.Now()
	cols := []string{"id", "school_id", "employee_number", "first_name", "last_name", "email", "phone", "position", "department_id", "employment_type", "hire_date", "salary", "status", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("st1", "school-1", "E-1", "Ann", "Mwangi", "ann@example.com", nil, "Teacher", "dep-1", "full_time", now, 1200.5, "active", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE school_id = $1 AND department_id = $2 AND status = $3 AND (first_name ILIKE $4 OR last_name ILIKE $4 OR email ILIKE $4 OR employee_number ILIKE $4) ORDER BY last_name ASC LIMIT 10 OFFSET 10")).
		WithArgs("school-1", "dep-1", "active", "%ann%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM staff WHERE school_id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	staff, total, err := repo.List(context.Background(), "school-1", models.StaffFilter{
		DepartmentID: "dep-1",
		Status:       models.StaffStatusActive,
		Search:       "ann",
		Page:         2,
		PageSize:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, staff, 1)
	assert.Equal(t, "Ann Mwangi", staff[0].FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepositoryExistsByEmailExcludesSelf(t *testing.T) {
	repo, mock, done := newStaffRepo(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM staff WHERE school_id = $1 AND LOWER(email) = LOWER($2) AND id <> $3 LIMIT 1")).
		WithArgs("school-1", "ann@example.com", "st1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "school-1", "ann@example.com", "st1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepositoryUpdateStatus(t *testing.T) {
	repo, mock, done := newStaffRepo(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE staff SET status = $1, updated_at = $2 WHERE school_id = $3 AND id = $4")).
		WithArgs("terminated", sqlmock.AnyArg(), "school-1", "st1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "school-1", "st1", models.StaffStatusTerminated))
	assert.NoError(t, mock.ExpectationsWereMet())
}
