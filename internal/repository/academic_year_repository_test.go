package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcademicYearRepositoryExistsByNameExcludesSelf(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewAcademicYearRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM academic_years WHERE school_id = $1 AND LOWER(name) = LOWER($2) AND id <> $3 LIMIT 1")).
		WithArgs("s1", "2024/2025", "y1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM academic_years WHERE school_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1")).
		WithArgs("s1", "2024/2025").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "s1", "2024/2025", "y1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByName(context.Background(), "s1", "2024/2025", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcademicYearRepositoryCountDependents(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewAcademicYearRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(`FROM terms WHERE school_id = \$1 AND academic_year_id = \$2.*FROM classes WHERE school_id = \$1 AND academic_year_id = \$2.*FROM payments WHERE school_id = \$1 AND academic_year_id = \$2`).
		WithArgs("s1", "y1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountDependents(context.Background(), "s1", "y1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
