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

func TestTenantRepositoryListFiltersByStatusAndSearch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewTenantRepository(sqlx.NewDb(db, "sqlmock"))

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "slug", "domain", "status", "created_at", "updated_at"}).
		AddRow("t1", "Greenfield", "greenfield", nil, "ACTIVE", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE status = $1 AND (name ILIKE $2 OR slug ILIKE $2) ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs(models.TenantStatusActive, "%green%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tenants WHERE status = $1")).
		WithArgs(models.TenantStatusActive, "%green%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	tenants, total, err := repo.List(context.Background(), models.TenantFilter{Status: models.TenantStatusActive, Search: "green"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tenants, 1)
	assert.Equal(t, "greenfield", tenants[0].Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryFirstByTenantOrdersByCreation(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewSchoolRepository(sqlx.NewDb(db, "sqlmock"))

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "code", "address", "phone", "email", "created_at", "updated_at"}).
		AddRow("s1", "t1", "Main Campus", "MAIN", nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schools WHERE tenant_id = $1 ORDER BY created_at ASC, id ASC LIMIT 1")).
		WithArgs("t1").
		WillReturnRows(rows)

	school, err := repo.FirstByTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "s1", school.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryExistsByCodeNoRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewSchoolRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM schools WHERE tenant_id = $1 AND code = $2 AND id <> $3 LIMIT 1")).
		WithArgs("t1", "MAIN", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.ExistsByCode(context.Background(), "t1", "MAIN", "s1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepositoryListRestrictsToTenant(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewTenantRepository(sqlx.NewDb(db, "sqlmock"))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE id = $1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "domain", "status", "created_at", "updated_at"}).
			AddRow("t1", "Greenfield", "greenfield", nil, "ACTIVE", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tenants WHERE id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	tenants, total, err := repo.List(context.Background(), models.TenantFilter{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tenants, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryCountDependentsCoversSchoolTables(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewSchoolRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery(`\(SELECT COUNT\(\*\) FROM users WHERE school_id = \$1\).*FROM staff WHERE.*FROM payrolls WHERE.*FROM settings WHERE school_id = \$1\)`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountDependents(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
