package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edutenant-api/internal/models"
)

type dashboardRepoStub struct {
	calls  int
	yearID string
}

func (s *dashboardRepoStub) Counts(ctx context.Context, schoolID, academicYearID string) (*models.DashboardCounts, error) {
	s.calls++
	s.yearID = academicYearID
	return &models.DashboardCounts{Classes: 12, Subjects: 9, Departments: 3, PaymentsTotal: 1520.5, PendingPayroll: 2}, nil
}

type unreadStub map[string]int

func (u unreadStub) CountUnread(ctx context.Context, schoolID, userID string) (int, error) {
	return u[userID], nil
}

func TestDashboardServiceSummaryCaches(t *testing.T) {
	years, terms, staff, _ := academicFixture()
	repo := &dashboardRepoStub{}
	mem := newMemoryCache()
	cache := NewCacheService(mem, nil, 0, nil, true)
	svc := NewDashboardService(repo, staff, years, terms, unreadStub{"alice": 3, "bob": 1}, cache, NewMetricsService(), 0, nil)

	summary, hit, err := svc.Summary(context.Background(), testScope, "alice")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "y1", repo.yearID)
	assert.Equal(t, 12, summary.Classes)
	assert.Equal(t, 1, summary.TotalStaff)
	assert.Equal(t, 1, summary.StaffByStatus[string(models.StaffStatusActive)])
	assert.Equal(t, "term1", summary.CurrentTerm.ID)
	assert.Equal(t, 3, summary.UnreadNotifications)

	summary, hit, err = svc.Summary(context.Background(), testScope, "bob")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 1, summary.UnreadNotifications)
	assert.Equal(t, "2024/2025", summary.CurrentAcademicYear.Name)

	cache.Delete(context.Background(), DashboardCacheKey(testScope.SchoolID))
	_, hit, err = svc.Summary(context.Background(), testScope, "bob")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.calls)
}

func TestDashboardServiceWithoutCurrentYear(t *testing.T) {
	years, terms, staff, _ := academicFixture()
	years.years["y1"].IsCurrent = false
	terms.terms["term1"].IsCurrent = false
	repo := &dashboardRepoStub{}
	svc := NewDashboardService(repo, staff, years, terms, unreadStub{}, nil, nil, 0, nil)

	summary, hit, err := svc.Summary(context.Background(), testScope, "alice")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, summary.CurrentAcademicYear)
	assert.Nil(t, summary.CurrentTerm)
	assert.Equal(t, "", repo.yearID)
}
