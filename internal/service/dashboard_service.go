package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
)

type dashboardRepository interface {
	Counts(ctx context.Context, schoolID, academicYearID string) (*models.DashboardCounts, error)
}

type staffStatusCounter interface {
	CountByStatus(ctx context.Context, schoolID string) ([]models.StatusCount, error)
}

type currentYearFinder interface {
	FindCurrent(ctx context.Context, schoolID string) (*models.AcademicYear, error)
}

type currentTermFinder interface {
	FindCurrent(ctx context.Context, schoolID string) (*models.Term, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, schoolID, userID string) (int, error)
}

// DashboardCacheKey is where a school's dashboard summary is cached.
func DashboardCacheKey(schoolID string) string {
	return "dash:summary:" + schoolID
}

// DashboardService aggregates headline figures for a school.
type DashboardService struct {
	repo          dashboardRepository
	staff         staffStatusCounter
	years         currentYearFinder
	terms         currentTermFinder
	notifications unreadCounter
	cache         *CacheService
	metrics       *MetricsService
	ttl           time.Duration
	logger        *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo dashboardRepository, staff staffStatusCounter, years currentYearFinder, terms currentTermFinder, notifications unreadCounter, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{repo: repo, staff: staff, years: years, terms: terms, notifications: notifications, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// Summary returns the school summary and whether it came from cache.
// Unread notifications are per caller and never cached.
func (s *DashboardService) Summary(ctx context.Context, scope models.TenantScope, userID string) (*models.DashboardSummary, bool, error) {
	if err := requireScope(scope); err != nil {
		return nil, false, err
	}

	var summary models.DashboardSummary
	key := DashboardCacheKey(scope.SchoolID)
	hit := s.cache.Get(ctx, key, &summary)
	if !hit {
		built, err := s.build(ctx, scope.SchoolID)
		if err != nil {
			return nil, false, err
		}
		summary = *built
		s.cache.Set(ctx, key, summary, s.ttl)
	}

	unread, err := s.notifications.CountUnread(ctx, scope.SchoolID, userID)
	if err != nil {
		return nil, false, internalError(err, "failed to count unread notifications")
	}
	summary.UnreadNotifications = unread
	return &summary, hit, nil
}

func (s *DashboardService) build(ctx context.Context, schoolID string) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{
		SchoolID:      schoolID,
		StaffByStatus: map[string]int{},
		GeneratedAt:   time.Now().UTC(),
	}

	year, err := s.years.FindCurrent(ctx, schoolID)
	switch {
	case err == nil:
		summary.CurrentAcademicYear = year
	case !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to load current academic year")
	}
	term, err := s.terms.FindCurrent(ctx, schoolID)
	switch {
	case err == nil:
		summary.CurrentTerm = term
	case !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to load current term")
	}

	statuses, err := s.staff.CountByStatus(ctx, schoolID)
	if err != nil {
		return nil, internalError(err, "failed to count staff")
	}
	for _, sc := range statuses {
		summary.StaffByStatus[sc.Status] = sc.Count
		summary.TotalStaff += sc.Count
	}

	yearID := ""
	if year != nil {
		yearID = year.ID
	}
	start := time.Now()
	counts, err := s.repo.Counts(ctx, schoolID, yearID)
	s.metrics.ObserveDBQuery("dashboard_counts", time.Since(start))
	if err != nil {
		return nil, internalError(err, "failed to load dashboard counts")
	}
	summary.Classes = counts.Classes
	summary.Subjects = counts.Subjects
	summary.Departments = counts.Departments
	summary.PaymentsTotal = counts.PaymentsTotal
	summary.PendingPayroll = counts.PendingPayroll
	return summary, nil
}
