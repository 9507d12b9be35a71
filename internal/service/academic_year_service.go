package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type academicYearRepository interface {
	List(ctx context.Context, schoolID string, filter models.AcademicYearFilter) ([]models.AcademicYear, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.AcademicYear, error)
	FindCurrent(ctx context.Context, schoolID string) (*models.AcademicYear, error)
	ExistsByName(ctx context.Context, schoolID, name, excludeID string) (bool, error)
	Create(ctx context.Context, year *models.AcademicYear) error
	Update(ctx context.Context, year *models.AcademicYear) error
	Delete(ctx context.Context, schoolID, id string) error
	CountDependents(ctx context.Context, schoolID, id string) (int, error)
}

// AcademicYearRequest creates or replaces an academic year.
type AcademicYearRequest struct {
	Name      string    `json:"name" validate:"required,max=50"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsCurrent bool      `json:"is_current"`
}

// AcademicYearService orchestrates academic year workflows.
type AcademicYearService struct {
	repo      academicYearRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAcademicYearService creates an academic year service.
func NewAcademicYearService(repo academicYearRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AcademicYearService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicYearService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated academic years.
func (s *AcademicYearService) List(ctx context.Context, scope models.TenantScope, filter models.AcademicYearFilter) ([]models.AcademicYear, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	years, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list academic years")
	}
	return years, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns an academic year by ID.
func (s *AcademicYearService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.AcademicYear, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	year, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "academic year")
	}
	return year, nil
}

// Current returns the school's current academic year.
func (s *AcademicYearService) Current(ctx context.Context, scope models.TenantScope) (*models.AcademicYear, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	year, err := s.repo.FindCurrent(ctx, scope.SchoolID)
	if err != nil {
		return nil, loadError(err, "current academic year")
	}
	return year, nil
}

// Create adds an academic year.
func (s *AcademicYearService) Create(ctx context.Context, scope models.TenantScope, req AcademicYearRequest) (*models.AcademicYear, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, scope.SchoolID, req.Name, ""); err != nil {
		return nil, err
	}

	year := &models.AcademicYear{
		SchoolID:  scope.SchoolID,
		Name:      strings.TrimSpace(req.Name),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsCurrent: req.IsCurrent,
	}
	if err := s.repo.Create(ctx, year); err != nil {
		return nil, internalError(err, "failed to create academic year")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return year, nil
}

// Update replaces an academic year.
func (s *AcademicYearService) Update(ctx context.Context, scope models.TenantScope, id string, req AcademicYearRequest) (*models.AcademicYear, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate(req); err != nil {
		return nil, err
	}
	year, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "academic year")
	}
	if err := s.ensureNameFree(ctx, scope.SchoolID, req.Name, id); err != nil {
		return nil, err
	}

	year.Name = strings.TrimSpace(req.Name)
	year.StartDate = req.StartDate
	year.EndDate = req.EndDate
	year.IsCurrent = req.IsCurrent
	if err := s.repo.Update(ctx, year); err != nil {
		return nil, internalError(err, "failed to update academic year")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return year, nil
}

// Delete removes an academic year nothing references.
func (s *AcademicYearService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, scope.SchoolID, id); err != nil {
		return loadError(err, "academic year")
	}
	count, err := s.repo.CountDependents(ctx, scope.SchoolID, id)
	if err != nil {
		return internalError(err, "failed to check academic year dependents")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "academic year is used by terms, classes or payments")
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return deleteError(err, "academic year")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return nil
}

func (s *AcademicYearService) validate(req AcademicYearRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid academic year payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return appErrors.FieldError("end_date", "end_date must be after start_date")
	}
	return nil
}

func (s *AcademicYearService) ensureNameFree(ctx context.Context, schoolID, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, schoolID, strings.TrimSpace(name), excludeID)
	if err != nil {
		return internalError(err, "failed to check academic year name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "academic year name already exists")
	}
	return nil
}
