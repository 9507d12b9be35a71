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

type termRepository interface {
	List(ctx context.Context, schoolID string, filter models.TermFilter) ([]models.Term, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Term, error)
	FindCurrent(ctx context.Context, schoolID string) (*models.Term, error)
	ExistsByName(ctx context.Context, schoolID, academicYearID, name, excludeID string) (bool, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	SetCurrent(ctx context.Context, schoolID, id string) error
	Delete(ctx context.Context, schoolID, id string) error
	CountPayments(ctx context.Context, schoolID, id string) (int, error)
}

// TermRequest creates or replaces a term.
type TermRequest struct {
	AcademicYearID string    `json:"academic_year_id" validate:"required"`
	Name           string    `json:"name" validate:"required,max=50"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
	IsCurrent      bool      `json:"is_current"`
}

// TermService orchestrates term workflows.
type TermService struct {
	repo      termRepository
	years     academicYearRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, years academicYearRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, years: years, cache: cache, validator: validate, logger: logger}
}

// List returns paginated terms.
func (s *TermService) List(ctx context.Context, scope models.TenantScope, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	terms, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list terms")
	}
	return terms, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Term, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	term, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "term")
	}
	return term, nil
}

// Current returns the school's current term.
func (s *TermService) Current(ctx context.Context, scope models.TenantScope) (*models.Term, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	term, err := s.repo.FindCurrent(ctx, scope.SchoolID)
	if err != nil {
		return nil, loadError(err, "current term")
	}
	return term, nil
}

// Create adds a term inside its academic year.
func (s *TermService) Create(ctx context.Context, scope models.TenantScope, req TermRequest) (*models.Term, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if err := s.check(ctx, scope.SchoolID, req, ""); err != nil {
		return nil, err
	}

	term := &models.Term{
		SchoolID:       scope.SchoolID,
		AcademicYearID: req.AcademicYearID,
		Name:           strings.TrimSpace(req.Name),
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, internalError(err, "failed to create term")
	}
	if req.IsCurrent {
		if err := s.repo.SetCurrent(ctx, scope.SchoolID, term.ID); err != nil {
			s.logger.Error("failed to set current term after create", zap.String("term_id", term.ID), zap.Error(err))
			return nil, internalError(err, "failed to set current term")
		}
		term.IsCurrent = true
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return term, nil
}

// Update replaces a term.
func (s *TermService) Update(ctx context.Context, scope models.TenantScope, id string, req TermRequest) (*models.Term, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	term, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "term")
	}
	if err := s.check(ctx, scope.SchoolID, req, id); err != nil {
		return nil, err
	}

	term.AcademicYearID = req.AcademicYearID
	term.Name = strings.TrimSpace(req.Name)
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	if err := s.repo.Update(ctx, term); err != nil {
		return nil, internalError(err, "failed to update term")
	}
	if req.IsCurrent && !term.IsCurrent {
		if err := s.repo.SetCurrent(ctx, scope.SchoolID, term.ID); err != nil {
			return nil, internalError(err, "failed to set current term")
		}
		term.IsCurrent = true
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return term, nil
}

// SetCurrent designates a term as the school's current term.
func (s *TermService) SetCurrent(ctx context.Context, scope models.TenantScope, id string) (*models.Term, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	term, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "term")
	}
	if err := s.repo.SetCurrent(ctx, scope.SchoolID, id); err != nil {
		return nil, internalError(err, "failed to set current term")
	}
	term.IsCurrent = true
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return term, nil
}

// Delete removes a term that is not current and has no payments.
func (s *TermService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	term, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return loadError(err, "term")
	}
	if term.IsCurrent {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot delete the current term")
	}
	count, err := s.repo.CountPayments(ctx, scope.SchoolID, id)
	if err != nil {
		return internalError(err, "failed to check term dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "term has payments recorded against it")
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return deleteError(err, "term")
	}
	return nil
}

func (s *TermService) check(ctx context.Context, schoolID string, req TermRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid term payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return appErrors.FieldError("end_date", "end_date must be after start_date")
	}

	year, err := s.years.FindByID(ctx, schoolID, req.AcademicYearID)
	if err != nil {
		return loadError(err, "academic year")
	}
	if req.StartDate.Before(year.StartDate) || req.EndDate.After(year.EndDate) {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "term dates must fall within the academic year"), map[string]string{
			"start_date": "must not be before " + year.StartDate.Format("2006-01-02"),
			"end_date":   "must not be after " + year.EndDate.Format("2006-01-02"),
		})
	}

	exists, err := s.repo.ExistsByName(ctx, schoolID, req.AcademicYearID, strings.TrimSpace(req.Name), excludeID)
	if err != nil {
		return internalError(err, "failed to check term uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "term name already exists in academic year")
	}
	return nil
}
