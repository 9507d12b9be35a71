package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	FirstByTenant(ctx context.Context, tenantID string) (*models.School, error)
	ExistsByCode(ctx context.Context, tenantID, code, excludeID string) (bool, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	Delete(ctx context.Context, id string) error
	CountDependents(ctx context.Context, id string) (int, error)
}

// SchoolRequest is the payload for creating or replacing a school.
type SchoolRequest struct {
	Name    string  `json:"name" validate:"required,max=150"`
	Code    string  `json:"code" validate:"required,max=32,alphanum"`
	Address *string `json:"address" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Email   *string `json:"email" validate:"omitempty,email"`
}

// SchoolService manages the schools of a tenant.
type SchoolService struct {
	repo      schoolRepository
	tenants   tenantRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs a school service.
func NewSchoolService(repo schoolRepository, tenants tenantRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, tenants: tenants, cache: cache, validator: validate, logger: logger}
}

// List returns the schools of a tenant.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	if _, err := s.tenants.FindByID(ctx, filter.TenantID); err != nil {
		return nil, nil, loadError(err, "tenant")
	}
	schools, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list schools")
	}
	return schools, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a school by ID.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "school")
	}
	return school, nil
}

// Create adds a school to a tenant.
func (s *SchoolService) Create(ctx context.Context, tenantID string, req SchoolRequest) (*models.School, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid school payload")
	}
	if _, err := s.tenants.FindByID(ctx, tenantID); err != nil {
		return nil, loadError(err, "tenant")
	}
	if err := s.ensureCodeFree(ctx, tenantID, req.Code, ""); err != nil {
		return nil, err
	}

	school := &models.School{TenantID: tenantID}
	applySchool(school, req)
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, internalError(err, "failed to create school")
	}
	s.cache.Delete(ctx, FirstSchoolCacheKey(tenantID))
	return school, nil
}

// Update replaces the mutable fields of a school.
func (s *SchoolService) Update(ctx context.Context, id string, req SchoolRequest) (*models.School, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid school payload")
	}
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "school")
	}
	if req.Code != school.Code {
		if err := s.ensureCodeFree(ctx, school.TenantID, req.Code, id); err != nil {
			return nil, err
		}
	}
	applySchool(school, req)
	if err := s.repo.Update(ctx, school); err != nil {
		return nil, internalError(err, "failed to update school")
	}
	return school, nil
}

// Delete removes a school that holds no data.
func (s *SchoolService) Delete(ctx context.Context, id string) error {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return loadError(err, "school")
	}
	count, err := s.repo.CountDependents(ctx, id)
	if err != nil {
		return internalError(err, "failed to check school dependents")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "school still holds data")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return deleteError(err, "school")
	}
	s.cache.Delete(ctx, FirstSchoolCacheKey(school.TenantID))
	s.cache.Invalidate(ctx, "settings:"+id)
	return nil
}

func (s *SchoolService) ensureCodeFree(ctx context.Context, tenantID, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, tenantID, code, excludeID)
	if err != nil {
		return internalError(err, "failed to check school code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "school code already in use")
	}
	return nil
}

func applySchool(school *models.School, req SchoolRequest) {
	school.Name = strings.TrimSpace(req.Name)
	school.Code = req.Code
	school.Address = optionalString(req.Address)
	school.Phone = optionalString(req.Phone)
	school.Email = optionalString(req.Email)
}
