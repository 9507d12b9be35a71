package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type departmentRepository interface {
	List(ctx context.Context, schoolID string, filter models.DepartmentFilter) ([]models.Department, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Department, error)
	ExistsByName(ctx context.Context, schoolID, name, excludeID string) (bool, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, schoolID, id string) error
	CountReferences(ctx context.Context, schoolID, id string) (int, int, error)
}

// DepartmentRequest creates or replaces a department.
type DepartmentRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Code        *string `json:"code" validate:"omitempty,max=20"`
	Description *string `json:"description"`
	HeadStaffID *string `json:"head_staff_id"`
}

// DepartmentService handles department orchestration.
type DepartmentService struct {
	repo      departmentRepository
	staff     staffLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(repo departmentRepository, staff staffLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, staff: staff, cache: cache, validator: validate, logger: logger}
}

// List returns departments with pagination.
func (s *DepartmentService) List(ctx context.Context, scope models.TenantScope, filter models.DepartmentFilter) ([]models.Department, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	departments, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list departments")
	}
	return departments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get fetches a department.
func (s *DepartmentService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Department, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	department, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "department")
	}
	return department, nil
}

// Create validates and stores a department.
func (s *DepartmentService) Create(ctx context.Context, scope models.TenantScope, req DepartmentRequest) (*models.Department, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	department := &models.Department{SchoolID: scope.SchoolID}
	if err := s.apply(ctx, department, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, department); err != nil {
		return nil, internalError(err, "failed to create department")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return department, nil
}

// Update modifies a department.
func (s *DepartmentService) Update(ctx context.Context, scope models.TenantScope, id string, req DepartmentRequest) (*models.Department, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	department, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "department")
	}
	if err := s.apply(ctx, department, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, department); err != nil {
		return nil, internalError(err, "failed to update department")
	}
	return department, nil
}

// Delete removes a department no staff or subject references.
func (s *DepartmentService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, scope.SchoolID, id); err != nil {
		return loadError(err, "department")
	}
	staffCount, subjectCount, err := s.repo.CountReferences(ctx, scope.SchoolID, id)
	if err != nil {
		return internalError(err, "failed to check department references")
	}
	if staffCount > 0 || subjectCount > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "department is still referenced by staff or subjects")
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return deleteError(err, "department")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return nil
}

func (s *DepartmentService) apply(ctx context.Context, department *models.Department, req DepartmentRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid department payload")
	}

	headID := optionalString(req.HeadStaffID)
	if headID != nil {
		if _, err := s.staff.FindByID(ctx, department.SchoolID, *headID); err != nil {
			return loadError(err, "head of department")
		}
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, department.SchoolID, name, excludeID)
	if err != nil {
		return internalError(err, "failed to check department name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "department name already exists")
	}

	department.Name = name
	department.Code = optionalString(req.Code)
	department.Description = optionalString(req.Description)
	department.HeadStaffID = headID
	return nil
}
