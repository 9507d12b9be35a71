package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, schoolID, code, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, schoolID, id string) error
}

type departmentLookup interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Department, error)
}

// SubjectRequest creates or replaces a subject.
type SubjectRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Code         string  `json:"code" validate:"required,max=20"`
	Description  *string `json:"description"`
	DepartmentID *string `json:"department_id"`
}

// SubjectService handles subject orchestration.
type SubjectService struct {
	repo        subjectRepository
	departments departmentLookup
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, departments departmentLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, departments: departments, cache: cache, validator: validate, logger: logger}
}

// List returns subjects with pagination.
func (s *SubjectService) List(ctx context.Context, scope models.TenantScope, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	subjects, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list subjects")
	}
	return subjects, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get fetches a subject.
func (s *SubjectService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Subject, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	subject, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "subject")
	}
	return subject, nil
}

// Create validates and stores a subject.
func (s *SubjectService) Create(ctx context.Context, scope models.TenantScope, req SubjectRequest) (*models.Subject, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	subject := &models.Subject{SchoolID: scope.SchoolID}
	if err := s.apply(ctx, subject, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, internalError(err, "failed to create subject")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return subject, nil
}

// Update modifies a subject.
func (s *SubjectService) Update(ctx context.Context, scope models.TenantScope, id string, req SubjectRequest) (*models.Subject, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	subject, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "subject")
	}
	if err := s.apply(ctx, subject, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, internalError(err, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a subject.
func (s *SubjectService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, scope.SchoolID, id); err != nil {
		return loadError(err, "subject")
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return deleteError(err, "subject")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return nil
}

func (s *SubjectService) apply(ctx context.Context, subject *models.Subject, req SubjectRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid subject payload")
	}

	departmentID := optionalString(req.DepartmentID)
	if departmentID != nil {
		if _, err := s.departments.FindByID(ctx, subject.SchoolID, *departmentID); err != nil {
			return loadError(err, "department")
		}
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repo.ExistsByCode(ctx, subject.SchoolID, code, excludeID)
	if err != nil {
		return internalError(err, "failed to check subject code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "subject code already exists")
	}

	subject.Name = strings.TrimSpace(req.Name)
	subject.Code = code
	subject.Description = optionalString(req.Description)
	subject.DepartmentID = departmentID
	return nil
}
