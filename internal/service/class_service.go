package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, schoolID string, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Class, error)
	ExistsByNameSection(ctx context.Context, schoolID, name string, section *string, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, schoolID, id string) error
}

type academicYearLookup interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.AcademicYear, error)
}

type staffLookup interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Staff, error)
}

// ClassRequest creates or replaces a class.
type ClassRequest struct {
	Name           string  `json:"name" validate:"required,max=100"`
	GradeLevel     int     `json:"grade_level" validate:"gte=0,lte=20"`
	Section        *string `json:"section" validate:"omitempty,max=20"`
	Capacity       *int    `json:"capacity" validate:"omitempty,gte=0"`
	AcademicYearID *string `json:"academic_year_id"`
	ClassTeacherID *string `json:"class_teacher_id"`
}

// ClassService handles class business logic.
type ClassService struct {
	repo      classRepository
	years     academicYearLookup
	staff     staffLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, years academicYearLookup, staff staffLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, years: years, staff: staff, cache: cache, validator: validate, logger: logger}
}

// List returns paginated classes.
func (s *ClassService) List(ctx context.Context, scope models.TenantScope, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	classes, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list classes")
	}
	return classes, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Class, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	class, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "class")
	}
	return class, nil
}

// Create validates and stores a class.
func (s *ClassService) Create(ctx context.Context, scope models.TenantScope, req ClassRequest) (*models.Class, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	class := &models.Class{SchoolID: scope.SchoolID}
	if err := s.apply(ctx, class, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, internalError(err, "failed to create class")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return class, nil
}

// Update replaces a class.
func (s *ClassService) Update(ctx context.Context, scope models.TenantScope, id string, req ClassRequest) (*models.Class, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	class, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "class")
	}
	if err := s.apply(ctx, class, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, internalError(err, "failed to update class")
	}
	return class, nil
}

// Delete removes a class.
func (s *ClassService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, scope.SchoolID, id); err != nil {
		return loadError(err, "class")
	}
	if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return deleteError(err, "class")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return nil
}

func (s *ClassService) apply(ctx context.Context, class *models.Class, req ClassRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid class payload")
	}

	yearID := optionalString(req.AcademicYearID)
	if yearID != nil {
		if _, err := s.years.FindByID(ctx, class.SchoolID, *yearID); err != nil {
			return loadError(err, "academic year")
		}
	}
	teacherID := optionalString(req.ClassTeacherID)
	if teacherID != nil {
		if _, err := s.staff.FindByID(ctx, class.SchoolID, *teacherID); err != nil {
			return loadError(err, "class teacher")
		}
	}

	name := strings.TrimSpace(req.Name)
	section := optionalString(req.Section)
	exists, err := s.repo.ExistsByNameSection(ctx, class.SchoolID, name, section, excludeID)
	if err != nil {
		return internalError(err, "failed to check class uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "class with this name and section already exists")
	}

	class.Name = name
	class.GradeLevel = req.GradeLevel
	class.Section = section
	class.Capacity = req.Capacity
	class.AcademicYearID = yearID
	class.ClassTeacherID = teacherID
	return nil
}
