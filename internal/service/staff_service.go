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

type staffRepository interface {
	List(ctx context.Context, schoolID string, filter models.StaffFilter) ([]models.Staff, int, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Staff, error)
	ExistsByEmail(ctx context.Context, schoolID, email, excludeID string) (bool, error)
	Create(ctx context.Context, member *models.Staff) error
	Update(ctx context.Context, member *models.Staff) error
	UpdateStatus(ctx context.Context, schoolID, id string, status models.StaffStatus) error
	Delete(ctx context.Context, schoolID, id string) error
	CountPayrolls(ctx context.Context, schoolID, id string) (int, error)
}

// StaffRequest creates or replaces a staff member.
type StaffRequest struct {
	EmployeeNumber *string               `json:"employee_number" validate:"omitempty,max=50"`
	FirstName      string                `json:"first_name" validate:"required,max=100"`
	LastName       string                `json:"last_name" validate:"required,max=100"`
	Email          string                `json:"email" validate:"required,email"`
	Phone          *string               `json:"phone" validate:"omitempty,max=30"`
	Position       string                `json:"position" validate:"required,max=100"`
	DepartmentID   *string               `json:"department_id"`
	EmploymentType models.EmploymentType `json:"employment_type" validate:"omitempty,oneof=full_time part_time contract"`
	HireDate       *time.Time            `json:"hire_date"`
	Salary         float64               `json:"salary" validate:"gte=0"`
	Status         models.StaffStatus    `json:"status" validate:"omitempty,oneof=active inactive on_leave terminated"`
}

// StaffDeleteResult reports how a staff member was removed.
type StaffDeleteResult struct {
	ID          string `json:"id"`
	SoftDeleted bool   `json:"soft_deleted"`
}

// StaffService coordinates staff workflows.
type StaffService struct {
	repo        staffRepository
	departments departmentLookup
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStaffService constructs a StaffService.
func NewStaffService(repo staffRepository, departments departmentLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{repo: repo, departments: departments, cache: cache, validator: validate, logger: logger}
}

// List returns staff with pagination.
func (s *StaffService) List(ctx context.Context, scope models.TenantScope, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	members, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list staff")
	}
	return members, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get fetches a staff member.
func (s *StaffService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Staff, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	member, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "staff")
	}
	return member, nil
}

// Create validates and stores a staff member.
func (s *StaffService) Create(ctx context.Context, scope models.TenantScope, req StaffRequest) (*models.Staff, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	member := &models.Staff{SchoolID: scope.SchoolID}
	if err := s.apply(ctx, member, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, internalError(err, "failed to create staff")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return member, nil
}

// Update replaces a staff member's profile.
func (s *StaffService) Update(ctx context.Context, scope models.TenantScope, id string, req StaffRequest) (*models.Staff, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	member, err := s.repo.FindByID(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "staff")
	}
	if err := s.apply(ctx, member, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, member); err != nil {
		return nil, internalError(err, "failed to update staff")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return member, nil
}

// Delete terminates staff with payroll history and hard deletes the rest.
func (s *StaffService) Delete(ctx context.Context, scope models.TenantScope, id string) (*StaffDeleteResult, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, scope.SchoolID, id); err != nil {
		return nil, loadError(err, "staff")
	}
	payrolls, err := s.repo.CountPayrolls(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, internalError(err, "failed to check staff payroll")
	}

	result := &StaffDeleteResult{ID: id}
	if payrolls > 0 {
		if err := s.repo.UpdateStatus(ctx, scope.SchoolID, id, models.StaffStatusTerminated); err != nil {
			return nil, internalError(err, "failed to terminate staff")
		}
		result.SoftDeleted = true
	} else if err := s.repo.Delete(ctx, scope.SchoolID, id); err != nil {
		return nil, deleteError(err, "staff")
	}
	s.cache.Delete(ctx, DashboardCacheKey(scope.SchoolID))
	return result, nil
}

func (s *StaffService) apply(ctx context.Context, member *models.Staff, req StaffRequest, excludeID string) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid staff payload")
	}

	departmentID := optionalString(req.DepartmentID)
	if departmentID != nil {
		if _, err := s.departments.FindByID(ctx, member.SchoolID, *departmentID); err != nil {
			return loadError(err, "department")
		}
	}

	exists, err := s.repo.ExistsByEmail(ctx, member.SchoolID, req.Email, excludeID)
	if err != nil {
		return internalError(err, "failed to check staff email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "staff email already exists")
	}

	member.EmployeeNumber = optionalString(req.EmployeeNumber)
	member.FirstName = strings.TrimSpace(req.FirstName)
	member.LastName = strings.TrimSpace(req.LastName)
	member.Email = req.Email
	member.Phone = optionalString(req.Phone)
	member.Position = strings.TrimSpace(req.Position)
	member.DepartmentID = departmentID
	member.HireDate = req.HireDate
	member.Salary = req.Salary

	member.EmploymentType = req.EmploymentType
	if member.EmploymentType == "" {
		member.EmploymentType = models.EmploymentFullTime
	}
	if req.Status != "" {
		member.Status = req.Status
	} else if member.Status == "" {
		member.Status = models.StaffStatusActive
	}
	return nil
}
