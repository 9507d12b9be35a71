package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type tenantRepository interface {
	List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, int, error)
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	ExistsBySlug(ctx context.Context, slug, excludeID string) (bool, error)
	Create(ctx context.Context, tenant *models.Tenant) error
	Update(ctx context.Context, tenant *models.Tenant) error
	Delete(ctx context.Context, id string) error
	CountSchools(ctx context.Context, id string) (int, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// CreateTenantRequest is the payload for registering a tenant.
type CreateTenantRequest struct {
	Name   string              `json:"name" validate:"required,max=150"`
	Slug   string              `json:"slug" validate:"required,max=64,slug"`
	Domain *string             `json:"domain" validate:"omitempty,fqdn"`
	Status models.TenantStatus `json:"status" validate:"omitempty,oneof=ACTIVE SUSPENDED"`
}

// UpdateTenantRequest carries partial tenant changes.
type UpdateTenantRequest struct {
	Name   *string              `json:"name" validate:"omitempty,max=150"`
	Slug   *string              `json:"slug" validate:"omitempty,max=64,slug"`
	Domain *string              `json:"domain" validate:"omitempty,fqdn"`
	Status *models.TenantStatus `json:"status" validate:"omitempty,oneof=ACTIVE SUSPENDED"`
}

// Actor identifies who performs a write, for audit rows.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

// TenantService manages tenants.
type TenantService struct {
	repo      tenantRepository
	audit     auditRecorder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTenantService constructs a tenant service.
func NewTenantService(repo tenantRepository, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TenantService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// NewValidator returns a validator with the custom rules used by request payloads.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return currencyPattern.MatchString(fl.Field().String())
	})
	return v
}

// List returns paginated tenants.
func (s *TenantService) List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, *models.Pagination, error) {
	tenants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list tenants")
	}
	return tenants, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id string) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "tenant")
	}
	return tenant, nil
}

// Create registers a tenant.
func (s *TenantService) Create(ctx context.Context, actor Actor, req CreateTenantRequest) (*models.Tenant, error) {
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid tenant payload")
	}
	if err := s.ensureSlugFree(ctx, req.Slug, ""); err != nil {
		return nil, err
	}

	tenant := &models.Tenant{
		Name:   strings.TrimSpace(req.Name),
		Slug:   req.Slug,
		Domain: optionalString(req.Domain),
		Status: req.Status,
	}
	if tenant.Status == "" {
		tenant.Status = models.TenantStatusActive
	}
	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, internalError(err, "failed to create tenant")
	}
	s.record(ctx, actor, models.AuditActionTenantCreate, tenant.ID, nil, tenant)
	return tenant, nil
}

// Update applies partial changes to a tenant.
func (s *TenantService) Update(ctx context.Context, actor Actor, id string, req UpdateTenantRequest) (*models.Tenant, error) {
	if req.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*req.Slug))
		req.Slug = &slug
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid tenant payload")
	}

	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "tenant")
	}
	before := *tenant

	if req.Slug != nil && *req.Slug != tenant.Slug {
		if err := s.ensureSlugFree(ctx, *req.Slug, id); err != nil {
			return nil, err
		}
		tenant.Slug = *req.Slug
	}
	if req.Name != nil {
		tenant.Name = strings.TrimSpace(*req.Name)
	}
	if req.Domain != nil {
		tenant.Domain = optionalString(req.Domain)
	}
	if req.Status != nil {
		tenant.Status = *req.Status
	}

	if err := s.repo.Update(ctx, tenant); err != nil {
		return nil, internalError(err, "failed to update tenant")
	}
	s.cache.Delete(ctx, TenantCacheKey(id))
	s.record(ctx, actor, models.AuditActionTenantUpdate, id, &before, tenant)
	return tenant, nil
}

// Delete removes a tenant that owns no schools.
func (s *TenantService) Delete(ctx context.Context, actor Actor, id string) error {
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return loadError(err, "tenant")
	}
	count, err := s.repo.CountSchools(ctx, id)
	if err != nil {
		return internalError(err, "failed to check tenant schools")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "tenant still has schools")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return deleteError(err, "tenant")
	}
	s.cache.Delete(ctx, TenantCacheKey(id), FirstSchoolCacheKey(id))
	s.record(ctx, actor, models.AuditActionTenantDelete, id, tenant, nil)
	return nil
}

func (s *TenantService) ensureSlugFree(ctx context.Context, slug, excludeID string) error {
	exists, err := s.repo.ExistsBySlug(ctx, slug, excludeID)
	if err != nil {
		return internalError(err, "failed to check tenant slug")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "tenant slug already in use")
	}
	return nil
}

func (s *TenantService) record(ctx context.Context, actor Actor, action, tenantID string, before, after *models.Tenant) {
	var old, updated interface{}
	if before != nil {
		old = before
	}
	if after != nil {
		updated = after
	}
	recordAudit(ctx, s.audit, s.logger, actor, "", action, "tenant", tenantID, old, updated)
}
