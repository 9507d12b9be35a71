package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

// FirstSchoolCacheKey is the cache key holding a tenant's first school ID.
func FirstSchoolCacheKey(tenantID string) string {
	return "tenant:first-school:" + tenantID
}

// TenantCacheKey is the cache key holding a tenant record.
func TenantCacheKey(tenantID string) string {
	return "tenant:record:" + tenantID
}

// ScopeRequest carries everything a request offers for picking its tenant and school.
type ScopeRequest struct {
	Claims   *models.JWTClaims
	TenantID string
	SchoolID string
}

// TenantResolver turns request hints into an explicit TenantScope.
type TenantResolver struct {
	tenants tenantRepository
	schools schoolRepository
	cache   *CacheService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewTenantResolver constructs a resolver.
func NewTenantResolver(tenants tenantRepository, schools schoolRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *TenantResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantResolver{tenants: tenants, schools: schools, cache: cache, ttl: ttl, logger: logger}
}

// Resolve picks the school for a request. The school bound to the caller's token wins,
// then the first school of a known tenant, then an explicitly requested school.
func (r *TenantResolver) Resolve(ctx context.Context, req ScopeRequest) (*models.TenantScope, error) {
	superAdmin := req.Claims != nil && req.Claims.Role == models.RoleSuperAdmin

	tenantID := req.TenantID
	if req.Claims != nil && req.Claims.TenantID != "" {
		if tenantID != "" && tenantID != req.Claims.TenantID && !superAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "tenant does not match the authenticated user")
		}
		if !superAdmin || tenantID == "" {
			tenantID = req.Claims.TenantID
		}
	}

	var scope *models.TenantScope
	switch {
	case req.Claims != nil && req.Claims.SchoolID != "" && !superAdmin:
		if req.SchoolID != "" && req.SchoolID != req.Claims.SchoolID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "school is outside the authenticated user's scope")
		}
		scope = &models.TenantScope{TenantID: tenantID, SchoolID: req.Claims.SchoolID, Source: models.ScopeSourceClaims}
	case tenantID != "" && req.SchoolID == "":
		schoolID, err := r.firstSchool(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		scope = &models.TenantScope{TenantID: tenantID, SchoolID: schoolID, Source: models.ScopeSourceFirstSchool}
	case req.SchoolID != "":
		school, err := r.schools.FindByID(ctx, req.SchoolID)
		if err != nil {
			return nil, loadError(err, "school")
		}
		if tenantID != "" && school.TenantID != tenantID && !superAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "school does not belong to tenant")
		}
		scope = &models.TenantScope{TenantID: school.TenantID, SchoolID: school.ID, Source: models.ScopeSourceExplicit}
	default:
		return nil, appErrors.ErrTenantRequired
	}

	if scope.TenantID == "" {
		school, err := r.schools.FindByID(ctx, scope.SchoolID)
		if err != nil {
			return nil, loadError(err, "school")
		}
		scope.TenantID = school.TenantID
	}

	tenant, err := r.tenant(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Status == models.TenantStatusSuspended && !superAdmin {
		return nil, appErrors.ErrTenantSuspended
	}
	return scope, nil
}

func (r *TenantResolver) firstSchool(ctx context.Context, tenantID string) (string, error) {
	var cached string
	if r.cache.Get(ctx, FirstSchoolCacheKey(tenantID), &cached) && cached != "" {
		return cached, nil
	}
	school, err := r.schools.FirstByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrTenantRequired, "tenant has no schools")
		}
		return "", internalError(err, "failed to resolve tenant school")
	}
	r.cache.Set(ctx, FirstSchoolCacheKey(tenantID), school.ID, r.ttl)
	return school.ID, nil
}

func (r *TenantResolver) tenant(ctx context.Context, id string) (*models.Tenant, error) {
	var cached models.Tenant
	if r.cache.Get(ctx, TenantCacheKey(id), &cached) && cached.ID != "" {
		return &cached, nil
	}
	tenant, err := r.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "tenant")
	}
	r.cache.Set(ctx, TenantCacheKey(id), tenant, r.ttl)
	return tenant, nil
}
