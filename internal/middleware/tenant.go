package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/logger"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

// ContextScopeKey is the gin context key storing the resolved models.TenantScope.
const ContextScopeKey = "tenantScope"

// ScopeResolver picks the tenant and school for a request.
type ScopeResolver interface {
	Resolve(ctx context.Context, req service.ScopeRequest) (*models.TenantScope, error)
}

// TenantHeaders names the request headers carrying explicit tenant and school IDs.
type TenantHeaders struct {
	Tenant string
	School string
}

// Tenant resolves the request scope and aborts when none can be found.
func Tenant(resolver ScopeResolver, headers TenantHeaders) gin.HandlerFunc {
	if headers.Tenant == "" {
		headers.Tenant = "X-Tenant-ID"
	}
	if headers.School == "" {
		headers.School = "X-School-ID"
	}

	return func(c *gin.Context) {
		schoolID := strings.TrimSpace(c.Query("school_id"))
		if schoolID == "" {
			schoolID = strings.TrimSpace(c.GetHeader(headers.School))
		}

		scope, err := resolver.Resolve(c.Request.Context(), service.ScopeRequest{
			Claims:   ClaimsFromContext(c),
			TenantID: strings.TrimSpace(c.GetHeader(headers.Tenant)),
			SchoolID: schoolID,
		})
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextScopeKey, *scope)
		c.Set(logger.TenantIDKey, scope.TenantID)
		c.Set(logger.SchoolIDKey, scope.SchoolID)
		c.Next()
	}
}

// ScopeFromContext returns the scope stored by Tenant.
func ScopeFromContext(c *gin.Context) (models.TenantScope, error) {
	value, exists := c.Get(ContextScopeKey)
	if !exists {
		return models.TenantScope{}, appErrors.ErrTenantRequired
	}
	scope, ok := value.(models.TenantScope)
	if !ok || !scope.Valid() {
		return models.TenantScope{}, appErrors.ErrTenantRequired
	}
	return scope, nil
}
