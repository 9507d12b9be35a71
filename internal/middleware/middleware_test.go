package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/logger"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := v[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

type resolverStub struct {
	last  service.ScopeRequest
	scope *models.TenantScope
	err   error
}

func (r *resolverStub) Resolve(ctx context.Context, req service.ScopeRequest) (*models.TenantScope, error) {
	r.last = req
	return r.scope, r.err
}

type observerStub struct {
	path   string
	status int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.path = path
	o.status = status
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

var tokens = validatorStub{
	"admin-token":  {UserID: "u1", Role: models.RoleAdmin, TenantID: "t1", SchoolID: "s1"},
	"bursar-token": {UserID: "u2", Role: models.RoleBursar, TenantID: "t1", SchoolID: "s1"},
}

func serve(router *gin.Engine, method, path, token string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	router := gin.New()
	router.GET("/me", JWT(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, ClaimsFromContext(c).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "nope", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", "", map[string]string{"Authorization": "Basic abc"}).Code)

	rec := serve(router, http.MethodGet, "/me", "admin-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	router := gin.New()
	router.GET("/", OptionalJWT(tokens), func(c *gin.Context) {
		if ClaimsFromContext(c) == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, "known")
	})

	assert.Equal(t, "anonymous", serve(router, http.MethodGet, "/", "nope", nil).Body.String())
	assert.Equal(t, "known", serve(router, http.MethodGet, "/", "admin-token", nil).Body.String())
}

func TestRequireRoles(t *testing.T) {
	router := gin.New()
	router.GET("/payroll", JWT(tokens), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/payroll", "admin-token", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/payroll", "bursar-token", nil).Code)

	bare := gin.New()
	bare.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusUnauthorized, serve(bare, http.MethodGet, "/", "", nil).Code)
}

func TestTenantMiddlewareStoresScope(t *testing.T) {
	resolver := &resolverStub{scope: &models.TenantScope{TenantID: "t1", SchoolID: "s9", Source: models.ScopeSourceExplicit}}
	router := gin.New()
	router.GET("/classes", OptionalJWT(tokens), Tenant(resolver, TenantHeaders{}), func(c *gin.Context) {
		scope, err := ScopeFromContext(c)
		require.NoError(t, err)
		assert.Equal(t, "t1", c.GetString(logger.TenantIDKey))
		c.String(http.StatusOK, scope.SchoolID)
	})

	rec := serve(router, http.MethodGet, "/classes?school_id=s9", "admin-token", map[string]string{"X-Tenant-ID": "t1", "X-School-ID": "ignored"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s9", rec.Body.String())
	assert.Equal(t, "s9", resolver.last.SchoolID)
	assert.Equal(t, "t1", resolver.last.TenantID)
	require.NotNil(t, resolver.last.Claims)
	assert.Equal(t, "u1", resolver.last.Claims.UserID)

	serve(router, http.MethodGet, "/classes", "", map[string]string{"X-School-ID": "s3"})
	assert.Equal(t, "s3", resolver.last.SchoolID)
	assert.Nil(t, resolver.last.Claims)
}

func TestTenantMiddlewareRejects(t *testing.T) {
	resolver := &resolverStub{err: appErrors.ErrTenantRequired}
	router := gin.New()
	router.GET("/", Tenant(resolver, TenantHeaders{Tenant: "X-Org", School: "X-Campus"}), func(c *gin.Context) {
		t.Fatal("handler must not run")
	})

	rec := serve(router, http.MethodGet, "/", "", map[string]string{"X-Org": "t1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "TENANT_REQUIRED")
	assert.Equal(t, "t1", resolver.last.TenantID)
}

func TestScopeFromContextMissing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := ScopeFromContext(c)
	assert.True(t, errors.Is(err, appErrors.ErrTenantRequired))
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/staff/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodGet, "/staff/42", "", nil)
	assert.Equal(t, "/staff/:id", observer.path)
	assert.Equal(t, http.StatusOK, observer.status)

	serve(router, http.MethodGet, "/missing", "", nil)
	assert.Equal(t, "unmatched", observer.path)
	assert.Equal(t, http.StatusNotFound, observer.status)
}

func TestAuditMiddlewareSkipsFailures(t *testing.T) {
	writer := &auditStub{}
	resolver := &resolverStub{scope: &models.TenantScope{TenantID: "t1", SchoolID: "s1"}}
	router := gin.New()
	router.DELETE("/staff/:id", JWT(tokens), Tenant(resolver, TenantHeaders{}), Audit(writer, nil, "STAFF_DELETE", "staff"), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	})

	serve(router, http.MethodDelete, "/staff/bad", "admin-token", nil)
	assert.Empty(t, writer.logs)

	serve(router, http.MethodDelete, "/staff/st1", "admin-token", nil)
	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, "STAFF_DELETE", entry.Action)
	assert.Equal(t, "st1", *entry.ResourceID)
	assert.Equal(t, "s1", *entry.SchoolID)
	assert.Equal(t, "u1", *entry.UserID)
}

func TestResponseMeta(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))

	SetCacheHit(c, true)
	SetMeta(c, "total_amount", 120.5)
	meta := ExtractMeta(c)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, 120.5, meta["total_amount"])
}
