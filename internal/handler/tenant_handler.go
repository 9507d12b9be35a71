package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

type tenantService interface {
	List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Tenant, error)
	Create(ctx context.Context, actor service.Actor, req service.CreateTenantRequest) (*models.Tenant, error)
	Update(ctx context.Context, actor service.Actor, id string, req service.UpdateTenantRequest) (*models.Tenant, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
}

type schoolService interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, tenantID string, req service.SchoolRequest) (*models.School, error)
	Update(ctx context.Context, id string, req service.SchoolRequest) (*models.School, error)
	Delete(ctx context.Context, id string) error
}

// TenantHandler exposes tenant and school administration endpoints.
type TenantHandler struct {
	tenants tenantService
	schools schoolService
}

// NewTenantHandler constructs a tenant handler.
func NewTenantHandler(tenants tenantService, schools schoolService) *TenantHandler {
	return &TenantHandler{tenants: tenants, schools: schools}
}

// List godoc
// @Summary List tenants
// @Description Tenant admins only see their own tenant.
// @Tags Tenants
// @Produce json
// @Param search query string false "Search by name or slug"
// @Param status query string false "ACTIVE or SUSPENDED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.TenantFilter{
		Search:    c.Query("search"),
		Status:    models.TenantStatus(c.Query("status")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	if claims.Role != models.RoleSuperAdmin {
		if claims.TenantID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "tenant is outside the authenticated user's scope"))
			return
		}
		filter.ID = claims.TenantID
	}

	tenants, pagination, err := h.tenants.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenants, pagination)
}

// Get godoc
// @Summary Get tenant
// @Tags Tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tenants/{id} [get]
func (h *TenantHandler) Get(c *gin.Context) {
	if !h.allowedTenant(c, c.Param("id")) {
		return
	}
	tenant, err := h.tenants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}

// Create godoc
// @Summary Create tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Param payload body service.CreateTenantRequest true "Tenant payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	var req service.CreateTenantRequest
	if !bindJSON(c, &req) {
		return
	}
	tenant, err := h.tenants.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tenant)
}

// Update godoc
// @Summary Update tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param payload body service.UpdateTenantRequest true "Tenant payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tenants/{id} [put]
func (h *TenantHandler) Update(c *gin.Context) {
	if !h.allowedTenant(c, c.Param("id")) {
		return
	}
	var req service.UpdateTenantRequest
	if !bindJSON(c, &req) {
		return
	}
	// Only superadmins suspend or reactivate tenants.
	if req.Status != nil && claimsFromContext(c).Role != models.RoleSuperAdmin {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only superadmins can change tenant status"))
		return
	}
	tenant, err := h.tenants.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}

// Delete godoc
// @Summary Delete tenant
// @Tags Tenants
// @Param id path string true "Tenant ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /tenants/{id} [delete]
func (h *TenantHandler) Delete(c *gin.Context) {
	if err := h.tenants.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListSchools godoc
// @Summary List the schools of a tenant
// @Tags Schools
// @Produce json
// @Param id path string true "Tenant ID"
// @Param search query string false "Search by name or code"
// @Success 200 {object} response.Envelope
// @Router /tenants/{id}/schools [get]
func (h *TenantHandler) ListSchools(c *gin.Context) {
	tenantID := c.Param("id")
	if !h.allowedTenant(c, tenantID) {
		return
	}
	filter := models.SchoolFilter{
		TenantID:  tenantID,
		Search:    c.Query("search"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	schools, pagination, err := h.schools.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, pagination)
}

// CreateSchool godoc
// @Summary Add a school to a tenant
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param payload body service.SchoolRequest true "School payload"
// @Success 201 {object} response.Envelope
// @Router /tenants/{id}/schools [post]
func (h *TenantHandler) CreateSchool(c *gin.Context) {
	tenantID := c.Param("id")
	if !h.allowedTenant(c, tenantID) {
		return
	}
	var req service.SchoolRequest
	if !bindJSON(c, &req) {
		return
	}
	school, err := h.schools.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// GetSchool godoc
// @Summary Get school
// @Tags Schools
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [get]
func (h *TenantHandler) GetSchool(c *gin.Context) {
	school, ok := h.loadSchool(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// UpdateSchool godoc
// @Summary Update school
// @Tags Schools
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param payload body service.SchoolRequest true "School payload"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [put]
func (h *TenantHandler) UpdateSchool(c *gin.Context) {
	if _, ok := h.loadSchool(c); !ok {
		return
	}
	var req service.SchoolRequest
	if !bindJSON(c, &req) {
		return
	}
	school, err := h.schools.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// DeleteSchool godoc
// @Summary Delete school
// @Tags Schools
// @Param id path string true "School ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /schools/{id} [delete]
func (h *TenantHandler) DeleteSchool(c *gin.Context) {
	if _, ok := h.loadSchool(c); !ok {
		return
	}
	if err := h.schools.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *TenantHandler) loadSchool(c *gin.Context) (*models.School, bool) {
	school, err := h.schools.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !h.allowedTenant(c, school.TenantID) {
		return nil, false
	}
	return school, true
}

// allowedTenant lets tenant admins manage only their own tenant.
func (h *TenantHandler) allowedTenant(c *gin.Context, tenantID string) bool {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return false
	}
	if claims.Role == models.RoleSuperAdmin || claims.TenantID == tenantID {
		return true
	}
	response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "tenant is outside the authenticated user's scope"))
	return false
}
