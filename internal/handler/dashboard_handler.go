package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/middleware"
	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, scope models.TenantScope, userID string) (*models.DashboardSummary, bool, error)
}

// DashboardHandler serves the school summary.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary School dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var userID string
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}

	summary, hit, err := h.service.Summary(c.Request.Context(), scope, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
