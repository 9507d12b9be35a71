package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

type communicationService interface {
	List(ctx context.Context, scope models.TenantScope, filter models.CommunicationFilter) ([]models.CommunicationLog, *models.Pagination, error)
	Get(ctx context.Context, scope models.TenantScope, id string) (*models.CommunicationLog, error)
	SendEmail(ctx context.Context, scope models.TenantScope, actor service.Actor, req service.EmailRequest) (*models.CommunicationLog, error)
	SendSMS(ctx context.Context, scope models.TenantScope, actor service.Actor, req service.SMSRequest) (*models.CommunicationLog, error)
}

// CommunicationHandler exposes outbound email and SMS endpoints.
type CommunicationHandler struct {
	service communicationService
}

// NewCommunicationHandler constructs a communication handler.
func NewCommunicationHandler(svc communicationService) *CommunicationHandler {
	return &CommunicationHandler{service: svc}
}

// List godoc
// @Summary List communication logs
// @Tags Communications
// @Produce json
// @Param channel query string false "EMAIL or SMS"
// @Param status query string false "queued, sent or failed"
// @Success 200 {object} response.Envelope
// @Router /communications [get]
func (h *CommunicationHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter := models.CommunicationFilter{
		Channel:   models.CommunicationChannel(c.Query("channel")),
		Status:    models.CommunicationStatus(c.Query("status")),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	logs, pagination, err := h.service.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// Get godoc
// @Summary Get communication log
// @Tags Communications
// @Produce json
// @Param id path string true "Log ID"
// @Success 200 {object} response.Envelope
// @Router /communications/{id} [get]
func (h *CommunicationHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	entry, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// SendEmail godoc
// @Summary Queue an email
// @Tags Communications
// @Accept json
// @Produce json
// @Param payload body service.EmailRequest true "Email payload"
// @Success 202 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /communications/email [post]
func (h *CommunicationHandler) SendEmail(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req service.EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.service.SendEmail(c.Request.Context(), scope, actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, entry)
}

// SendSMS godoc
// @Summary Queue an SMS
// @Tags Communications
// @Accept json
// @Produce json
// @Param payload body service.SMSRequest true "SMS payload"
// @Success 202 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /communications/sms [post]
func (h *CommunicationHandler) SendSMS(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req service.SMSRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.service.SendSMS(c.Request.Context(), scope, actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, entry)
}
