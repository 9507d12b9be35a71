package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/middleware"
	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	"github.com/noah-isme/edutenant-api/pkg/export"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

type paymentService interface {
	List(ctx context.Context, scope models.TenantScope, filter models.PaymentFilter) (*service.PaymentList, error)
	Get(ctx context.Context, scope models.TenantScope, id string) (*models.Payment, error)
	Create(ctx context.Context, scope models.TenantScope, actor service.Actor, req service.PaymentRequest) (*models.Payment, error)
	Update(ctx context.Context, scope models.TenantScope, id string, req service.PaymentRequest) (*models.Payment, error)
	Delete(ctx context.Context, scope models.TenantScope, id string) error
	Export(ctx context.Context, scope models.TenantScope, filter models.PaymentFilter, format string) (*export.File, error)
}

// PaymentHandler exposes payment endpoints.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(svc paymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// List godoc
// @Summary List payments
// @Description meta.total_amount sums every payment matching the filter, not only the page.
// @Tags Payments
// @Produce json
// @Param status query string false "pending, completed, failed or refunded"
// @Param method query string false "cash, bank_transfer, card, mobile_money or cheque"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param term_id query string false "Term"
// @Param academic_year_id query string false "Academic year"
// @Param search query string false "Search payer, student reference or reference"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter, err := paymentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "total_amount", result.TotalAmount)
	response.JSON(c, http.StatusOK, result.Payments, result.Pagination, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export payments
// @Tags Payments
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter, err := paymentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Export(c.Request.Context(), scope, filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Body)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	payment, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Create godoc
// @Summary Record payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.PaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req service.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.service.Create(c.Request.Context(), scope, actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Update godoc
// @Summary Update payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.PaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req service.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.service.Update(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Delete godoc
// @Summary Delete payment
// @Tags Payments
// @Param id path string true "Payment ID"
// @Success 204
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func paymentFilter(c *gin.Context) (models.PaymentFilter, error) {
	filter := models.PaymentFilter{
		Status:         models.PaymentStatus(c.Query("status")),
		Method:         models.PaymentMethod(c.Query("method")),
		TermID:         c.Query("term_id"),
		AcademicYearID: c.Query("academic_year_id"),
		Search:         c.Query("search"),
		SortBy:         c.Query("sort"),
		SortOrder:      c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	var err error
	if filter.From, err = dateQuery(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = dateQuery(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}
