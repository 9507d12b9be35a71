package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

// PayrollHandler exposes payroll endpoints.
type PayrollHandler struct {
	service *service.PayrollService
}

// NewPayrollHandler constructs a payroll handler.
func NewPayrollHandler(svc *service.PayrollService) *PayrollHandler {
	return &PayrollHandler{service: svc}
}

// List godoc
// @Summary List payroll
// @Tags Payroll
// @Produce json
// @Param staff_id query string false "Staff member"
// @Param status query string false "draft, approved or paid"
// @Param from query string false "Periods starting on or after (YYYY-MM-DD)"
// @Param to query string false "Periods ending on or before (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /payroll [get]
func (h *PayrollHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter, err := payrollFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, pagination, err := h.service.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Export godoc
// @Summary Export payroll
// @Tags Payroll
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /payroll/export [get]
func (h *PayrollHandler) Export(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter, err := payrollFilter(c)
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
// @Summary Get payroll entry
// @Tags Payroll
// @Produce json
// @Param id path string true "Payroll ID"
// @Success 200 {object} response.Envelope
// @Router /payroll/{id} [get]
func (h *PayrollHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	payroll, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payroll, nil)
}

// Create godoc
// @Summary Create payroll entry
// @Description net_salary is computed from basic_salary, allowances and deductions.
// @Tags Payroll
// @Accept json
// @Produce json
// @Param payload body service.PayrollRequest true "Payroll payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payroll [post]
func (h *PayrollHandler) Create(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req service.PayrollRequest
	if !bindJSON(c, &req) {
		return
	}
	payroll, err := h.service.Create(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payroll)
}

// Update godoc
// @Summary Update payroll entry
// @Tags Payroll
// @Accept json
// @Produce json
// @Param id path string true "Payroll ID"
// @Param payload body service.PayrollRequest true "Payroll payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /payroll/{id} [put]
func (h *PayrollHandler) Update(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req service.PayrollRequest
	if !bindJSON(c, &req) {
		return
	}
	payroll, err := h.service.Update(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payroll, nil)
}

// MarkPaid godoc
// @Summary Mark payroll paid
// @Tags Payroll
// @Produce json
// @Param id path string true "Payroll ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /payroll/{id}/mark-paid [post]
func (h *PayrollHandler) MarkPaid(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	payroll, err := h.service.MarkPaid(c.Request.Context(), scope, actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payroll, nil)
}

// Delete godoc
// @Summary Delete payroll entry
// @Tags Payroll
// @Param id path string true "Payroll ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /payroll/{id} [delete]
func (h *PayrollHandler) Delete(c *gin.Context) {
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

func payrollFilter(c *gin.Context) (models.PayrollFilter, error) {
	filter := models.PayrollFilter{
		StaffID:   c.Query("staff_id"),
		Status:    models.PayrollStatus(c.Query("status")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
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
