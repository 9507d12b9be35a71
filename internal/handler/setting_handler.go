package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/service"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

// SettingHandler exposes school settings endpoints.
type SettingHandler struct {
	service *service.SettingService
}

// NewSettingHandler constructs a settings handler.
func NewSettingHandler(svc *service.SettingService) *SettingHandler {
	return &SettingHandler{service: svc}
}

// List godoc
// @Summary List settings merged over built-in defaults
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	settings, err := h.service.List(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Get godoc
// @Summary Get setting
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [get]
func (h *SettingHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	setting, err := h.service.Get(c.Request.Context(), scope, c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// Upsert godoc
// @Summary Write setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param payload body service.SettingRequest true "Setting value"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /settings/{key} [put]
func (h *SettingHandler) Upsert(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req service.SettingRequest
	if !bindJSON(c, &req) {
		return
	}
	setting, err := h.service.Upsert(c.Request.Context(), scope, actorFromContext(c), c.Param("key"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// Bulk godoc
// @Summary Write several settings atomically
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body service.BulkSettingsRequest true "Settings"
// @Success 200 {object} response.Envelope
// @Router /settings/bulk [put]
func (h *SettingHandler) Bulk(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req service.BulkSettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.service.Bulk(c.Request.Context(), scope, actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Delete godoc
// @Summary Delete setting
// @Tags Settings
// @Param key path string true "Setting key"
// @Success 204
// @Router /settings/{key} [delete]
func (h *SettingHandler) Delete(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), scope, actorFromContext(c), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
