package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

// MessageHandler exposes direct messaging endpoints for the current user.
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

// List godoc
// @Summary List messages
// @Tags Messages
// @Produce json
// @Param folder query string false "inbox (default) or sent"
// @Param unread query bool false "Only unread messages"
// @Success 200 {object} response.Envelope
// @Router /messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	filter := models.MessageFilter{
		Folder:    models.MessageFolder(c.Query("folder")),
		Unread:    boolQuery(c, "unread"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	messages, pagination, err := h.service.List(c.Request.Context(), scope, userID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, pagination)
}

// Get godoc
// @Summary Get message
// @Description Reading a message as its recipient marks it read.
// @Tags Messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Router /messages/{id} [get]
func (h *MessageHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	message, err := h.service.Get(c.Request.Context(), scope, userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, message, nil)
}

// Send godoc
// @Summary Send message
// @Tags Messages
// @Accept json
// @Produce json
// @Param payload body service.MessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req service.MessageRequest
	if !bindJSON(c, &req) {
		return
	}
	message, err := h.service.Send(c.Request.Context(), scope, userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// Update godoc
// @Summary Edit an unread message
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param payload body service.UpdateMessageRequest true "Message changes"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /messages/{id} [put]
func (h *MessageHandler) Update(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req service.UpdateMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	message, err := h.service.Update(c.Request.Context(), scope, userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, message, nil)
}

// MarkRead godoc
// @Summary Mark message read
// @Tags Messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Router /messages/{id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	message, err := h.service.MarkRead(c.Request.Context(), scope, userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, message, nil)
}

// Delete godoc
// @Summary Delete message
// @Tags Messages
// @Param id path string true "Message ID"
// @Success 204
// @Router /messages/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), scope, userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
