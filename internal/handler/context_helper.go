package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edutenant-api/internal/middleware"
	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/internal/service"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
	"github.com/noah-isme/edutenant-api/pkg/response"
)

const dateLayout = "2006-01-02"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFromContext(c)
}

// scopeFromContext writes the error response itself when no scope was resolved.
func scopeFromContext(c *gin.Context) (models.TenantScope, bool) {
	scope, err := middleware.ScopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return models.TenantScope{}, false
	}
	return scope, true
}

// currentUserID writes a 401 when the request is anonymous.
func currentUserID(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

func actorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := claimsFromContext(c); claims != nil {
		actor.UserID = claims.UserID
	}
	return actor
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.BindError(c, err)
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		size = 20
	}
	return page, size
}

func boolQuery(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &val
}

// dateQuery parses a YYYY-MM-DD query parameter; a malformed value is a 422.
func dateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, appErrors.FieldError(key, key+" must be formatted as YYYY-MM-DD")
	}
	return &parsed, nil
}
