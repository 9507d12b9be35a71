package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// loadError maps a repository lookup failure to 404 or 500.
func loadError(err error, entity string) *appErrors.Error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return internalError(err, "failed to load "+entity)
}

const foreignKeyViolation = "23503"

// deleteError maps a delete rejected by a foreign key to 412 and anything else to 500.
func deleteError(err error, entity string) *appErrors.Error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, entity+" is still referenced")
	}
	return internalError(err, "failed to delete "+entity)
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

func requireScope(scope models.TenantScope) error {
	if !scope.Valid() {
		return appErrors.ErrTenantRequired
	}
	return nil
}

// optionalString trims the value and turns blanks into nil.
func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// recordAudit writes an audit row; failures are logged, never returned.
func recordAudit(ctx context.Context, recorder auditRecorder, logger *zap.Logger, actor Actor, schoolID, action, resource, resourceID string, before, after interface{}) {
	if recorder == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if schoolID != "" {
		entry.SchoolID = &schoolID
	}
	if actor.UserID != "" {
		entry.UserID = &actor.UserID
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := recorder.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource", resource), zap.Error(err))
	}
}
