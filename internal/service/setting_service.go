package service

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type settingRepository interface {
	List(ctx context.Context, schoolID string) ([]models.Setting, error)
	Get(ctx context.Context, schoolID, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
	UpsertMany(ctx context.Context, settings []models.Setting) error
	Delete(ctx context.Context, schoolID, key string) (bool, error)
}

var defaultSettings = map[string]models.Setting{
	models.SettingKeyCurrency: {Key: models.SettingKeyCurrency, Value: "USD", Type: models.SettingTypeString},
	models.SettingKeyTimezone: {Key: models.SettingKeyTimezone, Value: "UTC", Type: models.SettingTypeString},
}

// SettingsCacheKey is where a school's settings list is cached.
func SettingsCacheKey(schoolID string) string {
	return "settings:" + schoolID
}

// SettingRequest writes one setting value.
type SettingRequest struct {
	Value       string             `json:"value"`
	Type        models.SettingType `json:"type" validate:"omitempty,oneof=STRING BOOLEAN NUMBER JSON"`
	Description *string            `json:"description"`
}

// BulkSettingItem is one entry of a bulk write.
type BulkSettingItem struct {
	Key string `json:"key" validate:"required,max=100"`
	SettingRequest
}

// BulkSettingsRequest writes several settings in one transaction.
type BulkSettingsRequest struct {
	Settings []BulkSettingItem `json:"settings" validate:"required,min=1,dive"`
}

// SettingService manages school settings.
type SettingService struct {
	repo      settingRepository
	audit     auditRecorder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingService constructs a SettingService.
func NewSettingService(repo settingRepository, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SettingService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns stored settings merged over the built-in defaults.
func (s *SettingService) List(ctx context.Context, scope models.TenantScope) ([]models.Setting, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	key := SettingsCacheKey(scope.SchoolID)
	var cached []models.Setting
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	stored, err := s.repo.List(ctx, scope.SchoolID)
	if err != nil {
		return nil, internalError(err, "failed to list settings")
	}
	merged := mergeDefaults(scope.SchoolID, stored)
	s.cache.Set(ctx, key, merged, 0)
	return merged, nil
}

// Get returns one setting, falling back to a built-in default.
func (s *SettingService) Get(ctx context.Context, scope models.TenantScope, key string) (*models.Setting, error) {
	settings, err := s.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	key = normaliseKey(key)
	for i := range settings {
		if settings[i].Key == key {
			return &settings[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
}

// Value returns the effective value of key or an empty string.
func (s *SettingService) Value(ctx context.Context, scope models.TenantScope, key string) string {
	setting, err := s.Get(ctx, scope, key)
	if err != nil {
		return ""
	}
	return setting.Value
}

// Upsert writes a single setting.
func (s *SettingService) Upsert(ctx context.Context, scope models.TenantScope, actor Actor, key string, req SettingRequest) (*models.Setting, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	setting, err := s.build(scope.SchoolID, actor, key, req)
	if err != nil {
		return nil, err
	}
	previous, _ := s.repo.Get(ctx, scope.SchoolID, setting.Key)
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, internalError(err, "failed to save setting")
	}
	s.cache.Delete(ctx, SettingsCacheKey(scope.SchoolID))

	var before interface{}
	if previous != nil {
		before = previous
	}
	recordAudit(ctx, s.audit, s.logger, actor, scope.SchoolID, models.AuditActionSettingUpsert, "setting", setting.Key, before, setting)
	return setting, nil
}

// Bulk writes several settings atomically.
func (s *SettingService) Bulk(ctx context.Context, scope models.TenantScope, actor Actor, req BulkSettingsRequest) ([]models.Setting, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid settings payload")
	}

	settings := make([]models.Setting, 0, len(req.Settings))
	seen := make(map[string]bool, len(req.Settings))
	for _, item := range req.Settings {
		setting, err := s.build(scope.SchoolID, actor, item.Key, item.SettingRequest)
		if err != nil {
			return nil, err
		}
		if seen[setting.Key] {
			return nil, appErrors.FieldError(setting.Key, "duplicate setting key in request")
		}
		seen[setting.Key] = true
		settings = append(settings, *setting)
	}

	if err := s.repo.UpsertMany(ctx, settings); err != nil {
		return nil, internalError(err, "failed to save settings")
	}
	s.cache.Delete(ctx, SettingsCacheKey(scope.SchoolID))
	for i := range settings {
		recordAudit(ctx, s.audit, s.logger, actor, scope.SchoolID, models.AuditActionSettingUpsert, "setting", settings[i].Key, nil, settings[i])
	}
	return settings, nil
}

// Delete removes a stored setting; defaults reappear afterwards.
func (s *SettingService) Delete(ctx context.Context, scope models.TenantScope, actor Actor, key string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	key = normaliseKey(key)
	deleted, err := s.repo.Delete(ctx, scope.SchoolID, key)
	if err != nil {
		return internalError(err, "failed to delete setting")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "setting not found")
	}
	s.cache.Delete(ctx, SettingsCacheKey(scope.SchoolID))
	recordAudit(ctx, s.audit, s.logger, actor, scope.SchoolID, models.AuditActionSettingDelete, "setting", key, map[string]string{"key": key}, nil)
	return nil
}

func (s *SettingService) build(schoolID string, actor Actor, key string, req SettingRequest) (*models.Setting, error) {
	key = normaliseKey(key)
	if key == "" || len(key) > 100 {
		return nil, appErrors.FieldError("key", "key is required and must be at most 100 characters")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid setting payload")
	}
	if req.Type == "" {
		req.Type = models.SettingTypeString
	}
	if err := validateSettingValue(req.Type, req.Value); err != nil {
		return nil, err
	}
	if key == models.SettingKeyCurrency && !currencyPattern.MatchString(req.Value) {
		return nil, appErrors.FieldError("value", "currency must be a 3-letter uppercase code")
	}

	setting := &models.Setting{
		SchoolID:    schoolID,
		Key:         key,
		Value:       req.Value,
		Type:        req.Type,
		Description: optionalString(req.Description),
	}
	if actor.UserID != "" {
		setting.UpdatedBy = &actor.UserID
	}
	return setting, nil
}

func validateSettingValue(kind models.SettingType, value string) error {
	switch kind {
	case models.SettingTypeBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return appErrors.FieldError("value", "value must be a boolean")
		}
	case models.SettingTypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return appErrors.FieldError("value", "value must be a number")
		}
	case models.SettingTypeJSON:
		if !json.Valid([]byte(value)) {
			return appErrors.FieldError("value", "value must be valid JSON")
		}
	}
	return nil
}

func mergeDefaults(schoolID string, stored []models.Setting) []models.Setting {
	byKey := make(map[string]models.Setting, len(stored)+len(defaultSettings))
	for key, def := range defaultSettings {
		def.SchoolID = schoolID
		def.IsDefault = true
		byKey[key] = def
	}
	for _, setting := range stored {
		byKey[setting.Key] = setting
	}

	merged := make([]models.Setting, 0, len(byKey))
	for _, setting := range byKey {
		merged = append(merged, setting)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Key < merged[j].Key })
	return merged
}

func normaliseKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
