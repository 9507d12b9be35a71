package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edutenant-api/internal/models"
)

type settingRepoStub struct {
	stored map[string]models.Setting
	lists  int
}

func newSettingRepoStub() *settingRepoStub {
	return &settingRepoStub{stored: map[string]models.Setting{}}
}

func (s *settingRepoStub) List(ctx context.Context, schoolID string) ([]models.Setting, error) {
	s.lists++
	var out []models.Setting
	for _, setting := range s.stored {
		if setting.SchoolID == schoolID {
			out = append(out, setting)
		}
	}
	return out, nil
}

func (s *settingRepoStub) Get(ctx context.Context, schoolID, key string) (*models.Setting, error) {
	setting, ok := s.stored[schoolID+"/"+key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &setting, nil
}

func (s *settingRepoStub) Upsert(ctx context.Context, setting *models.Setting) error {
	s.stored[setting.SchoolID+"/"+setting.Key] = *setting
	return nil
}

func (s *settingRepoStub) UpsertMany(ctx context.Context, settings []models.Setting) error {
	for _, setting := range settings {
		s.stored[setting.SchoolID+"/"+setting.Key] = setting
	}
	return nil
}

func (s *settingRepoStub) Delete(ctx context.Context, schoolID, key string) (bool, error) {
	if _, ok := s.stored[schoolID+"/"+key]; !ok {
		return false, nil
	}
	delete(s.stored, schoolID+"/"+key)
	return true, nil
}

func TestSettingServiceDefaultsAndOverrides(t *testing.T) {
	repo := newSettingRepoStub()
	audit := &auditSink{}
	svc := NewSettingService(repo, audit, NewCacheService(newMemoryCache(), nil, 0, nil, true), nil, nil)

	settings, err := svc.List(context.Background(), testScope)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "currency", settings[0].Key)
	assert.True(t, settings[0].IsDefault)
	assert.Equal(t, "USD", svc.Value(context.Background(), testScope, "currency"))

	_, err = svc.List(context.Background(), testScope)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)

	saved, err := svc.Upsert(context.Background(), testScope, Actor{UserID: "admin"}, " Currency ", SettingRequest{Value: "KES"})
	require.NoError(t, err)
	assert.Equal(t, "currency", saved.Key)
	assert.Equal(t, models.SettingTypeString, saved.Type)
	assert.Equal(t, "KES", svc.Value(context.Background(), testScope, "CURRENCY"))
	assert.Equal(t, 2, repo.lists)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionSettingUpsert, audit.entries[0].Action)
	assert.Nil(t, audit.entries[0].OldValues)

	require.NoError(t, svc.Delete(context.Background(), testScope, Actor{UserID: "admin"}, "currency"))
	assert.Equal(t, "USD", svc.Value(context.Background(), testScope, "currency"))
	assert.Equal(t, models.AuditActionSettingDelete, audit.entries[1].Action)

	err = svc.Delete(context.Background(), testScope, Actor{}, "currency")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = svc.Get(context.Background(), testScope, "unknown")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestSettingServiceValueTypes(t *testing.T) {
	svc := NewSettingService(newSettingRepoStub(), nil, nil, nil, nil)

	cases := []struct {
		name string
		key  string
		req  SettingRequest
		ok   bool
	}{
		{"boolean", "sms_enabled", SettingRequest{Value: "true", Type: models.SettingTypeBoolean}, true},
		{"bad boolean", "sms_enabled", SettingRequest{Value: "sometimes", Type: models.SettingTypeBoolean}, false},
		{"number", "late_fee", SettingRequest{Value: "12.5", Type: models.SettingTypeNumber}, true},
		{"bad number", "late_fee", SettingRequest{Value: "twelve", Type: models.SettingTypeNumber}, false},
		{"json", "grading", SettingRequest{Value: `{"a":90}`, Type: models.SettingTypeJSON}, true},
		{"bad json", "grading", SettingRequest{Value: `{a:90`, Type: models.SettingTypeJSON}, false},
		{"unknown type", "grading", SettingRequest{Value: "x", Type: "BLOB"}, false},
		{"lowercase currency", "currency", SettingRequest{Value: "kes"}, false},
		{"blank key", "  ", SettingRequest{Value: "x"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), testScope, Actor{}, tc.key, tc.req)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
		})
	}
}

func TestSettingServiceBulk(t *testing.T) {
	repo := newSettingRepoStub()
	svc := NewSettingService(repo, nil, nil, nil, nil)

	_, err := svc.Bulk(context.Background(), testScope, Actor{}, BulkSettingsRequest{Settings: []BulkSettingItem{
		{Key: "timezone", SettingRequest: SettingRequest{Value: "Africa/Nairobi"}},
		{Key: "TIMEZONE", SettingRequest: SettingRequest{Value: "UTC"}},
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
	assert.Empty(t, repo.stored)

	saved, err := svc.Bulk(context.Background(), testScope, Actor{UserID: "admin"}, BulkSettingsRequest{Settings: []BulkSettingItem{
		{Key: "timezone", SettingRequest: SettingRequest{Value: "Africa/Nairobi"}},
		{Key: "currency", SettingRequest: SettingRequest{Value: "KES"}},
	}})
	require.NoError(t, err)
	assert.Len(t, saved, 2)
	assert.Len(t, repo.stored, 2)
	assert.Equal(t, "admin", *repo.stored["s1a/currency"].UpdatedBy)

	_, err = svc.Bulk(context.Background(), testScope, Actor{}, BulkSettingsRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}
