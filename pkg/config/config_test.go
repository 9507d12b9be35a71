package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "X-Tenant-ID", cfg.Tenancy.TenantHeader)
	assert.Equal(t, "X-School-ID", cfg.Tenancy.SchoolHeader)
	assert.Equal(t, 15*time.Minute, cfg.Tenancy.CacheTTL)
	assert.Equal(t, "log", cfg.Notifications.EmailProvider)
	assert.Equal(t, 2, cfg.Notifications.DispatchWorkers)
	assert.Equal(t, 5000, cfg.Exports.MaxRows)
	assert.True(t, cfg.Cache.Enabled)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	v.Set("JWT_EXPIRATION", "not-a-duration")
	v.Set("SMS_PROVIDER", "HTTP")
	v.Set("EXPORT_MAX_ROWS", 0)

	cfg := fromViper(v)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, "http", cfg.Notifications.SMSProvider)
	assert.Equal(t, 5000, cfg.Exports.MaxRows)
}
