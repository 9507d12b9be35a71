package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	Cache         CacheConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Tenancy       TenancyConfig
	Notifications NotificationsConfig
	Dashboard     DashboardConfig
	Exports       ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig toggles Redis-backed read caching.
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TenancyConfig controls how the tenant and school are picked for a request.
type TenancyConfig struct {
	TenantHeader string
	SchoolHeader string
	CacheTTL     time.Duration
}

// NotificationsConfig wires outbound email, SMS and push channels.
type NotificationsConfig struct {
	EmailProvider    string
	SendgridAPIKey   string
	FromEmail        string
	FromName         string
	SMSProvider      string
	SMSGatewayURL    string
	SMSGatewayToken  string
	SMSSender        string
	MQTTEnabled      bool
	MQTTBroker       string
	MQTTClientID     string
	MQTTUsername     string
	MQTTPassword     string
	MQTTTopicPrefix  string
	DispatchWorkers  int
	DispatchRetries  int
	DispatchInterval time.Duration
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// ExportsConfig bounds tabular exports.
type ExportsConfig struct {
	MaxRows int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("CACHE_ENABLED"),
		DefaultTTL: parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Tenancy = TenancyConfig{
		TenantHeader: v.GetString("TENANT_HEADER"),
		SchoolHeader: v.GetString("SCHOOL_HEADER"),
		CacheTTL:     parseDuration(v.GetString("TENANT_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		EmailProvider:    strings.ToLower(v.GetString("EMAIL_PROVIDER")),
		SendgridAPIKey:   v.GetString("SENDGRID_API_KEY"),
		FromEmail:        v.GetString("EMAIL_FROM_ADDRESS"),
		FromName:         v.GetString("EMAIL_FROM_NAME"),
		SMSProvider:      strings.ToLower(v.GetString("SMS_PROVIDER")),
		SMSGatewayURL:    v.GetString("SMS_GATEWAY_URL"),
		SMSGatewayToken:  v.GetString("SMS_GATEWAY_TOKEN"),
		SMSSender:        v.GetString("SMS_SENDER_ID"),
		MQTTEnabled:      v.GetBool("MQTT_ENABLED"),
		MQTTBroker:       v.GetString("MQTT_BROKER"),
		MQTTClientID:     v.GetString("MQTT_CLIENT_ID"),
		MQTTUsername:     v.GetString("MQTT_USERNAME"),
		MQTTPassword:     v.GetString("MQTT_PASSWORD"),
		MQTTTopicPrefix:  v.GetString("MQTT_TOPIC_PREFIX"),
		DispatchWorkers:  v.GetInt("DISPATCH_WORKERS"),
		DispatchRetries:  v.GetInt("DISPATCH_RETRIES"),
		DispatchInterval: parseDuration(v.GetString("DISPATCH_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{MaxRows: v.GetInt("EXPORT_MAX_ROWS")}
	if cfg.Exports.MaxRows <= 0 {
		cfg.Exports.MaxRows = 5000
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "edutenant")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "edutenant-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TENANT_HEADER", "X-Tenant-ID")
	v.SetDefault("SCHOOL_HEADER", "X-School-ID")
	v.SetDefault("TENANT_CACHE_TTL", "15m")

	v.SetDefault("EMAIL_PROVIDER", "log")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_ADDRESS", "no-reply@edutenant.local")
	v.SetDefault("EMAIL_FROM_NAME", "EduTenant")
	v.SetDefault("SMS_PROVIDER", "log")
	v.SetDefault("SMS_GATEWAY_URL", "")
	v.SetDefault("SMS_GATEWAY_TOKEN", "")
	v.SetDefault("SMS_SENDER_ID", "EDUTENANT")
	v.SetDefault("MQTT_ENABLED", false)
	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_CLIENT_ID", "edutenant-api")
	v.SetDefault("MQTT_USERNAME", "")
	v.SetDefault("MQTT_PASSWORD", "")
	v.SetDefault("MQTT_TOPIC_PREFIX", "edutenant")
	v.SetDefault("DISPATCH_WORKERS", 2)
	v.SetDefault("DISPATCH_RETRIES", 3)
	v.SetDefault("DISPATCH_RETRY_DELAY", "2s")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("EXPORT_MAX_ROWS", 5000)
}

func isMissingFile(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
