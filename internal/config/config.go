package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Auth           AuthConfig
	Lifecycle      LifecycleConfig
	Email          EmailConfig
	Logging        LoggingConfig
	AdminBootstrap AdminBootstrapConfig
	Environment    string
}

type ServerConfig struct {
	Host        string
	Port        int
	BaseURL     string
	FrontendURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

type AuthConfig struct {
	JWTSecret     string
	SessionExpiry time.Duration
	Issuer        string
}

// LifecycleConfig holds the tunables of the identity lifecycle engine.
// Invitation TTL and the per-org invite daily cap live in the
// global_settings table and are read through the settings cache, not here.
type LifecycleConfig struct {
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	ResendCooldown       time.Duration
	ResendDailyCap       int
	ResetCooldown        time.Duration
	ResetDailyCap        int
	SettingsCacheTTL     time.Duration
	LoginPerMinute       int
}

type EmailConfig struct {
	Enabled      bool
	From         string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type AdminBootstrapConfig struct {
	Email    string
	Password string
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			BaseURL:     getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			FrontendURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			SessionExpiry: time.Duration(getEnvInt("SESSION_EXPIRY_HOURS", 8)) * time.Hour,
			Issuer:        getEnv("JWT_ISSUER", "eventleads"),
		},
		Lifecycle: LifecycleConfig{
			VerificationTokenTTL: time.Duration(getEnvInt("VERIFICATION_TOKEN_TTL_MINUTES", 60)) * time.Minute,
			ResetTokenTTL:        time.Duration(getEnvInt("RESET_TOKEN_TTL_MINUTES", 60)) * time.Minute,
			ResendCooldown:       time.Duration(getEnvInt("RESEND_COOLDOWN_SECONDS", 60)) * time.Second,
			ResendDailyCap:       getEnvInt("RESEND_DAILY_CAP", 5),
			ResetCooldown:        time.Duration(getEnvInt("RESET_COOLDOWN_SECONDS", 300)) * time.Second,
			ResetDailyCap:        getEnvInt("RESET_DAILY_CAP", 3),
			SettingsCacheTTL:     time.Duration(getEnvInt("SETTINGS_CACHE_TTL_SECONDS", 300)) * time.Second,
			LoginPerMinute:       getEnvInt("RATE_LIMIT_LOGIN", 20),
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", false),
			From:         getEnv("EMAIL_FROM", "no-reply@eventleads.local"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		AdminBootstrap: AdminBootstrapConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
