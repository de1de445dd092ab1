package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Storage           string
	DatabaseURL       string
	MigrationsEnabled bool
	LogLevel          string
	LogFormat         string
	Port              string
	PrometheusPort    string
	TelegramToken     string
	AppBaseURL        string
	AppName           string
	SMTPHost          string
	SMTPPort          string
	SMTPUsername      string
	SMTPPassword      string
	MailSender        string
	InviteTTL         time.Duration
	ResetTTL          time.Duration
	PreviewTimeout    time.Duration
	HousekeepingEvery time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables
// take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Storage:        strings.ToLower(getEnvOrDefault("STORAGE", StoragePostgres)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "text"),
		Port:           getEnvOrDefault("PORT", "8080"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		AppBaseURL:     getEnvOrDefault("APP_BASE_URL", "http://localhost:8080"),
		AppName:        getEnvOrDefault("APP_NAME", "Family Gift Exchange"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		MailSender:     getEnvOrDefault("MAIL_DEFAULT_SENDER", "noreply@giftexchange.com"),
	}

	var err error
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}

	for _, port := range []struct{ key, value string }{
		{"PORT", cfg.Port},
		{"PROMETHEUS_PORT", cfg.PrometheusPort},
		{"SMTP_PORT", cfg.SMTPPort},
	} {
		if n, err := strconv.Atoi(port.value); err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("%s must be a port number, got %q", port.key, port.value)
		}
	}

	if cfg.MigrationsEnabled, err = strconv.ParseBool(getEnvOrDefault("MIGRATIONS_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("MIGRATIONS_ENABLED must be a boolean: %w", err)
	}
	if cfg.InviteTTL, err = getDuration("INVITE_TTL", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResetTTL, err = getDuration("PASSWORD_RESET_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PreviewTimeout, err = getDuration("PREVIEW_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.HousekeepingEvery, err = getDuration("HOUSEKEEPING_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MailEnabled reports whether an SMTP server is configured
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}
