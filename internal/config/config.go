package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Email    EmailConfig
	Notify   NotifyConfig
	Storage  StorageConfig
	Trash    TrashConfig
	Listing  ListingConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
	Debug   bool
	Port    string
	Host    string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	SecretKey          string
	TokenExpiryMinutes int
	Algorithm          string
	ResetTokenMinutes  int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// EmailConfig holds email service configuration
type EmailConfig struct {
	Enabled   bool
	SMTPHost  string
	SMTPPort  int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// NotifyConfig holds notification routing
type NotifyConfig struct {
	AdminEmail string
	SiteURL    string
}

// StorageConfig holds image upload storage configuration
type StorageConfig struct {
	UploadDir   string
	PublicPath  string
	MaxUploadMB int
	MaxWidth    int
	// MaxPixels caps width*height of an upload before it is decoded
	MaxPixels int
}

// TrashConfig holds soft-delete retention configuration
type TrashConfig struct {
	RetentionDays  int
	ReaperEnabled  bool
	ReaperSchedule string
	DryRun         bool
}

// ListingConfig bounds listing page sizes
type ListingConfig struct {
	DefaultLimit int
	MaxLimit     int
}

var globalConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Big Partner API"),
			Version: getEnv("APP_VERSION", "1.0.0"),
			Debug:   getEnvAsBool("DEBUG", false),
			Port:    getEnv("PORT", "8000"),
			Host:    getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "sqlite:///./bigpartner.db"),
		},
		Auth: AuthConfig{
			SecretKey:          getEnv("SECRET_KEY", "your-secret-key-change-in-production"),
			TokenExpiryMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60),
			Algorithm:          getEnv("ALGORITHM", "HS256"),
			ResetTokenMinutes:  getEnvAsInt("RESET_TOKEN_TTL_MINUTES", 60),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_HOSTS", []string{"*"}),
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			MaxAge:         86400,
		},
		Email: EmailConfig{
			Enabled:   getEnvAsBool("EMAIL_ENABLED", false),
			SMTPHost:  getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:  getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("EMAIL_FROM", "noreply@bigpartner.com"),
			FromName:  getEnv("EMAIL_FROM_NAME", "Big Partner"),
		},
		Notify: NotifyConfig{
			AdminEmail: getEnv("ADMIN_NOTIFY_EMAIL", "admin@bigpartner.com"),
			SiteURL:    strings.TrimRight(getEnv("PUBLIC_SITE_URL", "http://localhost:5173"), "/"),
		},
		Storage: StorageConfig{
			UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
			PublicPath:  "/" + strings.Trim(getEnv("UPLOAD_PUBLIC_PATH", "/uploads"), "/"),
			MaxUploadMB: getEnvAsInt("UPLOAD_MAX_MB", 10),
			MaxWidth:    getEnvAsInt("UPLOAD_MAX_WIDTH", 1920),
			MaxPixels:   getEnvAsInt("UPLOAD_MAX_PIXELS", 40_000_000),
		},
		Trash: TrashConfig{
			RetentionDays:  getEnvAsInt("TRASH_RETENTION_DAYS", 30),
			ReaperEnabled:  getEnvAsBool("TRASH_REAPER_ENABLED", false),
			ReaperSchedule: getEnv("TRASH_REAPER_SCHEDULE", "15 2 * * *"),
			DryRun:         getEnvAsBool("TRASH_REAPER_DRY_RUN", false),
		},
		Listing: ListingConfig{
			DefaultLimit: getEnvAsInt("LISTING_DEFAULT_LIMIT", 100),
			MaxLimit:     getEnvAsInt("LISTING_MAX_LIMIT", 500),
		},
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	globalConfig = config
	return config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.App.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.Auth.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY must be set")
	}
	if cfg.Auth.TokenExpiryMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be greater than 0")
	}
	if cfg.Auth.ResetTokenMinutes <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL_MINUTES must be greater than 0")
	}
	if cfg.Trash.RetentionDays <= 0 {
		return fmt.Errorf("TRASH_RETENTION_DAYS must be greater than 0")
	}
	if cfg.Listing.DefaultLimit <= 0 || cfg.Listing.MaxLimit < cfg.Listing.DefaultLimit {
		return fmt.Errorf("LISTING_DEFAULT_LIMIT must be positive and not exceed LISTING_MAX_LIMIT")
	}
	if cfg.Storage.MaxUploadMB <= 0 {
		return fmt.Errorf("UPLOAD_MAX_MB must be greater than 0")
	}
	if cfg.Storage.MaxPixels <= 0 {
		return fmt.Errorf("UPLOAD_MAX_PIXELS must be greater than 0")
	}
	return nil
}

// Retention returns the trash retention window
func (c *TrashConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// ResetTokenTTL returns how long a password reset token stays valid
func (c *AuthConfig) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenMinutes) * time.Minute
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		// Load default config if not loaded
		config, _ := Load()
		return config
	}
	return globalConfig
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}

// IsPostgres checks if the database URL is for PostgreSQL
func (c *DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://")
}

// GetPostgresDSN returns the PostgreSQL connection string, defaulting sslmode to
// disable when the URL does not set it. Key/value DSNs are returned unchanged.
func (c *DatabaseConfig) GetPostgresDSN() string {
	if !c.IsPostgres() {
		return c.URL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return c.URL
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// GetSQLitePath extracts SQLite database path from URL
func (c *DatabaseConfig) GetSQLitePath() string {
	if strings.HasPrefix(c.URL, "sqlite:///") {
		return strings.TrimPrefix(c.URL, "sqlite:///")
	}
	return strings.TrimPrefix(c.URL, "sqlite://")
}
