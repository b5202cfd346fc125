package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Storage   StorageConfig   `json:"storage"`
	Security  SecurityConfig  `json:"security"`
	Logging   LoggingConfig   `json:"logging"`
	Reference ReferenceConfig `json:"reference"`
	Export    ExportConfig    `json:"export"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Mode            string        `json:"mode"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
	AllowedOrigins  []string      `json:"allowed_origins"`
	// PublicURL is where browsers reach this API; attachment links of a
	// private bucket are built on it. Empty yields root-relative links.
	PublicURL string `json:"public_url"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// StorageConfig points at the attachment bucket.
// Without PublicBaseURL the bucket is private and files are served by the API.
type StorageConfig struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UsePathStyle    bool   `json:"use_path_style"`
	PublicBaseURL   string `json:"public_base_url"`
}

// SecurityConfig holds the session cookie secret and the shared admin password.
// AdminPassword may be a bcrypt hash.
type SecurityConfig struct {
	SessionSecret string        `json:"session_secret"`
	SessionTTL    time.Duration `json:"session_ttl"`
	AdminPassword string        `json:"admin_password"`
	SecureCookie  bool          `json:"secure_cookie"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// ReferenceConfig controls the employee and location cache
type ReferenceConfig struct {
	Locale          string `json:"locale"`
	RefreshSchedule string `json:"refresh_schedule"`
}

// ExportConfig
type ExportConfig struct {
	FontPath string `json:"font_path"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxUploadBytes:  100 << 20,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "project_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Storage: StorageConfig{
			Bucket: "project-files",
			Region: "ap-southeast-1",
		},
		Security: SecurityConfig{
			SessionTTL: 12 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Reference: ReferenceConfig{
			Locale:          "th",
			RefreshSchedule: "@every 10m",
		},
	}
}

// LoadConfig loads .env, then the JSON file if it exists, then environment variables
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	if c.Security.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if len(c.Security.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	return nil
}

func overrideWithEnv(config *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("SERVER_HOST", &config.Server.Host)
	str("GIN_MODE", &config.Server.Mode)
	str("DATABASE_HOST", &config.Database.Host)
	str("DATABASE_USER", &config.Database.User)
	str("DATABASE_PASSWORD", &config.Database.Password)
	str("DATABASE_DBNAME", &config.Database.DBName)
	str("DATABASE_SSLMODE", &config.Database.SSLMode)
	str("SERVER_PUBLIC_URL", &config.Server.PublicURL)
	str("STORAGE_BUCKET", &config.Storage.Bucket)
	str("STORAGE_REGION", &config.Storage.Region)
	str("STORAGE_ENDPOINT", &config.Storage.Endpoint)
	str("STORAGE_ACCESS_KEY_ID", &config.Storage.AccessKeyID)
	str("STORAGE_SECRET_ACCESS_KEY", &config.Storage.SecretAccessKey)
	str("STORAGE_PUBLIC_BASE_URL", &config.Storage.PublicBaseURL)
	str("SESSION_SECRET", &config.Security.SessionSecret)
	str("ADMIN_PASSWORD", &config.Security.AdminPassword)
	str("LOG_LEVEL", &config.Logging.Level)
	str("REFERENCE_LOCALE", &config.Reference.Locale)
	str("REFERENCE_REFRESH_SCHEDULE", &config.Reference.RefreshSchedule)
	str("EXPORT_FONT_PATH", &config.Export.FontPath)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		config.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				config.Server.AllowedOrigins = append(config.Server.AllowedOrigins, o)
			}
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SERVER_PORT", &config.Server.Port},
		{"DATABASE_PORT", &config.Database.Port},
		{"DATABASE_MAX_CONNECTIONS", &config.Database.MaxConnections},
	}
	for _, i := range ints {
		if v := os.Getenv(i.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", i.key, err)
			}
			*i.dst = n
		}
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
		}
		config.Server.MaxUploadBytes = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"STORAGE_USE_PATH_STYLE", &config.Storage.UsePathStyle},
		{"SECURE_COOKIE", &config.Security.SecureCookie},
		{"LOG_DEVELOPMENT", &config.Logging.Development},
	}
	for _, b := range bools {
		if v := os.Getenv(b.key); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", b.key, err)
			}
			*b.dst = parsed
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &config.Security.SessionTTL},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
