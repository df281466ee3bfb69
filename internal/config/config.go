// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the relay and the CLI.
type Config struct {
	Port      string
	AppEnv    string
	LogLevel  string
	LogFormat string

	// DatabaseURL enables upload history when set.
	DatabaseURL string
	// JWTSecret enables bearer-token checks on /api/v1 when set.
	JWTSecret string

	// upload.ee
	UploadeeBaseURL string
	UploadeeTimeout time.Duration

	MaxUploadBytes       int64
	MaxConcurrentUploads int64

	// Optional archive copy (S3-compatible). Disabled when StorageEndpoint is empty.
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StorageUseSSL     bool
	StoragePublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/uploads"

	// Warnings collects problems found while loading. They are logged once
	// the logger exists.
	Warnings []string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	l := &loader{}
	if err := godotenv.Load(); err != nil {
		l.warn("no .env file found, reading from environment")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		UploadeeBaseURL: getEnv("UPLOADEE_BASE_URL", "https://www.upload.ee/"),
		UploadeeTimeout: l.durationValue("UPLOADEE_TIMEOUT", 10*time.Second),

		MaxUploadBytes:       l.intValue("MAX_UPLOAD_BYTES", 100<<20),
		MaxConcurrentUploads: l.intValue("MAX_CONCURRENT_UPLOADS", 1),

		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", ""),
		StorageAccessKey:  getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey:  getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:     getEnv("STORAGE_BUCKET", "uploads"),
		StorageUseSSL:     getEnv("STORAGE_USE_SSL", "false") == "true",
		StoragePublicBase: getEnv("STORAGE_PUBLIC_BASE", "http://localhost:9000/uploads"),
	}
	cfg.Warnings = l.warnings
	return cfg
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// HistoryEnabled reports whether uploads are recorded in the database.
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

// ArchiveEnabled reports whether relayed files are copied to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.StorageEndpoint != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type loader struct {
	warnings []string
}

func (l *loader) warn(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *loader) durationValue(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		l.warn("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func (l *loader) intValue(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		l.warn("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
