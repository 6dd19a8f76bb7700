package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // PostgreSQL DSN; empty means SQLite fallback
	SQLitePath  string
	RedisURL    string

	// Token signing
	JWTSecret string
	TokenTTL  time.Duration

	// Uploaded files
	UploadDir string

	// CORS
	CORSOrigins []string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/orderdesk.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:    parseDuration(getEnv("TOKEN_TTL", "24h")),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploaded_files"),
	}

	// Parse allowed origins (comma-separated); "*" allows all
	origins := getEnv("CORS_ORIGINS", "*")
	for _, entry := range strings.Split(origins, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, entry)
		}
	}

	// In production, require a real database and signing secret
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == "" || cfg.JWTSecret == "dev-secret-change-me" {
			panic("JWT_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
