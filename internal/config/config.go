// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env          string
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Storage      StorageConfig
	Verification VerificationConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	URI      string
	Database string
}

// AuthConfig selects HS256 with JWTSecret, or RS256 keys from JWKSURL when
// the secret is empty.
type AuthConfig struct {
	JWTSecret string
	JWKSURL   string
	Issuer    string
	AdminRole string
}

// StorageConfig points at an S3 compatible bucket for accepted screenshots.
// An empty Bucket disables proof storage.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

type VerificationConfig struct {
	// Location defines the calendar day a screenshot has to be taken on.
	Location  *time.Location
	MaxPixels int
}

func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnvOrDefault("VERIFICATION_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_TIMEZONE: %w", err)
	}

	config := &Config{
		Env: getEnvOrDefault("ENV", "development"),
		Server: ServerConfig{
			Port:           getEnvOrDefault("PORT", "8080"),
			Host:           getEnvOrDefault("HOST", "0.0.0.0"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URI:      os.Getenv("MONGODB_URI"),
			Database: getEnvOrDefault("MONGODB_DATABASE", "intesters"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			JWKSURL:   os.Getenv("JWKS_URL"),
			Issuer:    os.Getenv("JWT_ISSUER"),
			AdminRole: getEnvOrDefault("ADMIN_ROLE", "admin"),
		},
		Storage: StorageConfig{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnvOrDefault("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PresignTTL:      getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),
		},
		Verification: VerificationConfig{
			Location:  loc,
			MaxPixels: getEnvAsInt("VERIFICATION_MAX_PIXELS", 64*1024*1024),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Database.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("JWT_SECRET or JWKS_URL is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Storage.Bucket != "" && (c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET is set")
	}
	return nil
}

// StorageEnabled reports whether accepted screenshots should be uploaded.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
