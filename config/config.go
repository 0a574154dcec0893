package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Mongo   MongoConfig
	Auth    AuthConfig
	Mail    MailConfig
	Uploads UploadsConfig
}

type ServerConfig struct {
	Port           string
	Env            string // dev or prod
	AllowedOrigins []string
}

type MongoConfig struct {
	URI      string
	Database string
}

type AuthConfig struct {
	JWTSecret     string
	AuthTokenTTL  time.Duration
	ResetTokenTTL time.Duration
	AdminEmail    string
	AdminPassword string
}

type MailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
	AppName      string
	FrontendURL  string
}

type UploadsConfig struct {
	Dir             string
	BaseURL         string
	MaxSizeMB       int
	GCSBucket       string // when set, uploads go to GCS instead of local disk
	CredentialsFile string
}

// Load reads configuration from the environment once at startup.
// The signing secret has no safe default: a missing JWT_SECRET is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("APP_ENV", "dev"),
			AllowedOrigins: getSliceEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("DATABASE_NAME", "blogdb"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			AuthTokenTTL:  getDurationEnv("AUTH_TOKEN_TTL", 30*24*time.Hour),
			ResetTokenTTL: getDurationEnv("RESET_TOKEN_TTL", 15*time.Minute),
			AdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
		Mail: MailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			From:         getEnv("EMAIL_FROM", "no-reply@example.com"),
			AppName:      getEnv("APP_NAME", "Mohit Blogs"),
			FrontendURL:  strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		},
		Uploads: UploadsConfig{
			Dir:             getEnv("UPLOADS_DIR", "uploads"),
			BaseURL:         strings.TrimRight(getEnv("UPLOADS_BASE_URL", "/uploads"), "/"),
			MaxSizeMB:       getIntEnv("MAX_UPLOAD_SIZE_MB", 5),
			GCSBucket:       getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("CREDENTIALS_FILE_LOCATION", ""),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// IsDevelopment reports whether the server runs in dev mode (stack traces in
// error responses are only exposed in dev).
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
