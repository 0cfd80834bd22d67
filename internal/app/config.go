package app

import (
	"os"
	"strconv"
	"time"

	"github.com/cardfile/cardfile/pkg/jwtx"
)

type Config struct {
	JWTSecret string // Required: HS256 signing secret
	Issuer    string // Optional: issuer claim for tokens (default: cardfile)
	BaseURL   string // Optional: public origin for links in email (default: http://localhost:8080)

	DatabaseFile string // Optional: path to SQLite database file (default: ./cardfile.db)
	Pepper       string // Optional: extra secret mixed into password hashes

	AccessTTL       time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTTL      time.Duration // Optional: refresh token lifetime (default: 7d)
	EmailVerifyTTL  time.Duration // Optional: email verification token lifetime (default: 24h)
	SessionCacheTTL time.Duration // Optional: session cache entry lifetime (default: 1h)

	SMTPHost     string // SMTP relay host
	SMTPPort     int    // SMTP relay port (default: 587)
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string // Sender address (default: no-reply@localhost)

	S3Region        string
	S3Endpoint      string // Optional: set for MinIO / S3-compatible stores
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string // Bucket for avatar uploads (default: cardfile-avatars)
	S3PublicBaseURL string // Browser-facing base URL for stored objects

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		JWTSecret: os.Getenv("JWT_SECRET"),
		Issuer:    getEnvOrDefault("TOKEN_ISSUER", "cardfile"),
		BaseURL:   getEnvOrDefault("BASE_URL", "http://localhost:8080"),

		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "cardfile.db"),
		Pepper:       os.Getenv("PASSWORD_PEPPER"),

		AccessTTL:       getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTTL),
		RefreshTTL:      getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTTL),
		EmailVerifyTTL:  getEnvDurationOrDefault("EMAIL_VERIFY_TOKEN_TTL", jwtx.DefaultEmailVerifyTTL),
		SessionCacheTTL: getEnvDurationOrDefault("SESSION_CACHE_TTL", time.Hour),

		SMTPHost:     getEnvOrDefault("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnvOrDefault("SMTP_FROM", "no-reply@localhost"),

		S3Region:        getEnvOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3Bucket:        getEnvOrDefault("S3_BUCKET", "cardfile-avatars"),
		S3PublicBaseURL: getEnvOrDefault("S3_PUBLIC_BASE_URL", "http://localhost:9000/cardfile-avatars"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
