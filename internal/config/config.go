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
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Google    GoogleConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	AllowedOrigins  []string
	TrustedProxies  []string
	AlertLatency    time.Duration // audit alert threshold for slow requests
	DashboardURL    string        // base URL for links in notification emails
}

type AuthConfig struct {
	JWTSecret             string
	SessionTokenExpiry    time.Duration
	ContinuationExpiry    time.Duration // role selection / account completion tokens
	OAuthStateExpiry      time.Duration
	MaxSessionTokenAge    time.Duration // hard cap on token age by iat
	ResetCodeExpiry       time.Duration
	ResetMaxPerHour       int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
	Enabled     bool
}

// RateLimitConfig holds per-route-class budgets. Each class carries its
// own window and request count; RATE_LIMIT_WINDOW is the shared default
// for any class without an explicit window override.
type RateLimitConfig struct {
	AuthPerWindow       int
	AuthWindow          time.Duration
	SuperAdminPerWindow int
	SuperAdminWindow    time.Duration
	ResetPerWindow      int
	ResetWindow         time.Duration
	APIPerWindow        int
	APIWindow           time.Duration
	UploadPerWindow     int
	UploadWindow        time.Duration
}

type CacheConfig struct {
	UserTTL   time.Duration // staleness window for the session-validating cache
	RedisAddr string        // empty selects the in-process backend
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	googleClientID := getEnv("GOOGLE_CLIENT_ID", "")
	googleClientSecret := getEnv("GOOGLE_CLIENT_SECRET", "")
	if googleClientID == "" || googleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "taskgate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
			AlertLatency:   getEnvAsDuration("AUDIT_ALERT_LATENCY", 3*time.Second),
			DashboardURL:   getEnv("DASHBOARD_URL", "http://localhost:3000"),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			SessionTokenExpiry: getEnvAsDuration("SESSION_TOKEN_EXPIRY", 24*time.Hour),
			ContinuationExpiry: getEnvAsDuration("CONTINUATION_TOKEN_EXPIRY", 30*time.Minute),
			OAuthStateExpiry:   getEnvAsDuration("OAUTH_STATE_EXPIRY", 10*time.Minute),
			MaxSessionTokenAge: getEnvAsDuration("MAX_SESSION_TOKEN_AGE", 24*time.Hour),
			ResetCodeExpiry:    getEnvAsDuration("RESET_CODE_EXPIRY", 10*time.Minute),
			ResetMaxPerHour:    getEnvAsInt("RESET_MAX_PER_HOUR", 3),
		},
		Google: GoogleConfig{
			ClientID:     googleClientID,
			ClientSecret: googleClientSecret,
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@taskgate.io"),
			Enabled:     getEnvAsBool("EMAIL_ENABLED", true),
		},
		RateLimit: loadRateLimits(),
		Cache: CacheConfig{
			UserTTL:   getEnvAsDuration("USER_CACHE_TTL", 5*time.Minute),
			RedisAddr: getEnv("REDIS_ADDR", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	return cfg, nil
}

func loadRateLimits() RateLimitConfig {
	window := getEnvAsDuration("RATE_LIMIT_WINDOW", 1*time.Minute)

	return RateLimitConfig{
		AuthPerWindow:       getEnvAsInt("RATE_LIMIT_AUTH", 10),
		AuthWindow:          getEnvAsDuration("RATE_LIMIT_AUTH_WINDOW", window),
		SuperAdminPerWindow: getEnvAsInt("RATE_LIMIT_SUPERADMIN", 20),
		SuperAdminWindow:    getEnvAsDuration("RATE_LIMIT_SUPERADMIN_WINDOW", window),
		ResetPerWindow:      getEnvAsInt("RATE_LIMIT_RESET", 5),
		ResetWindow:         getEnvAsDuration("RATE_LIMIT_RESET_WINDOW", window),
		APIPerWindow:        getEnvAsInt("RATE_LIMIT_API", 120),
		APIWindow:           getEnvAsDuration("RATE_LIMIT_API_WINDOW", window),
		UploadPerWindow:     getEnvAsInt("RATE_LIMIT_UPLOAD", 15),
		UploadWindow:        getEnvAsDuration("RATE_LIMIT_UPLOAD_WINDOW", window),
	}
}

// validateJWTSecret enforces minimum security standards for the signing secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
