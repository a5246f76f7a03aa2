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
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Risk     RiskConfig
	Geo      GeoConfig
	Counter  CounterConfig
	Email    EmailConfig
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
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	CleanupInterval   time.Duration
	TOTPEncryptionKey string
	TOTPIssuer        string
}

// RiskConfig tunes the login decision pipeline. The factor weights themselves
// are fixed; only the operational limits are configurable.
type RiskConfig struct {
	VelocityLimit        int
	VelocityWindow       time.Duration
	IPBlacklistDuration  time.Duration
	AccountLockDuration  time.Duration
	HighRiskLockDuration time.Duration
	AttemptRetention     time.Duration
}

type GeoConfig struct {
	Provider      string // "ipinfo" or "maxmind"
	IPInfoURL     string
	IPInfoToken   string
	MaxMindDBPath string
	Timeout       time.Duration
}

type CounterConfig struct {
	Backend       string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type EmailConfig struct {
	Enabled      bool
	Region       string
	FromAddress  string
	AlertAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "aegis"),
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
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			CleanupInterval:   getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			TOTPEncryptionKey: getEnv("TOTP_ENCRYPTION_KEY", ""),
			TOTPIssuer:        getEnv("TOTP_ISSUER", "Aegis"),
		},
		Risk: RiskConfig{
			VelocityLimit:        getEnvAsInt("RISK_VELOCITY_LIMIT", 5),
			VelocityWindow:       getEnvAsDuration("RISK_VELOCITY_WINDOW", 1*time.Hour),
			IPBlacklistDuration:  getEnvAsDuration("RISK_IP_BLACKLIST_DURATION", 1*time.Hour),
			AccountLockDuration:  getEnvAsDuration("RISK_ACCOUNT_LOCK_DURATION", 30*time.Minute),
			HighRiskLockDuration: getEnvAsDuration("RISK_HIGH_RISK_LOCK_DURATION", 1*time.Hour),
			AttemptRetention:     getEnvAsDuration("RISK_ATTEMPT_RETENTION", 90*24*time.Hour),
		},
		Geo: GeoConfig{
			Provider:      getEnv("GEO_PROVIDER", "ipinfo"),
			IPInfoURL:     getEnv("GEO_IPINFO_URL", "https://ipinfo.io"),
			IPInfoToken:   getEnv("GEO_IPINFO_TOKEN", ""),
			MaxMindDBPath: getEnv("GEO_MAXMIND_DB_PATH", ""),
			Timeout:       getEnvAsDuration("GEO_TIMEOUT", 3*time.Second),
		},
		Counter: CounterConfig{
			Backend:       getEnv("COUNTER_BACKEND", "memory"),
			RedisAddr:     getEnv("COUNTER_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("COUNTER_REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("COUNTER_REDIS_DB", 0),
		},
		Email: EmailConfig{
			Enabled:      getEnvAsBool("EMAIL_ENABLED", false),
			Region:       getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "security@aegis.local"),
			AlertAddress: getEnv("EMAIL_ALERT_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Risk.VelocityLimit < 1 {
		return nil, fmt.Errorf("RISK_VELOCITY_LIMIT must be at least 1")
	}

	switch cfg.Geo.Provider {
	case "ipinfo", "maxmind":
	default:
		return nil, fmt.Errorf("GEO_PROVIDER must be ipinfo or maxmind, got %q", cfg.Geo.Provider)
	}
	if cfg.Geo.Provider == "maxmind" && cfg.Geo.MaxMindDBPath == "" {
		return nil, fmt.Errorf("GEO_MAXMIND_DB_PATH is required when GEO_PROVIDER=maxmind")
	}

	switch cfg.Counter.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("COUNTER_BACKEND must be memory or redis, got %q", cfg.Counter.Backend)
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for the signing key.
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

func getEnvAsSlice(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
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

	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
