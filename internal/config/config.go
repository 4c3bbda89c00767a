package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the AdInsights application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Platforms PlatformsConfig
	Cache     CacheConfig
	Retention RetentionConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Path      string
}

// PlatformConfig holds credentials and endpoint for one ad platform API.
type PlatformConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration

	// Meta
	AccessToken string

	// Google
	DeveloperToken string
	OAuthToken     string
}

type PlatformsConfig struct {
	Meta   PlatformConfig
	Google PlatformConfig
}

// CacheConfig controls period cache freshness.
type CacheConfig struct {
	// MaxAge is the staleness threshold for still-accumulating periods.
	MaxAge       time.Duration
	FetchTimeout time.Duration
}

// RetentionConfig controls the summary retention janitor.
type RetentionConfig struct {
	Enabled    bool
	Interval   time.Duration
	MonthsKept int
	WeeksKept  int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("ADINSIGHTS_HTTP_ADDR", ":8080"),
			Env:             getEnv("ADINSIGHTS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("ADINSIGHTS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("ADINSIGHTS_DB_HOST", "localhost"),
			Port:     getIntEnv("ADINSIGHTS_DB_PORT", 5432),
			User:     getEnv("ADINSIGHTS_DB_USER", "adinsights"),
			Password: getEnv("ADINSIGHTS_DB_PASSWORD", "adinsights_secret"),
			DBName:   getEnv("ADINSIGHTS_DB_NAME", "adinsights"),
			SSLMode:  getEnv("ADINSIGHTS_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("ADINSIGHTS_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("ADINSIGHTS_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("ADINSIGHTS_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("ADINSIGHTS_REDIS_PASSWORD", ""),
			DB:       getIntEnv("ADINSIGHTS_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("ADINSIGHTS_AUTH_ENABLED", true),
			MasterKey: getEnv("ADINSIGHTS_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("ADINSIGHTS_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("ADINSIGHTS_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("ADINSIGHTS_RATE_LIMIT_RPS", 100),
			Burst:   getIntEnv("ADINSIGHTS_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("ADINSIGHTS_LOG_LEVEL", "info"),
			Format: getEnv("ADINSIGHTS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("ADINSIGHTS_METRICS_ENABLED", true),
			Namespace: getEnv("ADINSIGHTS_METRICS_NAMESPACE", "adinsights"),
			Path:      getEnv("ADINSIGHTS_METRICS_PATH", "/metrics"),
		},
		Platforms: PlatformsConfig{
			Meta: PlatformConfig{
				Enabled:     getBoolEnv("ADINSIGHTS_META_ENABLED", true),
				BaseURL:     getEnv("ADINSIGHTS_META_BASE_URL", "https://graph.facebook.com/v19.0"),
				Timeout:     getDurationEnv("ADINSIGHTS_META_TIMEOUT", 15*time.Second),
				AccessToken: getEnv("ADINSIGHTS_META_ACCESS_TOKEN", ""),
			},
			Google: PlatformConfig{
				Enabled:        getBoolEnv("ADINSIGHTS_GOOGLE_ENABLED", false),
				BaseURL:        getEnv("ADINSIGHTS_GOOGLE_BASE_URL", "https://googleads.googleapis.com/v16"),
				Timeout:        getDurationEnv("ADINSIGHTS_GOOGLE_TIMEOUT", 15*time.Second),
				DeveloperToken: getEnv("ADINSIGHTS_GOOGLE_DEVELOPER_TOKEN", ""),
				OAuthToken:     getEnv("ADINSIGHTS_GOOGLE_OAUTH_TOKEN", ""),
			},
		},
		Cache: CacheConfig{
			MaxAge:       getDurationEnv("ADINSIGHTS_CACHE_MAX_AGE", 3*time.Hour),
			FetchTimeout: getDurationEnv("ADINSIGHTS_FETCH_TIMEOUT", 15*time.Second),
		},
		Retention: RetentionConfig{
			Enabled:    getBoolEnv("ADINSIGHTS_RETENTION_ENABLED", true),
			Interval:   getDurationEnv("ADINSIGHTS_RETENTION_INTERVAL", 24*time.Hour),
			MonthsKept: getIntEnv("ADINSIGHTS_RETENTION_MONTHS", 13),
			WeeksKept:  getIntEnv("ADINSIGHTS_RETENTION_WEEKS", 53),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("ADINSIGHTS_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Platforms.Meta.Enabled && c.Platforms.Meta.AccessToken == "" && c.IsProduction() {
		return fmt.Errorf("ADINSIGHTS_META_ACCESS_TOKEN is required when the Meta platform is enabled")
	}
	if c.Platforms.Google.Enabled && c.Platforms.Google.DeveloperToken == "" && c.IsProduction() {
		return fmt.Errorf("ADINSIGHTS_GOOGLE_DEVELOPER_TOKEN is required when the Google platform is enabled")
	}
	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("ADINSIGHTS_CACHE_MAX_AGE must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
