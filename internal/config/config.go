package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	minBcryptCost = 12
	maxBcryptCost = 31
)

var (
	// ErrInvalidConfig marks settings the service cannot start with.
	ErrInvalidConfig = errors.New("configuration error")
	// ErrMissingSecret is returned by Validate when a token signing secret is unset.
	ErrMissingSecret = fmt.Errorf("%w: missing signing secret", ErrInvalidConfig)
	// ErrSharedSecret is returned by Validate when both token kinds share one secret.
	ErrSharedSecret = fmt.Errorf("%w: JWT_SECRET and JWT_REFRESH_SECRET must differ", ErrInvalidConfig)
)

// Config aggregates runtime configuration for the blog API.
type Config struct {
	App       AppConfig
	Log       LogConfig
	Server    ServerConfig
	Postgres  PostgresConfig
	MinIO     MinIOConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Media     MediaConfig
	Metrics   MetricsConfig
}

// AppConfig describes the running service.
type AppConfig struct {
	Name    string `env:"APP_NAME" envDefault:"blog-api"`
	Version string `env:"APP_VERSION" envDefault:"1.0.0"`
	Env     string `env:"APP_ENV" envDefault:"development"`
}

// LogConfig selects the process log level and encoding.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host           string        `env:"BLOG_API_HOST" envDefault:"0.0.0.0"`
	Port           int           `env:"BLOG_API_PORT" envDefault:"3000"`
	ReadTimeout    time.Duration `env:"BLOG_API_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"BLOG_API_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout    time.Duration `env:"BLOG_API_IDLE_TIMEOUT" envDefault:"60s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"blog_app"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"change-me"`
	Database string `env:"POSTGRES_DB" envDefault:"blog"`
	SSLMode  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, strings.ToLower(p.SSLMode))
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKeyID     string `env:"MINIO_ROOT_USER" envDefault:"blog"`
	SecretAccessKey string `env:"MINIO_ROOT_PASSWORD" envDefault:"change-me-strong-password"`
	Bucket          string `env:"MINIO_BUCKET" envDefault:"blog-media"`
	UseSSL          bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	Region          string `env:"MINIO_REGION"`
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string        `env:"JWT_SECRET"`
	RefreshTokenSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTokenTTL     time.Duration `env:"JWT_EXPIRES_IN" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"168h"`
	Issuer             string        `env:"JWT_ISSUER" envDefault:"blog-api"`
	BcryptCost         int           `env:"AUTH_BCRYPT_COST" envDefault:"12"`
}

// RateLimitConfig bounds unauthenticated auth traffic per client IP.
type RateLimitConfig struct {
	Requests int           `env:"RATE_LIMIT_AUTH_REQUESTS" envDefault:"10"`
	Window   time.Duration `env:"RATE_LIMIT_AUTH_WINDOW" envDefault:"1m"`
	Burst    int           `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`
}

// CacheConfig controls the post listing response cache.
type CacheConfig struct {
	Size          int           `env:"CACHE_SIZE" envDefault:"512"`
	TTL           time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	ClearSchedule string        `env:"CACHE_CLEAR_SCHEDULE" envDefault:"0 3 * * *"`
	Timezone      string        `env:"CACHE_TIMEZONE" envDefault:"Asia/Dhaka"`
}

// MediaConfig limits cover image uploads.
type MediaConfig struct {
	MaxUploadBytes int64         `env:"MEDIA_MAX_UPLOAD_BYTES" envDefault:"5242880"`
	PresignTTL     time.Duration `env:"MEDIA_PRESIGN_TTL" envDefault:"15m"`
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string `env:"BLOG_METRICS_PATH" envDefault:"/metrics"`
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Auth.BcryptCost = clampBcryptCost(cfg.Auth.BcryptCost)
	return cfg, nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.AccessTokenSecret) == "" {
		return fmt.Errorf("%w: JWT_SECRET", ErrMissingSecret)
	}
	if strings.TrimSpace(c.Auth.RefreshTokenSecret) == "" {
		return fmt.Errorf("%w: JWT_REFRESH_SECRET", ErrMissingSecret)
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return ErrSharedSecret
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

func clampBcryptCost(cost int) int {
	if cost < minBcryptCost {
		return minBcryptCost
	}
	if cost > maxBcryptCost {
		return maxBcryptCost
	}
	return cost
}
