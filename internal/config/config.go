package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	Database      DatabaseConfig      `envconfig:"DATABASE"`
	JWT           JWTConfig           `envconfig:"JWT"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Recommender   RecommenderConfig   `envconfig:"RECOMMENDER"`
	RateLimit     RateLimitConfig     `envconfig:"RATE_LIMIT"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	CORS          CORSConfig          `envconfig:"CORS"`
	Log           LogConfig           `envconfig:"LOG"`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8000"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

type DatabaseConfig struct {
	Path string `envconfig:"PATH" default:"movies.sqlite"`
}

type JWTConfig struct {
	// Secret is required in production; the development default keeps local
	// setups working but the service refuses to start with it outside dev.
	Secret   string        `envconfig:"SECRET" default:""`
	Issuer   string        `envconfig:"ISSUER" default:"cineniche-catalog-api"`
	Audience string        `envconfig:"AUDIENCE" default:"cineniche-web"`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"3h"`
}

type RedisConfig struct {
	Address     string        `envconfig:"ADDRESS" default:"localhost:6379"`
	Password    string        `envconfig:"PASSWORD" default:""`
	Database    int           `envconfig:"DATABASE" default:"0"`
	MaxRetries  int           `envconfig:"MAX_RETRIES" default:"3"`
	PoolSize    int           `envconfig:"POOL_SIZE" default:"100"`
	PoolTimeout time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	TLSEnabled  bool          `envconfig:"TLS_ENABLED" default:"false"`
}

type RecommenderConfig struct {
	TitleURL   string        `envconfig:"TITLE_URL" default:""`
	GenreURL   string        `envconfig:"GENRE_URL" default:""`
	HybridURL  string        `envconfig:"HYBRID_URL" default:""`
	APIKey     string        `envconfig:"API_KEY" default:""`
	Deployment string        `envconfig:"DEPLOYMENT" default:"default"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

type RateLimitConfig struct {
	RPS        int           `envconfig:"RPS" default:"50"`
	Burst      int           `envconfig:"BURST" default:"100"`
	WindowSize time.Duration `envconfig:"WINDOW_SIZE" default:"1s"`
	Enabled    bool          `envconfig:"ENABLED" default:"true"`

	// Credential endpoints get a much smaller bucket to slow guessing.
	AuthRPS     int      `envconfig:"AUTH_RPS" default:"5"`
	AuthBurst   int      `envconfig:"AUTH_BURST" default:"10"`
	ExemptPaths []string `envconfig:"EXEMPT_PATHS" default:"/healthz,/readyz,/metrics,/version"`
}

type ObservabilityConfig struct {
	MetricsPath    string  `envconfig:"METRICS_PATH" default:"/metrics"`
	OTLPEndpoint   string  `envconfig:"OTLP_ENDPOINT" default:"http://localhost:4318"`
	TracingEnabled bool    `envconfig:"TRACING_ENABLED" default:"false"`
	SampleRate     float64 `envconfig:"SAMPLE_RATE" default:"0.1"`
}

type CORSConfig struct {
	AllowOrigins string `envconfig:"ALLOW_ORIGINS" default:"http://localhost:3000"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// devJWTSecret is only ever accepted when Environment is "development".
const devJWTSecret = "dev-only-insecure-secret"

func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", cfg.Server.Port)
	}

	// Fail fast on a missing token secret instead of falling back to a
	// hardcoded value in production.
	if cfg.JWT.Secret == "" {
		if cfg.Server.Environment != "development" {
			return fmt.Errorf("JWT_SECRET is required when SERVER_ENVIRONMENT=%s", cfg.Server.Environment)
		}
		cfg.JWT.Secret = devJWTSecret
	}

	if cfg.JWT.TokenTTL <= 0 {
		return fmt.Errorf("invalid token TTL: %s", cfg.JWT.TokenTTL)
	}

	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %f", cfg.Observability.SampleRate)
	}

	return nil
}
