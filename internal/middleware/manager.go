package middleware

import (
	"github.com/cineniche/catalog-api/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Manager holds all middleware instances
type Manager struct {
	Auth        *AuthMiddleware
	Idempotency *IdempotencyMiddleware
	RateLimit   *RateLimitMiddleware
	RedisClient *redis.Client
	Config      *config.Config
	Logger      *logrus.Logger
}

// NewManager creates a new middleware manager with all middleware initialized.
// Redis is optional: when it is unreachable the rate limiter and idempotency
// cache disable themselves instead of blocking startup.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	redisClient, err := NewRedisClient(&cfg.Redis, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, rate limiting and idempotency are disabled")
		redisClient = nil
	}

	authMiddleware := NewAuthMiddleware(&cfg.JWT, logger)

	idempotencyMiddleware := NewIdempotencyMiddleware(redisClient, logger, []string{
		"/api/v1/catalog/movies",
	})

	rateLimitMiddleware := NewRateLimitMiddleware(&cfg.RateLimit, redisClient, logger)

	return &Manager{
		Auth:        authMiddleware,
		Idempotency: idempotencyMiddleware,
		RateLimit:   rateLimitMiddleware,
		RedisClient: redisClient,
		Config:      cfg,
		Logger:      logger,
	}, nil
}

// Close closes all middleware resources
func (m *Manager) Close() error {
	if m.RedisClient != nil {
		return m.RedisClient.Close()
	}
	return nil
}
