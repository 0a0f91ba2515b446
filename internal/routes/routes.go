package routes

import (
	"errors"
	"time"

	"github.com/cineniche/catalog-api/internal/auth"
	"github.com/cineniche/catalog-api/internal/catalog"
	"github.com/cineniche/catalog-api/internal/clients"
	"github.com/cineniche/catalog-api/internal/config"
	"github.com/cineniche/catalog-api/internal/metrics"
	"github.com/cineniche/catalog-api/internal/middleware"
	"github.com/cineniche/catalog-api/internal/store"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Setup configures all API routes
func Setup(app *fiber.App, cfg *config.Config, logger *logrus.Logger, middlewareManager *middleware.Manager, db *store.Store) {
	searchEngine := catalog.NewEngine(db, logger)
	issuer := auth.NewIssuer(&cfg.JWT, db, db, logger)
	recommenderClient := clients.NewRecommenderClient(&cfg.Recommender, logger)

	// Create route handlers
	catalogHandler := NewCatalogHandler(searchEngine, db, logger)
	authHandler := NewAuthHandler(issuer, logger)
	usersHandler := NewUsersHandler(db, logger)
	ratingsHandler := NewRatingsHandler(db, logger)
	recommendHandler := NewRecommendHandler(recommenderClient, logger)
	interactionsHandler := NewInteractionsHandler(logger)

	// Health check endpoints (no auth required)
	app.Get("/healthz", healthCheck)
	app.Get("/readyz", readinessCheck(db, middlewareManager))
	app.Get("/version", versionHandler)

	// Metrics endpoint (no auth required)
	app.Get(cfg.Observability.MetricsPath, metrics.PrometheusHandler())

	// API routes with middleware
	api := app.Group("/api/v1")

	// Apply global middleware to API routes
	api.Use(metrics.HTTPMetricsMiddleware())
	api.Use(middlewareManager.RateLimit.Handle())
	api.Use(middlewareManager.Idempotency.Handle())
	api.Use(middlewareManager.Idempotency.ResponseCapture())

	// Auth routes (public endpoints - no auth required)
	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/two-factor/verify", authHandler.VerifyTwoFactor)

	// Catalog reads are public: the storefront browses before login
	catalogRoutes := api.Group("/catalog")
	catalogRoutes.Get("/", catalogHandler.GetCatalog)
	catalogRoutes.Get("/genres", catalogHandler.GetGenres)
	catalogRoutes.Get("/movies/:id", catalogHandler.GetMovie)

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(middlewareManager.Auth.Authenticate(nil))

	protectedAuth := protected.Group("/auth")
	protectedAuth.Get("/pingauth", authHandler.PingAuth)
	protectedAuth.Post("/refresh-token", authHandler.RefreshToken)
	protectedAuth.Post("/two-factor/setup", authHandler.SetupTwoFactor)

	ratingRoutes := protected.Group("/ratings")
	ratingRoutes.Get("/user/:id", ratingsHandler.GetUserRatings)
	ratingRoutes.Get("/:userId/:movieId", ratingsHandler.GetRating)
	ratingRoutes.Post("/", ratingsHandler.UpsertRating)
	ratingRoutes.Delete("/:userId/:movieId", ratingsHandler.DeleteRating)

	recommendRoutes := protected.Group("/recommend")
	recommendRoutes.Post("/", recommendHandler.SimilarByTitle)
	recommendRoutes.Post("/genre", recommendHandler.TopByGenre)
	recommendRoutes.Post("/hybrid", recommendHandler.HybridForUser)

	interactionRoutes := protected.Group("/interactions")
	interactionRoutes.Post("/click", interactionsHandler.Click)

	protectedUsers := protected.Group("/users")
	protectedUsers.Get("/check-admin/:id", usersHandler.CheckAdmin)
	protectedUsers.Get("/:id", usersHandler.GetProfile)

	// Admin-only routes
	admin := protected.Group("")
	admin.Use(middlewareManager.Auth.RequireAdministrator())

	admin.Post("/catalog/movies", catalogHandler.CreateMovie)
	admin.Put("/catalog/movies/:id", catalogHandler.UpdateMovie)
	admin.Delete("/catalog/movies/:id", catalogHandler.DeleteMovie)

	admin.Get("/users", usersHandler.ListProfiles)
	admin.Post("/users", usersHandler.CreateProfile)
	admin.Put("/users/:id", usersHandler.UpdateProfile)
	admin.Delete("/users/:id", usersHandler.DeleteProfile)

	// 404 handler
	app.Use(notFoundHandler)
}

// writeError renders an error with the standard {error:{...}} body. AppErrors
// keep their mapped status; anything else becomes a 500 with a neutral message.
func writeError(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.HTTPStatus()).JSON(appErr.ToErrorResponse(c.Get("X-Request-ID")))
	}

	fallback := apperrors.NewAppError(apperrors.CodeInternalError, "Internal server error", err)
	return c.Status(fallback.HTTPStatus()).JSON(fallback.ToErrorResponse(c.Get("X-Request-ID")))
}

// healthCheck returns the health status of the service
func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "catalog-api",
	})
}

// readinessCheck checks if the service is ready to accept traffic
func readinessCheck(db *store.Store, middlewareManager *middleware.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := db.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "not ready",
				"reason":    "database unavailable",
				"error":     err.Error(),
				"timestamp": time.Now().UTC(),
			})
		}

		// Redis is optional; only probe it when configured
		if middlewareManager.RedisClient != nil {
			redisHealthCheck := middleware.RedisHealthCheck(middlewareManager.RedisClient, middlewareManager.Logger)
			if err := redisHealthCheck(); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":    "not ready",
					"reason":    "redis unavailable",
					"error":     err.Error(),
					"timestamp": time.Now().UTC(),
				})
			}
		}

		return c.JSON(fiber.Map{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "catalog-api",
		})
	}
}

// versionHandler returns version information
func versionHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "catalog-api",
		"version": getVersion(),
		"commit":  getCommit(),
		"built":   getBuildTime(),
	})
}

// notFoundHandler handles 404 errors
func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": fiber.Map{
			"code":     "NOT_FOUND",
			"message":  "The requested resource was not found",
			"path":     c.Path(),
			"trace_id": c.Get("X-Request-ID"),
		},
	})
}

// Helper functions for version info
func getVersion() string {
	// This would typically be set during build
	return "dev"
}

func getCommit() string {
	// This would typically be set during build
	return "unknown"
}

func getBuildTime() string {
	// This would typically be set during build
	return "unknown"
}
