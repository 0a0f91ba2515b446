package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/cineniche/catalog-api/internal/config"
	"github.com/cineniche/catalog-api/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type AuthMiddleware struct {
	config *config.JWTConfig
	logger *logrus.Logger
	now    func() time.Time
}

func NewAuthMiddleware(cfg *config.JWTConfig, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// JWT authentication middleware
func (a *AuthMiddleware) Authenticate(exemptPaths []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Check if path is exempt from authentication
		path := c.Path()
		for _, exemptPath := range exemptPaths {
			if strings.HasPrefix(path, exemptPath) {
				return c.Next()
			}
		}

		// Extract token from Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return a.unauthorizedError(c, "MISSING_AUTHORIZATION", "Authorization header is required")
		}

		// Check Bearer token format
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			return a.unauthorizedError(c, "INVALID_TOKEN_FORMAT", "Authorization header must be Bearer token")
		}

		tokenString := authHeader[len(bearerPrefix):]
		if tokenString == "" {
			return a.unauthorizedError(c, "MISSING_TOKEN", "Token is required")
		}

		// Validate JWT token
		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			a.logger.WithError(err).WithField("path", path).Debug("Token validation failed")
			return a.unauthorizedError(c, "INVALID_TOKEN", "Token validation failed")
		}

		// Set user context
		c.Locals("user_claims", claims)
		if userID, ok := claims["sub"].(string); ok {
			c.Locals("user_id", userID)
		}

		return c.Next()
	}
}

// RequireRole guards a route group behind a role claim. Must run after
// Authenticate so the claims are in the request context.
func (a *AuthMiddleware) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := GetUserClaims(c)
		if claims == nil {
			return a.unauthorizedError(c, "MISSING_AUTHORIZATION", "Authorization is required")
		}

		if got, ok := claims["role"].(string); !ok || got != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": fiber.Map{
					"code":     "FORBIDDEN",
					"message":  fmt.Sprintf("Requires the %s role", role),
					"trace_id": c.Get("X-Request-ID"),
				},
			})
		}

		return c.Next()
	}
}

// RequireAdministrator is shorthand for the admin-only route groups.
func (a *AuthMiddleware) RequireAdministrator() fiber.Handler {
	return a.RequireRole(models.AdministratorRole)
}

// ValidateToken verifies an HS256 token signed with the shared secret.
// No leeway is applied: a token is rejected the moment exp passes.
func (a *AuthMiddleware) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.config.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(a.now))

	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}

	// Check if token is valid
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	// Get claims
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("failed to get token claims")
	}

	// Validate standard claims
	if err := a.validateClaims(claims); err != nil {
		return nil, fmt.Errorf("claims validation failed: %w", err)
	}

	return claims, nil
}

// validateClaims validates JWT standard claims
func (a *AuthMiddleware) validateClaims(claims jwt.MapClaims) error {
	// Validate expiration
	if exp, ok := claims["exp"].(float64); ok {
		if a.now().Unix() >= int64(exp) {
			return fmt.Errorf("token has expired")
		}
	} else {
		return fmt.Errorf("exp claim is required")
	}

	// Validate not before
	if nbf, ok := claims["nbf"].(float64); ok {
		if a.now().Unix() < int64(nbf) {
			return fmt.Errorf("token not valid yet")
		}
	}

	// Validate issuer
	if iss, ok := claims["iss"].(string); ok {
		if iss != a.config.Issuer {
			return fmt.Errorf("invalid issuer: expected %s, got %s", a.config.Issuer, iss)
		}
	} else {
		return fmt.Errorf("iss claim is required")
	}

	// Validate audience
	if aud, ok := claims["aud"]; ok {
		switch v := aud.(type) {
		case string:
			if v != a.config.Audience {
				return fmt.Errorf("invalid audience: expected %s, got %s", a.config.Audience, v)
			}
		case []interface{}:
			found := false
			for _, audience := range v {
				if audStr, ok := audience.(string); ok && audStr == a.config.Audience {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("invalid audience: %s not found in %v", a.config.Audience, v)
			}
		default:
			return fmt.Errorf("aud claim must be string or array")
		}
	} else {
		return fmt.Errorf("aud claim is required")
	}

	return nil
}

// unauthorizedError returns a standardized unauthorized error response
func (a *AuthMiddleware) unauthorizedError(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"code":     code,
			"message":  message,
			"trace_id": c.Get("X-Request-ID"),
		},
	})
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("user_id").(string); ok {
		return userID
	}
	return ""
}

// GetUserClaims extracts user claims from context
func GetUserClaims(c *fiber.Ctx) jwt.MapClaims {
	if claims, ok := c.Locals("user_claims").(jwt.MapClaims); ok {
		return claims
	}
	return nil
}

// GetProfileID extracts the linked profile ID from claims, 0 when absent
func GetProfileID(c *fiber.Ctx) int64 {
	claims := GetUserClaims(c)
	if claims == nil {
		return 0
	}
	if id, ok := claims["profile_id"].(float64); ok {
		return int64(id)
	}
	return 0
}
