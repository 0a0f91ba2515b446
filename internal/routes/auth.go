package routes

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/cineniche/catalog-api/internal/auth"
	"github.com/cineniche/catalog-api/internal/middleware"
	"github.com/cineniche/catalog-api/internal/models"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	issuer *auth.Issuer
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(issuer *auth.Issuer, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		issuer: issuer,
		logger: logger,
	}
}

// Login authenticates an email/password pair and returns a signed token.
// Accounts with two-factor enabled get requiresTwoFactor instead of a token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Email and password are required", nil))
	}

	result, err := h.issuer.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return h.authError(c, err)
	}

	if result.RequiresTwoFactor {
		return c.JSON(models.AuthResponse{
			Success:           true,
			RequiresTwoFactor: true,
			Message:           "Two-factor authentication required",
		})
	}

	expiration := result.ExpiresAt
	return c.JSON(models.AuthResponse{
		Token:      result.Token,
		Expiration: &expiration,
		Success:    true,
		Message:    "Login successful",
	})
}

// Register creates a credential for an existing profile email
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Email and password are required", nil))
	}
	if len(req.Password) < 8 {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Password must be at least 8 characters", nil))
	}

	result, err := h.issuer.Register(c.Context(), req.Email, req.Password)
	if err != nil {
		return h.authError(c, err)
	}

	expiration := result.ExpiresAt
	return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
		Token:      result.Token,
		Expiration: &expiration,
		Success:    true,
		Message:    "Registration successful",
	})
}

// VerifyTwoFactor completes a login with a TOTP or recovery code
func (h *AuthHandler) VerifyTwoFactor(c *fiber.Ctx) error {
	var req models.TwoFactorVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}

	if req.Email == "" || req.Code == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Email and code are required", nil))
	}

	result, err := h.issuer.VerifyTwoFactor(c.Context(), req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		return h.authError(c, err)
	}

	expiration := result.ExpiresAt
	return c.JSON(models.AuthResponse{
		Token:      result.Token,
		Expiration: &expiration,
		Success:    true,
		Message:    "Login successful",
	})
}

// SetupTwoFactor starts two-factor enrollment for the authenticated user
func (h *AuthHandler) SetupTwoFactor(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeUnauthenticated, "Authentication required", nil))
	}

	resp, err := h.issuer.SetupTwoFactor(c.Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(resp)
}

// RefreshToken issues a fresh token for a still-valid bearer token
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeUnauthenticated, "Authentication required", nil))
	}

	result, err := h.issuer.Refresh(c.Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	expiration := result.ExpiresAt
	return c.JSON(models.AuthResponse{
		Token:      result.Token,
		Expiration: &expiration,
		Success:    true,
		Message:    "Token refreshed",
	})
}

// PingAuth echoes the claims of the current token, used by the frontend to
// probe session state.
func (h *AuthHandler) PingAuth(c *fiber.Ctx) error {
	claims := middleware.GetUserClaims(c)
	if claims == nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeUnauthenticated, "Authentication required", nil))
	}

	resp := fiber.Map{
		"email": claims["email"],
		"role":  claims["role"],
	}
	if profileID, ok := claims["profile_id"]; ok {
		resp["profileId"] = profileID
	}
	return c.JSON(resp)
}

// authError renders auth failures in the AuthResponse shape the login UI
// consumes, keeping the message identical for unknown email and bad password.
func (h *AuthHandler) authError(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return writeError(c, err)
	}

	switch appErr.Code {
	case apperrors.CodeInvalidCredentials, apperrors.CodeInvalidTwoFactorCode:
		return c.Status(appErr.HTTPStatus()).JSON(models.AuthResponse{
			Success: false,
			Message: appErr.Message,
		})
	default:
		return writeError(c, appErr)
	}
}
