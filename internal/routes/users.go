package routes

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/cineniche/catalog-api/internal/middleware"
	"github.com/cineniche/catalog-api/internal/models"
	"github.com/cineniche/catalog-api/internal/store"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// UsersHandler serves profile management endpoints
type UsersHandler struct {
	store  *store.Store
	logger *logrus.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(st *store.Store, logger *logrus.Logger) *UsersHandler {
	return &UsersHandler{
		store:  st,
		logger: logger,
	}
}

// ListProfiles returns all profiles (admin)
func (h *UsersHandler) ListProfiles(c *fiber.Ctx) error {
	profiles, err := h.store.ListProfiles(c.Context())
	if err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to list users", err))
	}
	return c.JSON(profiles)
}

// GetProfile returns one profile. Non-admins can only read their own.
func (h *UsersHandler) GetProfile(c *fiber.Ctx) error {
	id, err := parseProfileID(c)
	if err != nil {
		return writeError(c, err)
	}

	claims := middleware.GetUserClaims(c)
	if role, _ := claims["role"].(string); role != models.AdministratorRole {
		if middleware.GetProfileID(c) != id {
			return writeError(c, apperrors.NewAppError(apperrors.CodeForbidden, "Cannot read another user's profile", nil))
		}
	}

	profile, err := h.store.ProfileByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "User not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to load user", err))
	}

	return c.JSON(profile)
}

// CreateProfile adds a profile row (admin). A zero user id gets the next
// sequential id.
func (h *UsersHandler) CreateProfile(c *fiber.Ctx) error {
	var profile models.Profile
	if err := c.BodyParser(&profile); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}

	if profile.Email == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Email is required", nil))
	}

	if err := h.store.CreateProfile(c.Context(), &profile); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeConflict, "A user with that email already exists", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to create user", err))
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

// UpdateProfile replaces a profile's fields (admin)
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	id, err := parseProfileID(c)
	if err != nil {
		return writeError(c, err)
	}

	var profile models.Profile
	if err := c.BodyParser(&profile); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}
	profile.UserID = id

	if err := h.store.UpdateProfile(c.Context(), &profile); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "User not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to update user", err))
	}

	return c.JSON(profile)
}

// DeleteProfile removes a profile and its linked credential (admin)
func (h *UsersHandler) DeleteProfile(c *fiber.Ctx) error {
	id, err := parseProfileID(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.store.DeleteUserByProfile(c.Context(), id); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to delete user credential", err))
	}

	if err := h.store.DeleteProfile(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "User not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to delete user", err))
	}

	h.logger.WithField("profile_id", id).Info("Profile deleted")

	return c.SendStatus(fiber.StatusNoContent)
}

// CheckAdmin reports whether a profile carries the admin flag
func (h *UsersHandler) CheckAdmin(c *fiber.Ctx) error {
	id, err := parseProfileID(c)
	if err != nil {
		return writeError(c, err)
	}

	profile, err := h.store.ProfileByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "User not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to load user", err))
	}

	return c.JSON(fiber.Map{
		"userId":  profile.UserID,
		"isAdmin": profile.Admin == 1,
	})
}

func parseProfileID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.NewAppError(apperrors.CodeValidation, "Invalid user id", err)
	}
	return id, nil
}
