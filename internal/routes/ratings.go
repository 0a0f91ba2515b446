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

// RatingsHandler serves star-rating endpoints
type RatingsHandler struct {
	store  *store.Store
	logger *logrus.Logger
}

// NewRatingsHandler creates a new ratings handler
func NewRatingsHandler(st *store.Store, logger *logrus.Logger) *RatingsHandler {
	return &RatingsHandler{
		store:  st,
		logger: logger,
	}
}

// GetUserRatings lists all ratings a profile has submitted
func (h *RatingsHandler) GetUserRatings(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || userID < 1 {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Invalid user id", err))
	}

	if err := h.requireSelfOrAdmin(c, userID); err != nil {
		return writeError(c, err)
	}

	ratings, err := h.store.RatingsByUser(c.Context(), userID)
	if err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to list ratings", err))
	}

	return c.JSON(ratings)
}

// GetRating returns one rating by user and movie
func (h *RatingsHandler) GetRating(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || userID < 1 {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Invalid user id", err))
	}

	rating, err := h.store.Rating(c.Context(), userID, c.Params("movieId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "Rating not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to load rating", err))
	}

	return c.JSON(rating)
}

// UpsertRating creates or replaces the caller's rating for a movie
func (h *RatingsHandler) UpsertRating(c *fiber.Ctx) error {
	var rating models.Rating
	if err := c.BodyParser(&rating); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}

	if rating.ShowID == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "showId is required", nil))
	}
	if rating.Rating < 1 || rating.Rating > 5 {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Rating must be between 1 and 5", nil))
	}

	// The rating always belongs to the caller's own profile
	profileID := middleware.GetProfileID(c)
	if profileID == 0 {
		return writeError(c, apperrors.NewAppError(apperrors.CodeForbidden, "No profile linked to this account", nil))
	}
	rating.UserID = profileID

	if err := h.store.UpsertRating(c.Context(), &rating); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to save rating", err))
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": rating.UserID,
		"show_id": rating.ShowID,
		"rating":  rating.Rating,
	}).Debug("Rating saved")

	return c.JSON(rating)
}

// DeleteRating removes a rating
func (h *RatingsHandler) DeleteRating(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || userID < 1 {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Invalid user id", err))
	}

	if err := h.requireSelfOrAdmin(c, userID); err != nil {
		return writeError(c, err)
	}

	if err := h.store.DeleteRating(c.Context(), userID, c.Params("movieId")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "Rating not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to delete rating", err))
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// requireSelfOrAdmin rejects access to another profile's ratings unless the
// caller is an administrator
func (h *RatingsHandler) requireSelfOrAdmin(c *fiber.Ctx, userID int64) error {
	claims := middleware.GetUserClaims(c)
	if role, _ := claims["role"].(string); role == models.AdministratorRole {
		return nil
	}
	if middleware.GetProfileID(c) != userID {
		return apperrors.NewAppError(apperrors.CodeForbidden, "Cannot access another user's ratings", nil)
	}
	return nil
}
