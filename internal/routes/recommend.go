package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/cineniche/catalog-api/internal/clients"
	"github.com/cineniche/catalog-api/internal/middleware"
	"github.com/cineniche/catalog-api/internal/models"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// RecommendHandler proxies requests to the hosted recommendation models
type RecommendHandler struct {
	client *clients.RecommenderClient
	logger *logrus.Logger
}

// NewRecommendHandler creates a new recommend handler
func NewRecommendHandler(client *clients.RecommenderClient, logger *logrus.Logger) *RecommendHandler {
	return &RecommendHandler{
		client: client,
		logger: logger,
	}
}

// SimilarByTitle forwards a titles-like-this request
func (h *RecommendHandler) SimilarByTitle(c *fiber.Ctx) error {
	var req models.RecommendationRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}
	if req.Title == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "title is required", nil))
	}
	if req.TopN <= 0 {
		req.TopN = 10
	}

	result, err := h.client.SimilarByTitle(c.Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	c.Set("Content-Type", "application/json")
	return c.Send(result)
}

// TopByGenre forwards a top-titles-for-genre request
func (h *RecommendHandler) TopByGenre(c *fiber.Ctx) error {
	var req models.GenreRecommendationRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}
	if req.Genre == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "genre is required", nil))
	}
	if req.TopN <= 0 {
		req.TopN = 10
	}

	result, err := h.client.TopByGenre(c.Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	c.Set("Content-Type", "application/json")
	return c.Send(result)
}

// HybridForUser forwards a personalized recommendation request, filling the
// user id from the caller's profile claim when absent
func (h *RecommendHandler) HybridForUser(c *fiber.Ctx) error {
	var req models.HybridRecommendationRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}
	if req.MovieTitle == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "movie_title is required", nil))
	}
	if req.UserID == 0 {
		req.UserID = middleware.GetProfileID(c)
	}
	if req.TopN <= 0 {
		req.TopN = 10
	}

	result, err := h.client.HybridForUser(c.Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	c.Set("Content-Type", "application/json")
	return c.Send(result)
}
