package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/cineniche/catalog-api/internal/middleware"
	"github.com/cineniche/catalog-api/internal/models"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// InteractionsHandler records client engagement events. Events land in the
// structured log stream where the analytics pipeline picks them up; nothing
// is persisted here.
type InteractionsHandler struct {
	logger *logrus.Logger
}

// NewInteractionsHandler creates a new interactions handler
func NewInteractionsHandler(logger *logrus.Logger) *InteractionsHandler {
	return &InteractionsHandler{
		logger: logger,
	}
}

// Click logs a title click event
func (h *InteractionsHandler) Click(c *fiber.Ctx) error {
	var event models.Interaction
	if err := c.BodyParser(&event); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}

	if event.ShowID == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "showId is required", nil))
	}
	if event.InteractionType == "" {
		event.InteractionType = "click"
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	h.logger.WithFields(logrus.Fields{
		"event":            "interaction",
		"show_id":          event.ShowID,
		"interaction_type": event.InteractionType,
		"timestamp":        event.Timestamp,
		"user_id":          middleware.GetUserID(c),
	}).Info("Interaction recorded")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true})
}
