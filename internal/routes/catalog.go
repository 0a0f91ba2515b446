package routes

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/cineniche/catalog-api/internal/catalog"
	"github.com/cineniche/catalog-api/internal/models"
	"github.com/cineniche/catalog-api/internal/store"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// CatalogHandler serves catalog queries and admin movie CRUD
type CatalogHandler struct {
	engine *catalog.Engine
	store  *store.Store
	logger *logrus.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(engine *catalog.Engine, st *store.Store, logger *logrus.Logger) *CatalogHandler {
	return &CatalogHandler{
		engine: engine,
		store:  st,
		logger: logger,
	}
}

// GetCatalog serves the paginated catalog listing with optional genre filters
// and title search
func (h *CatalogHandler) GetCatalog(c *fiber.Ctx) error {
	q := catalog.Query{
		PageSize: c.QueryInt("pageSize", 10),
		PageNum:  c.QueryInt("pageNum", 1),
		Genres:   parseGenresParam(c),
		Term:     c.Query("search"),
	}

	result, err := h.engine.Search(c.Context(), q)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(models.CatalogPage{
		Movies:         result.Items,
		TotalNumMovies: result.TotalCount,
	})
}

// GetGenres lists the genre names the filter UI offers
func (h *CatalogHandler) GetGenres(c *fiber.Ctx) error {
	return c.JSON(models.GenreNames())
}

// GetMovie returns one movie by show id
func (h *CatalogHandler) GetMovie(c *fiber.Ctx) error {
	movie, err := h.store.MovieByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "Movie not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to load movie", err))
	}

	return c.JSON(movie)
}

// CreateMovie adds a movie to the catalog, assigning the next show id when
// the request leaves it empty
func (h *CatalogHandler) CreateMovie(c *fiber.Ctx) error {
	var movie models.Movie
	if err := c.BodyParser(&movie); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}

	if strings.TrimSpace(movie.Title) == "" {
		return writeError(c, apperrors.NewAppError(apperrors.CodeValidation, "Title is required", nil))
	}

	if err := h.store.CreateMovie(c.Context(), &movie); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeConflict, "Movie already exists", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to create movie", err))
	}

	h.logger.WithFields(logrus.Fields{
		"show_id": movie.ShowID,
		"title":   movie.Title,
	}).Info("Movie created")

	return c.Status(fiber.StatusCreated).JSON(movie)
}

// UpdateMovie replaces a movie's fields
func (h *CatalogHandler) UpdateMovie(c *fiber.Ctx) error {
	var movie models.Movie
	if err := c.BodyParser(&movie); err != nil {
		return writeError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Invalid request body", err))
	}
	movie.ShowID = c.Params("id")

	if err := h.store.UpdateMovie(c.Context(), &movie); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "Movie not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to update movie", err))
	}

	return c.JSON(movie)
}

// DeleteMovie removes a movie and its ratings
func (h *CatalogHandler) DeleteMovie(c *fiber.Ctx) error {
	if err := h.store.DeleteMovie(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, apperrors.NewAppError(apperrors.CodeNotFound, "Movie not found", nil))
		}
		return writeError(c, apperrors.NewAppError(apperrors.CodePersistenceFailure, "Failed to delete movie", err))
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// parseGenresParam reads genre filters from either repeated genres= params or
// a single comma-separated value
func parseGenresParam(c *fiber.Ctx) []string {
	var genres []string
	for _, raw := range c.Context().QueryArgs().PeekMulti("genres") {
		for _, part := range strings.Split(string(raw), ",") {
			if g := strings.TrimSpace(part); g != "" {
				genres = append(genres, g)
			}
		}
	}
	return genres
}
