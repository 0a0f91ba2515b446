// Package catalog implements the catalog query engine: paginated browsing
// with genre filtering, exact substring title search, and a bounded
// edit-distance fallback when nothing matches exactly.
package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"

	"github.com/cineniche/catalog-api/internal/metrics"
	"github.com/cineniche/catalog-api/internal/models"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// MaxEditDistance bounds the fuzzy fallback. Titles further than this from
// the search term are never returned.
const MaxEditDistance = 3

// Store is the read-only movie access the engine needs
type Store interface {
	CountMovies(ctx context.Context, genres []string) (int, error)
	MoviePage(ctx context.Context, genres []string, limit, offset int) ([]models.Movie, error)
	MoviesByTitleSubstring(ctx context.Context, genres []string, term string) ([]models.Movie, error)
	MoviesByGenres(ctx context.Context, genres []string) ([]models.Movie, error)
}

// Query is a request-scoped catalog query
type Query struct {
	PageSize int
	PageNum  int // 1-based
	Genres   []string
	Term     string
}

// Result is an ordered catalog page plus the match count before pagination
type Result struct {
	Items      []models.Movie
	TotalCount int
	Mode       string // browse, exact, or fuzzy
}

// Engine executes catalog queries against a Store
type Engine struct {
	store  Store
	logger *logrus.Logger
}

// NewEngine creates a catalog query engine
func NewEngine(store Store, logger *logrus.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Search runs the three-stage catalog query: genre filter, exact substring
// match, then the Levenshtein fallback. Pagination applies uniformly to every
// branch. Read-only.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	if q.PageSize < 1 || q.PageNum < 1 {
		return nil, apperrors.NewAppErrorf(apperrors.CodeValidation, nil,
			"invalid pagination: pageSize=%d pageNum=%d", q.PageSize, q.PageNum)
	}

	// Unknown genre names filter everything out; not an error.
	for _, g := range q.Genres {
		if _, ok := models.GenreColumn(g); !ok {
			metrics.RecordCatalogSearch("browse", "success")
			return &Result{Items: []models.Movie{}, TotalCount: 0, Mode: "browse"}, nil
		}
	}

	term := strings.TrimSpace(q.Term)
	if term == "" {
		return e.browse(ctx, q)
	}
	return e.search(ctx, q, term)
}

func (e *Engine) browse(ctx context.Context, q Query) (*Result, error) {
	total, err := e.store.CountMovies(ctx, q.Genres)
	if err != nil {
		metrics.RecordCatalogSearch("browse", "failure")
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "failed to query catalog", err)
	}

	items, err := e.store.MoviePage(ctx, q.Genres, q.PageSize, (q.PageNum-1)*q.PageSize)
	if err != nil {
		metrics.RecordCatalogSearch("browse", "failure")
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "failed to query catalog", err)
	}

	metrics.RecordCatalogSearch("browse", "success")
	return &Result{Items: nonNil(items), TotalCount: total, Mode: "browse"}, nil
}

func (e *Engine) search(ctx context.Context, q Query, term string) (*Result, error) {
	exact, err := e.store.MoviesByTitleSubstring(ctx, q.Genres, term)
	if err != nil {
		metrics.RecordCatalogSearch("exact", "failure")
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "failed to search catalog", err)
	}

	// Any exact substring hit suppresses the fuzzy fallback entirely.
	if len(exact) > 0 {
		metrics.RecordCatalogSearch("exact", "success")
		return &Result{
			Items:      paginate(exact, q.PageSize, q.PageNum),
			TotalCount: len(exact),
			Mode:       "exact",
		}, nil
	}

	candidates, err := e.store.MoviesByGenres(ctx, q.Genres)
	if err != nil {
		metrics.RecordCatalogSearch("fuzzy", "failure")
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "failed to search catalog", err)
	}
	metrics.RecordFuzzyCandidates(len(candidates))

	// O(n * len(title) * len(term)) over the filtered catalog. Acceptable at
	// catalog scale; revisit before the catalog grows past tens of thousands
	// of titles.
	lowered := strings.ToLower(term)
	type scored struct {
		movie    models.Movie
		distance int
	}
	var matches []scored
	for _, m := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(m.Title), lowered)
		if d <= MaxEditDistance {
			matches = append(matches, scored{movie: m, distance: d})
		}
	}

	// Ascending by distance; ties keep storage order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	ordered := make([]models.Movie, len(matches))
	for i, sm := range matches {
		ordered[i] = sm.movie
	}

	e.logger.WithFields(logrus.Fields{
		"term":       term,
		"candidates": len(candidates),
		"matches":    len(ordered),
	}).Debug("Fuzzy search fallback")

	metrics.RecordCatalogSearch("fuzzy", "success")
	return &Result{
		Items:      paginate(ordered, q.PageSize, q.PageNum),
		TotalCount: len(ordered),
		Mode:       "fuzzy",
	}, nil
}

// Distance exposes the engine's edit-distance measure, lower-casing both
// inputs the same way the fuzzy fallback does.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
}

func paginate(items []models.Movie, pageSize, pageNum int) []models.Movie {
	start := (pageNum - 1) * pageSize
	if start >= len(items) {
		return []models.Movie{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func nonNil(items []models.Movie) []models.Movie {
	if items == nil {
		return []models.Movie{}
	}
	return items
}
