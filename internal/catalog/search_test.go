package catalog

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineniche/catalog-api/internal/models"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// fakeStore serves movies from memory with the same AND-filter semantics as
// the SQLite store
type fakeStore struct {
	movies []models.Movie
}

func (f *fakeStore) filtered(genres []string) []models.Movie {
	var out []models.Movie
	for _, m := range f.movies {
		keep := true
		for _, g := range genres {
			if !m.HasGenre(g) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeStore) CountMovies(_ context.Context, genres []string) (int, error) {
	return len(f.filtered(genres)), nil
}

func (f *fakeStore) MoviePage(_ context.Context, genres []string, limit, offset int) ([]models.Movie, error) {
	all := f.filtered(genres)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeStore) MoviesByTitleSubstring(_ context.Context, genres []string, term string) ([]models.Movie, error) {
	var out []models.Movie
	for _, m := range f.filtered(genres) {
		if containsFold(m.Title, term) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) MoviesByGenres(_ context.Context, genres []string) ([]models.Movie, error) {
	return f.filtered(genres), nil
}

func containsFold(s, substr string) bool {
	return len(substr) == 0 || indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	ls, lsub := []rune(s), []rune(substr)
	for i := 0; i+len(lsub) <= len(ls); i++ {
		match := true
		for j := range lsub {
			a, b := ls[i+j], lsub[j]
			if 'A' <= a && a <= 'Z' {
				a += 32
			}
			if 'A' <= b && b <= 'Z' {
				b += 32
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func movie(id, title string, genres ...string) models.Movie {
	g := make(map[string]int, len(genres))
	for _, name := range genres {
		g[name] = 1
	}
	return models.Movie{ShowID: id, Title: title, Genres: g}
}

func testEngine(movies ...models.Movie) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewEngine(&fakeStore{movies: movies}, logger)
}

func TestSearch_BrowsePagination(t *testing.T) {
	engine := testEngine(
		movie("s1", "Inception", "Action"),
		movie("s2", "Interstellar", "Action"),
		movie("s3", "Dunkirk", "Dramas"),
		movie("s4", "Tenet", "Action"),
		movie("s5", "Memento", "Thrillers"),
	)

	result, err := engine.Search(context.Background(), Query{PageSize: 2, PageNum: 2})
	require.NoError(t, err)

	assert.Equal(t, "browse", result.Mode)
	assert.Equal(t, 5, result.TotalCount)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "s3", result.Items[0].ShowID)
	assert.Equal(t, "s4", result.Items[1].ShowID)
}

func TestSearch_PageBeyondEndIsEmptyNotError(t *testing.T) {
	engine := testEngine(movie("s1", "Inception", "Action"))

	result, err := engine.Search(context.Background(), Query{PageSize: 10, PageNum: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalCount)
	assert.Empty(t, result.Items)
	assert.NotNil(t, result.Items)
}

func TestSearch_InvalidPagination(t *testing.T) {
	engine := testEngine()

	for _, q := range []Query{
		{PageSize: 0, PageNum: 1},
		{PageSize: 10, PageNum: 0},
		{PageSize: -1, PageNum: -1},
	} {
		_, err := engine.Search(context.Background(), q)
		require.Error(t, err)

		appErr, ok := err.(*apperrors.AppError)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	}
}

func TestSearch_GenreFilterANDSemantics(t *testing.T) {
	engine := testEngine(
		movie("s1", "Both", "Action", "Comedies"),
		movie("s2", "Only Action", "Action"),
		movie("s3", "Only Comedy", "Comedies"),
	)

	result, err := engine.Search(context.Background(), Query{
		PageSize: 10, PageNum: 1,
		Genres: []string{"Action", "Comedies"},
	})
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "s1", result.Items[0].ShowID)
	assert.Equal(t, 1, result.TotalCount)
}

func TestSearch_UnknownGenreReturnsEmpty(t *testing.T) {
	engine := testEngine(movie("s1", "Inception", "Action"))

	result, err := engine.Search(context.Background(), Query{
		PageSize: 10, PageNum: 1,
		Genres: []string{"Western"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalCount)
	assert.Empty(t, result.Items)
}

func TestSearch_ExactSubstringCaseInsensitive(t *testing.T) {
	engine := testEngine(
		movie("s1", "Inception", "Action"),
		movie("s2", "The Incredibles", "Family Movies"),
	)

	result, err := engine.Search(context.Background(), Query{
		PageSize: 10, PageNum: 1,
		Term: "incep",
	})
	require.NoError(t, err)

	assert.Equal(t, "exact", result.Mode)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Inception", result.Items[0].Title)
}

func TestSearch_ExactMatchSuppressesFuzzy(t *testing.T) {
	// "Tenet" is within distance 3 of "Tent", but the substring hit on
	// "Tent City" must keep fuzzy results out entirely.
	engine := testEngine(
		movie("s1", "Tenet", "Action"),
		movie("s2", "Tent City", "Documentaries"),
	)

	result, err := engine.Search(context.Background(), Query{
		PageSize: 10, PageNum: 1,
		Term: "Tent",
	})
	require.NoError(t, err)

	assert.Equal(t, "exact", result.Mode)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Tent City", result.Items[0].Title)
}

func TestSearch_FuzzyFallbackOrderedByDistance(t *testing.T) {
	engine := testEngine(
		movie("s1", "Inception", "Action"),  // distance 1 from "Incepton"
		movie("s2", "Inceptions", "Action"), // distance 2
		movie("s3", "Dunkirk", "Action"),    // far beyond the bound
	)

	result, err := engine.Search(context.Background(), Query{
		PageSize: 10, PageNum: 1,
		Term: "Incepton",
	})
	require.NoError(t, err)

	assert.Equal(t, "fuzzy", result.Mode)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "Inception", result.Items[0].Title)
	assert.Equal(t, "Inceptions", result.Items[1].Title)
	assert.Equal(t, 2, result.TotalCount)
}

func TestSearch_FuzzyTransposition(t *testing.T) {
	// "Inceptoin" needs two single-char edits to reach "Inception"
	engine := testEngine(movie("s1", "Inception", "Action"))

	result, err := engine.Search(context.Background(), Query{
		PageSize: 10, PageNum: 1,
		Term: "Inceptoin",
	})
	require.NoError(t, err)

	assert.Equal(t, "fuzzy", result.Mode)
	require.Len(t, result.Items, 1)
}

func TestSearch_FuzzyExcludesBeyondMaxDistance(t *testing.T) {
	engine := testEngine(movie("s1", "Inception", "Action"))

	result, err := engine.Search(context.Background(), Query{
		PageSize: 10, PageNum: 1,
		Term: "Inceptionnnnn", // 4 insertions away
	})
	require.NoError(t, err)

	assert.Equal(t, "fuzzy", result.Mode)
	assert.Empty(t, result.Items)
	assert.Equal(t, 0, result.TotalCount)
}

func TestSearch_FuzzyRespectsGenreFilter(t *testing.T) {
	engine := testEngine(
		movie("s1", "Inception", "Action"),
		movie("s2", "Inceptio", "Dramas"),
	)

	result, err := engine.Search(context.Background(), Query{
		PageSize: 10, PageNum: 1,
		Genres: []string{"Dramas"},
		Term:   "Incepton",
	})
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "s2", result.Items[0].ShowID)
}

func TestSearch_PaginationPartitionsFuzzyResults(t *testing.T) {
	engine := testEngine(
		movie("s1", "Title A", "Action"),
		movie("s2", "Title B", "Action"),
		movie("s3", "Title C", "Action"),
	)

	seen := map[string]bool{}
	for page := 1; page <= 2; page++ {
		result, err := engine.Search(context.Background(), Query{
			PageSize: 2, PageNum: page,
			Term: "Title X",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalCount)
		for _, m := range result.Items {
			assert.False(t, seen[m.ShowID], "movie %s appeared on two pages", m.ShowID)
			seen[m.ShowID] = true
		}
	}
	assert.Len(t, seen, 3)
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance("Inception", "inception"))
	assert.Equal(t, 1, Distance("Inception", "Incepton"))
	assert.Equal(t, Distance("abc", "xyz"), Distance("xyz", "abc"))
	assert.Equal(t, 3, Distance("kitten", "sitting"))
}
