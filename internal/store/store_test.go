package store

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineniche/catalog-api/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	s, err := Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedMovie(t *testing.T, s *Store, id, title string, genres ...string) {
	t.Helper()

	g := make(map[string]int, len(genres))
	for _, name := range genres {
		g[name] = 1
	}
	err := s.CreateMovie(context.Background(), &models.Movie{
		ShowID: id,
		Type:   "Movie",
		Title:  title,
		Genres: g,
	})
	require.NoError(t, err)
}

func TestMoviePageAndCount(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedMovie(t, s, "s1", "Inception", "Action")
	seedMovie(t, s, "s2", "Interstellar", "Action", "Dramas")
	seedMovie(t, s, "s3", "Dunkirk", "Dramas")

	total, err := s.CountMovies(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	page, err := s.MoviePage(ctx, nil, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "s1", page[0].ShowID)
	assert.Equal(t, "s2", page[1].ShowID)

	page, err = s.MoviePage(ctx, nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "s3", page[0].ShowID)
}

func TestGenreFilterANDSemantics(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedMovie(t, s, "s1", "Both", "Action", "Dramas")
	seedMovie(t, s, "s2", "Action Only", "Action")

	total, err := s.CountMovies(ctx, []string{"Action", "Dramas"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	movies, err := s.MoviesByGenres(ctx, []string{"Action", "Dramas"})
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "s1", movies[0].ShowID)
	assert.True(t, movies[0].HasGenre("Action"))
	assert.True(t, movies[0].HasGenre("Dramas"))
}

func TestMoviesByTitleSubstringIsCaseInsensitive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedMovie(t, s, "s1", "Inception", "Action")
	seedMovie(t, s, "s2", "The Incredibles", "Family Movies")
	seedMovie(t, s, "s3", "Dunkirk", "Dramas")

	movies, err := s.MoviesByTitleSubstring(ctx, nil, "iNc")
	require.NoError(t, err)
	assert.Len(t, movies, 2)
}

func TestCreateMovieAssignsNextShowID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedMovie(t, s, "s41", "Existing", "Action")

	m := &models.Movie{Title: "New Movie", Type: "Movie"}
	require.NoError(t, s.CreateMovie(ctx, m))
	assert.Equal(t, "s42", m.ShowID)

	empty := testStore(t)
	first := &models.Movie{Title: "First", Type: "Movie"}
	require.NoError(t, empty.CreateMovie(ctx, first))
	assert.Equal(t, "s1", first.ShowID)
}

func TestUpdateAndDeleteMovie(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedMovie(t, s, "s1", "Original", "Action")

	err := s.UpdateMovie(ctx, &models.Movie{ShowID: "s1", Title: "Renamed", Type: "Movie"})
	require.NoError(t, err)

	got, err := s.MovieByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.False(t, got.HasGenre("Action"))

	require.NoError(t, s.DeleteMovie(ctx, "s1"))
	_, err = s.MovieByID(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.UpdateMovie(ctx, &models.Movie{ShowID: "nope", Title: "x"}), ErrNotFound)
	assert.ErrorIs(t, s.DeleteMovie(ctx, "nope"), ErrNotFound)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	u := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))

	dup := &models.User{ID: "u2", Email: "USER@example.com", PasswordHash: "hash"}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrDuplicate)
}

func TestUserByEmailCaseInsensitive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "User@Example.com", PasswordHash: "hash"}))

	got, err := s.UserByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = s.UserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureRoleIsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "a@b.c", PasswordHash: "h"}))

	added, err := s.EnsureRole(ctx, "u1", models.AdministratorRole)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.EnsureRole(ctx, "u1", models.AdministratorRole)
	require.NoError(t, err)
	assert.False(t, added)

	has, err := s.HasRole(ctx, "u1", models.AdministratorRole)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTwoFactorRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "a@b.c", PasswordHash: "h"}))

	codes := []string{"code1", "code2"}
	require.NoError(t, s.SetTwoFactor(ctx, "u1", "SECRET", true, codes))

	u, err := s.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "SECRET", u.TOTPSecret)
	assert.True(t, u.TwoFactorEnabled)
	assert.Equal(t, codes, u.RecoveryCodes)

	ok, err := s.ConsumeRecoveryCode(ctx, "u1", "code1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ConsumeRecoveryCode(ctx, "u1", "code1")
	require.NoError(t, err)
	assert.False(t, ok)

	u, err = s.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"code2"}, u.RecoveryCodes)
}

func TestCreateProfileAssignsNextID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := &models.Profile{Email: "one@example.com"}
	require.NoError(t, s.CreateProfile(ctx, first))
	assert.Equal(t, int64(1), first.UserID)

	explicit := &models.Profile{UserID: 10, Email: "ten@example.com"}
	require.NoError(t, s.CreateProfile(ctx, explicit))

	next := &models.Profile{Email: "eleven@example.com"}
	require.NoError(t, s.CreateProfile(ctx, next))
	assert.Equal(t, int64(11), next.UserID)
}

func TestProfileByEmailCaseInsensitive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProfile(ctx, &models.Profile{Email: "Person@Example.com", Admin: 1}))

	p, err := s.ProfileByEmail(ctx, "person@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Admin)
}

func TestUpsertRatingReplacesValue(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedMovie(t, s, "s1", "Inception", "Action")

	require.NoError(t, s.UpsertRating(ctx, &models.Rating{UserID: 1, ShowID: "s1", Rating: 3}))
	require.NoError(t, s.UpsertRating(ctx, &models.Rating{UserID: 1, ShowID: "s1", Rating: 5}))

	r, err := s.Rating(ctx, 1, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, r.Rating)

	all, err := s.RatingsByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteMovieRemovesRatings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seedMovie(t, s, "s1", "Inception", "Action")
	require.NoError(t, s.UpsertRating(ctx, &models.Rating{UserID: 1, ShowID: "s1", Rating: 4}))

	require.NoError(t, s.DeleteMovie(ctx, "s1"))

	_, err := s.Rating(ctx, 1, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUserByProfile(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProfile(ctx, &models.Profile{UserID: 5, Email: "p@example.com"}))
	profileID := int64(5)
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "p@example.com", PasswordHash: "h", ProfileID: &profileID}))

	require.NoError(t, s.DeleteUserByProfile(ctx, 5))
	_, err := s.UserByID(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}
