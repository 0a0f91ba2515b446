package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cineniche/catalog-api/internal/metrics"
	"github.com/cineniche/catalog-api/internal/models"
)

// movieColumns is the SELECT column list for movies_titles, genre flags last
// in registry order.
var movieColumns = func() string {
	cols := []string{"show_id", "type", "title", "director", `"cast"`, "country",
		"release_year", "rating", "duration", "description", "poster_url"}
	for _, g := range models.Genres {
		cols = append(cols, g.Column)
	}
	return strings.Join(cols, ", ")
}()

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (models.Movie, error) {
	var m models.Movie
	var typ, director, cast, country, rating, duration, description, poster sql.NullString
	var year sql.NullInt64
	flags := make([]sql.NullInt64, len(models.Genres))

	dest := []any{&m.ShowID, &typ, &m.Title, &director, &cast, &country,
		&year, &rating, &duration, &description, &poster}
	for i := range flags {
		dest = append(dest, &flags[i])
	}

	if err := row.Scan(dest...); err != nil {
		return m, err
	}

	m.Type = typ.String
	m.Director = director.String
	m.Cast = cast.String
	m.Country = country.String
	m.ReleaseYear = int(year.Int64)
	m.Rating = rating.String
	m.Duration = duration.String
	m.Description = description.String
	m.PosterURL = poster.String

	m.Genres = make(map[string]int)
	for i, g := range models.Genres {
		if flags[i].Valid && flags[i].Int64 == 1 {
			m.Genres[g.Name] = 1
		}
	}

	return m, nil
}

// genreFilter builds an AND filter over genre flag columns. The second return
// is false when any requested genre is unknown, which callers treat as an
// empty result rather than an error.
func genreFilter(genres []string) (string, bool) {
	var b strings.Builder
	for _, name := range genres {
		col, ok := models.GenreColumn(name)
		if !ok {
			return "", false
		}
		fmt.Fprintf(&b, " AND %s = 1", col)
	}
	return b.String(), true
}

// CountMovies returns the number of titles matching all given genres
func (s *Store) CountMovies(ctx context.Context, genres []string) (int, error) {
	filter, ok := genreFilter(genres)
	if !ok {
		return 0, nil
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM movies_titles WHERE 1=1%s", filter)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return count, nil
}

// MoviePage returns a slice of the genre-filtered catalog in storage order
func (s *Store) MoviePage(ctx context.Context, genres []string, limit, offset int) ([]models.Movie, error) {
	filter, ok := genreFilter(genres)
	if !ok {
		return nil, nil
	}

	start := time.Now()
	query := fmt.Sprintf("SELECT %s FROM movies_titles WHERE 1=1%s ORDER BY show_id LIMIT ? OFFSET ?",
		movieColumns, filter)
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("movie page: %w", err)
	}
	defer rows.Close()
	metrics.RecordStoreQuery("movie_page", time.Since(start))

	return collectMovies(rows)
}

// MoviesByTitleSubstring returns genre-filtered titles containing term,
// case-insensitively, in storage order
func (s *Store) MoviesByTitleSubstring(ctx context.Context, genres []string, term string) ([]models.Movie, error) {
	filter, ok := genreFilter(genres)
	if !ok {
		return nil, nil
	}

	start := time.Now()
	query := fmt.Sprintf("SELECT %s FROM movies_titles WHERE 1=1%s AND instr(lower(title), lower(?)) > 0 ORDER BY show_id",
		movieColumns, filter)
	rows, err := s.db.QueryContext(ctx, query, term)
	if err != nil {
		return nil, fmt.Errorf("title substring search: %w", err)
	}
	defer rows.Close()
	metrics.RecordStoreQuery("title_substring", time.Since(start))

	return collectMovies(rows)
}

// MoviesByGenres returns the full genre-filtered catalog in storage order.
// Used as the candidate set for the fuzzy-search fallback.
func (s *Store) MoviesByGenres(ctx context.Context, genres []string) ([]models.Movie, error) {
	filter, ok := genreFilter(genres)
	if !ok {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT %s FROM movies_titles WHERE 1=1%s ORDER BY show_id", movieColumns, filter)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("movies by genres: %w", err)
	}
	defer rows.Close()

	return collectMovies(rows)
}

// MovieByID returns a single title or ErrNotFound
func (s *Store) MovieByID(ctx context.Context, showID string) (*models.Movie, error) {
	query := fmt.Sprintf("SELECT %s FROM movies_titles WHERE show_id = ?", movieColumns)
	m, err := scanMovie(s.db.QueryRowContext(ctx, query, showID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("movie by id: %w", err)
	}
	return &m, nil
}

// CreateMovie inserts a title. When ShowID is empty the next sequential id
// ("s<N>") is assigned.
func (s *Store) CreateMovie(ctx context.Context, m *models.Movie) error {
	if m.ShowID == "" {
		id, err := s.nextShowID(ctx)
		if err != nil {
			return err
		}
		m.ShowID = id
	}

	cols := []string{"show_id", "type", "title", "director", `"cast"`, "country",
		"release_year", "rating", "duration", "description", "poster_url"}
	args := []any{m.ShowID, m.Type, m.Title, m.Director, m.Cast, m.Country,
		m.ReleaseYear, m.Rating, m.Duration, m.Description, m.PosterURL}
	for _, g := range models.Genres {
		cols = append(cols, g.Column)
		args = append(args, m.Genres[g.Name])
	}

	query := fmt.Sprintf("INSERT INTO movies_titles (%s) VALUES (%s)",
		strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create movie: %w", err)
	}
	return nil
}

// UpdateMovie replaces a title's attributes. Returns ErrNotFound for an
// unknown show id.
func (s *Store) UpdateMovie(ctx context.Context, m *models.Movie) error {
	sets := []string{"type = ?", "title = ?", "director = ?", `"cast" = ?`, "country = ?",
		"release_year = ?", "rating = ?", "duration = ?", "description = ?", "poster_url = ?"}
	args := []any{m.Type, m.Title, m.Director, m.Cast, m.Country,
		m.ReleaseYear, m.Rating, m.Duration, m.Description, m.PosterURL}
	for _, g := range models.Genres {
		sets = append(sets, g.Column+" = ?")
		args = append(args, m.Genres[g.Name])
	}
	args = append(args, m.ShowID)

	query := fmt.Sprintf("UPDATE movies_titles SET %s WHERE show_id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update movie: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMovie removes a title and its ratings
func (s *Store) DeleteMovie(ctx context.Context, showID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM movies_titles WHERE show_id = ?", showID)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM movies_ratings WHERE show_id = ?", showID)
	if err != nil {
		return fmt.Errorf("delete movie ratings: %w", err)
	}
	return nil
}

func (s *Store) nextShowID(ctx context.Context) (string, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(CAST(substr(show_id, 2) AS INTEGER)) FROM movies_titles WHERE show_id LIKE 's%'`).Scan(&max)
	if err != nil {
		return "", fmt.Errorf("next show id: %w", err)
	}
	return fmt.Sprintf("s%d", max.Int64+1), nil
}

func collectMovies(rows *sql.Rows) ([]models.Movie, error) {
	var out []models.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
