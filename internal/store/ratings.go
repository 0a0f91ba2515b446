package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cineniche/catalog-api/internal/models"
)

// RatingsByUser returns all ratings recorded by a user
func (s *Store) RatingsByUser(ctx context.Context, userID int64) ([]models.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, show_id, rating FROM movies_ratings WHERE user_id = ? ORDER BY show_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ratings by user: %w", err)
	}
	defer rows.Close()

	var out []models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.UserID, &r.ShowID, &r.Rating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Rating returns a single user/title rating or ErrNotFound
func (s *Store) Rating(ctx context.Context, userID int64, showID string) (*models.Rating, error) {
	var r models.Rating
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, show_id, rating FROM movies_ratings WHERE user_id = ? AND show_id = ?`,
		userID, showID).Scan(&r.UserID, &r.ShowID, &r.Rating)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rating: %w", err)
	}
	return &r, nil
}

// UpsertRating inserts or replaces a user's rating for a title
func (s *Store) UpsertRating(ctx context.Context, r *models.Rating) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO movies_ratings (user_id, show_id, rating) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, show_id) DO UPDATE SET rating = excluded.rating`,
		r.UserID, r.ShowID, r.Rating)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// DeleteRating removes a user's rating for a title
func (s *Store) DeleteRating(ctx context.Context, userID int64, showID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM movies_ratings WHERE user_id = ? AND show_id = ?`, userID, showID)
	if err != nil {
		return fmt.Errorf("delete rating: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
