// Package store provides SQLite persistence for the catalog, identity
// credentials, profiles, and ratings.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/cineniche/catalog-api/internal/models"
)

// Store wraps the SQLite database handle
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open opens (or creates) the SQLite database at path and ensures the schema
func Open(path string, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY under
	// concurrent request handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	genreCols := make([]string, len(models.Genres))
	for i, g := range models.Genres {
		genreCols[i] = fmt.Sprintf("%s INTEGER", g.Column)
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS movies_titles (
		show_id TEXT PRIMARY KEY,
		type TEXT,
		title TEXT NOT NULL,
		director TEXT,
		"cast" TEXT,
		country TEXT,
		release_year INTEGER,
		rating TEXT,
		duration TEXT,
		description TEXT,
		poster_url TEXT,
		%s
	);
	CREATE TABLE IF NOT EXISTS movies_users (
		user_id INTEGER PRIMARY KEY,
		name TEXT,
		phone TEXT,
		email TEXT UNIQUE,
		age INTEGER,
		gender TEXT,
		city TEXT,
		state TEXT,
		zip TEXT,
		amazon_prime INTEGER,
		apple_tv INTEGER,
		disney INTEGER,
		paramount INTEGER,
		admin INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE COLLATE NOCASE NOT NULL,
		password_hash TEXT NOT NULL,
		security_stamp TEXT,
		totp_secret TEXT NOT NULL DEFAULT '',
		two_factor_enabled INTEGER NOT NULL DEFAULT 0,
		recovery_codes TEXT NOT NULL DEFAULT '[]',
		profile_id INTEGER REFERENCES movies_users(user_id),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS user_roles (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		PRIMARY KEY (user_id, role)
	);
	CREATE TABLE IF NOT EXISTS movies_ratings (
		user_id INTEGER NOT NULL,
		show_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		PRIMARY KEY (user_id, show_id)
	);`, strings.Join(genreCols, ",\n\t\t"))

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Ping checks database connectivity (used by the readiness endpoint)
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
