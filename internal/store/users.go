package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cineniche/catalog-api/internal/models"
)

// UserByEmail looks up a credential by email (case-insensitive) or ErrNotFound
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, security_stamp, totp_secret, two_factor_enabled,
		        recovery_codes, profile_id, created_at, updated_at
		 FROM users WHERE email = ?`, email))
}

// UserByID looks up a credential by id or ErrNotFound
func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, security_stamp, totp_secret, two_factor_enabled,
		        recovery_codes, profile_id, created_at, updated_at
		 FROM users WHERE id = ?`, id))
}

func (s *Store) scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var stamp, secret sql.NullString
	var twoFactor int
	var recovery string
	var profileID sql.NullInt64

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &stamp, &secret, &twoFactor,
		&recovery, &profileID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.SecurityStamp = stamp.String
	u.TOTPSecret = secret.String
	u.TwoFactorEnabled = twoFactor == 1
	if profileID.Valid {
		u.ProfileID = &profileID.Int64
	}
	if err := json.Unmarshal([]byte(recovery), &u.RecoveryCodes); err != nil {
		return nil, fmt.Errorf("decode recovery codes: %w", err)
	}

	return &u, nil
}

// CreateUser inserts a credential row. Returns ErrDuplicate when the email is
// already registered.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	recovery, err := json.Marshal(u.RecoveryCodes)
	if err != nil {
		return fmt.Errorf("encode recovery codes: %w", err)
	}
	if u.RecoveryCodes == nil {
		recovery = []byte("[]")
	}

	var profileID any
	if u.ProfileID != nil {
		profileID = *u.ProfileID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, security_stamp, totp_secret,
		                    two_factor_enabled, recovery_codes, profile_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.SecurityStamp, u.TOTPSecret,
		boolToInt(u.TwoFactorEnabled), string(recovery), profileID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SetTwoFactor stores TOTP enrollment state for a credential
func (s *Store) SetTwoFactor(ctx context.Context, userID, secret string, enabled bool, recoveryCodes []string) error {
	recovery, err := json.Marshal(recoveryCodes)
	if err != nil {
		return fmt.Errorf("encode recovery codes: %w", err)
	}
	if recoveryCodes == nil {
		recovery = []byte("[]")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = ?, two_factor_enabled = ?, recovery_codes = ?, updated_at = ?
		 WHERE id = ?`,
		secret, boolToInt(enabled), string(recovery), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("set two factor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeRecoveryCode removes a matching recovery code, reporting whether it
// was present. Single-use semantics.
func (s *Store) ConsumeRecoveryCode(ctx context.Context, userID, code string) (bool, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return false, err
	}

	remaining := make([]string, 0, len(u.RecoveryCodes))
	found := false
	for _, c := range u.RecoveryCodes {
		if !found && c == code {
			found = true
			continue
		}
		remaining = append(remaining, c)
	}
	if !found {
		return false, nil
	}

	encoded, err := json.Marshal(remaining)
	if err != nil {
		return false, fmt.Errorf("encode recovery codes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET recovery_codes = ?, updated_at = ? WHERE id = ?`,
		string(encoded), time.Now().UTC(), userID)
	if err != nil {
		return false, fmt.Errorf("consume recovery code: %w", err)
	}
	return true, nil
}

// DeleteUserByProfile removes the credential linked to a profile, if any
func (s *Store) DeleteUserByProfile(ctx context.Context, profileID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE profile_id = ?`, profileID)
	if err != nil {
		return fmt.Errorf("delete user by profile: %w", err)
	}
	return nil
}

// HasRole reports whether the credential holds the given role
func (s *Store) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?`, userID, role).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has role: %w", err)
	}
	return n > 0, nil
}

// EnsureRole records role membership as an idempotent upsert. Safe under
// concurrent duplicate logins. Reports whether a row was actually added.
func (s *Store) EnsureRole(ctx context.Context, userID, role string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES (?, ?)
		 ON CONFLICT (user_id, role) DO NOTHING`, userID, role)
	if err != nil {
		return false, fmt.Errorf("ensure role: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ProfileByID looks up a business profile or ErrNotFound
func (s *Store) ProfileByID(ctx context.Context, id int64) (*models.Profile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx,
		`SELECT user_id, name, phone, email, age, gender, city, state, zip,
		        amazon_prime, apple_tv, disney, paramount, admin
		 FROM movies_users WHERE user_id = ?`, id))
}

// ProfileByEmail looks up a business profile by email or ErrNotFound
func (s *Store) ProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx,
		`SELECT user_id, name, phone, email, age, gender, city, state, zip,
		        amazon_prime, apple_tv, disney, paramount, admin
		 FROM movies_users WHERE lower(email) = lower(?)`, email))
}

func (s *Store) scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	var name, phone, email, gender, city, state, zip sql.NullString
	var age, prime, apple, disney, paramount sql.NullInt64

	err := row.Scan(&p.UserID, &name, &phone, &email, &age, &gender, &city, &state, &zip,
		&prime, &apple, &disney, &paramount, &p.Admin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	p.Name = name.String
	p.Phone = phone.String
	p.Email = email.String
	p.Age = int(age.Int64)
	p.Gender = gender.String
	p.City = city.String
	p.State = state.String
	p.Zip = zip.String
	p.AmazonPrime = int(prime.Int64)
	p.AppleTV = int(apple.Int64)
	p.Disney = int(disney.Int64)
	p.Paramount = int(paramount.Int64)

	return &p, nil
}

// ListProfiles returns all business profiles in id order
func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, phone, email, age, gender, city, state, zip,
		        amazon_prime, apple_tv, disney, paramount, admin
		 FROM movies_users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := s.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CreateProfile inserts a profile, assigning max(user_id)+1 when the id is
// zero. Returns ErrDuplicate for an already-registered email.
func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.UserID == 0 {
		var max sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT MAX(user_id) FROM movies_users`).Scan(&max); err != nil {
			return fmt.Errorf("next profile id: %w", err)
		}
		p.UserID = max.Int64 + 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO movies_users (user_id, name, phone, email, age, gender, city, state, zip,
		                           amazon_prime, apple_tv, disney, paramount, admin)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.Phone, p.Email, p.Age, p.Gender, p.City, p.State, p.Zip,
		p.AmazonPrime, p.AppleTV, p.Disney, p.Paramount, p.Admin)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// UpdateProfile replaces a profile's attributes
func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE movies_users SET name = ?, phone = ?, email = ?, age = ?, gender = ?,
		        city = ?, state = ?, zip = ?, amazon_prime = ?, apple_tv = ?, disney = ?,
		        paramount = ?, admin = ?
		 WHERE user_id = ?`,
		p.Name, p.Phone, p.Email, p.Age, p.Gender, p.City, p.State, p.Zip,
		p.AmazonPrime, p.AppleTV, p.Disney, p.Paramount, p.Admin, p.UserID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProfile removes a profile row
func (s *Store) DeleteProfile(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM movies_users WHERE user_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
