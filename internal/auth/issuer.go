// Package auth implements credential verification, TOTP two-factor checks,
// and issuance of signed access tokens with profile-derived role claims.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/cineniche/catalog-api/internal/config"
	"github.com/cineniche/catalog-api/internal/metrics"
	"github.com/cineniche/catalog-api/internal/models"
	"github.com/cineniche/catalog-api/internal/store"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// GenericLoginMessage is returned for both unknown emails and wrong
// passwords so callers cannot probe which accounts exist.
const GenericLoginMessage = "Invalid email or password"

// CredentialStore is the identity persistence the issuer needs
type CredentialStore interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	HasRole(ctx context.Context, userID, role string) (bool, error)
	EnsureRole(ctx context.Context, userID, role string) (bool, error)
	SetTwoFactor(ctx context.Context, userID, secret string, enabled bool, recoveryCodes []string) error
	ConsumeRecoveryCode(ctx context.Context, userID, code string) (bool, error)
}

// ProfileStore resolves business profiles, the source of truth for admin status
type ProfileStore interface {
	ProfileByID(ctx context.Context, id int64) (*models.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
}

// Result carries the outcome of a successful (or 2FA-pending) authentication
type Result struct {
	Token             string
	ExpiresAt         time.Time
	RequiresTwoFactor bool
}

// Issuer validates credentials and mints signed access tokens
type Issuer struct {
	creds    CredentialStore
	profiles ProfileStore
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewIssuer creates a token issuer from JWT configuration
func NewIssuer(cfg *config.JWTConfig, creds CredentialStore, profiles ProfileStore, logger *logrus.Logger) *Issuer {
	return &Issuer{
		creds:    creds,
		profiles: profiles,
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Login verifies an email/password pair. When the credential has two-factor
// enabled the result carries RequiresTwoFactor and no token.
func (i *Issuer) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := i.creds.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordLoginAttempt("invalid_credentials")
			return nil, apperrors.NewAppError(apperrors.CodeInvalidCredentials, GenericLoginMessage, nil)
		}
		metrics.RecordLoginAttempt("error")
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "login failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.RecordLoginAttempt("invalid_credentials")
		return nil, apperrors.NewAppError(apperrors.CodeInvalidCredentials, GenericLoginMessage, nil)
	}

	if user.TwoFactorEnabled && user.TOTPSecret != "" {
		metrics.RecordLoginAttempt("two_factor_required")
		return &Result{RequiresTwoFactor: true}, nil
	}

	res, err := i.issueToken(ctx, user, "login")
	if err != nil {
		metrics.RecordLoginAttempt("error")
		return nil, err
	}
	metrics.RecordLoginAttempt("success")
	return res, nil
}

// Register creates a credential for an email that already has a business
// profile, links the two, and issues a token (auto-login).
func (i *Issuer) Register(ctx context.Context, email, password string) (*Result, error) {
	if _, err := i.creds.UserByEmail(ctx, email); err == nil {
		return nil, apperrors.NewAppError(apperrors.CodeConflict, "User already exists", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "registration failed", err)
	}

	profile, err := i.profiles.ProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewAppError(apperrors.CodeNotFound,
				"No matching user found. Please try again or contact support.", nil)
		}
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "registration failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeInternalError, "failed to process password", err)
	}

	profileID := profile.UserID
	user := &models.User{
		ID:            uuid.New().String(),
		Email:         email,
		PasswordHash:  string(hash),
		SecurityStamp: uuid.New().String(),
		ProfileID:     &profileID,
	}
	if err := i.creds.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.NewAppError(apperrors.CodeConflict, "User already exists", nil)
		}
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "registration failed", err)
	}

	return i.issueToken(ctx, user, "register")
}

// VerifyTwoFactor validates a TOTP code (or a recovery code for non-6-digit
// input) and completes the login. A successful verify also confirms a pending
// enrollment.
func (i *Issuer) VerifyTwoFactor(ctx context.Context, email, code string) (*Result, error) {
	user, err := i.creds.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewAppError(apperrors.CodeInvalidCredentials, GenericLoginMessage, nil)
		}
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "verification failed", err)
	}

	if user.TOTPSecret == "" {
		return nil, apperrors.NewAppError(apperrors.CodeInvalidTwoFactorCode, "Invalid verification code", nil)
	}

	ok := false
	if len(code) == 6 {
		// 30-second step, 6 digits, one step of drift either way.
		ok, _ = totp.ValidateCustom(code, user.TOTPSecret, i.now().UTC(), totp.ValidateOpts{
			Period:    30,
			Skew:      1,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
	} else {
		ok, err = i.creds.ConsumeRecoveryCode(ctx, user.ID, code)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "verification failed", err)
		}
	}
	if !ok {
		return nil, apperrors.NewAppError(apperrors.CodeInvalidTwoFactorCode, "Invalid verification code", nil)
	}

	if !user.TwoFactorEnabled {
		// Re-read before enabling; a consumed recovery code must stay consumed.
		fresh, err := i.creds.UserByEmail(ctx, email)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "verification failed", err)
		}
		if err := i.creds.SetTwoFactor(ctx, fresh.ID, fresh.TOTPSecret, true, fresh.RecoveryCodes); err != nil {
			return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "verification failed", err)
		}
	}

	return i.issueToken(ctx, user, "two_factor")
}

// SetupTwoFactor generates a TOTP secret and recovery codes for a credential.
// Enrollment stays pending until the first successful VerifyTwoFactor.
func (i *Issuer) SetupTwoFactor(ctx context.Context, userID string) (*models.TwoFactorSetupResponse, error) {
	user, err := i.creds.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewAppError(apperrors.CodeNotFound, "User not found", nil)
		}
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "two-factor setup failed", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      i.issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeInternalError, "two-factor setup failed", err)
	}

	codes, err := GenerateRecoveryCodes(8)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeInternalError, "two-factor setup failed", err)
	}

	if err := i.creds.SetTwoFactor(ctx, user.ID, key.Secret(), false, codes); err != nil {
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "two-factor setup failed", err)
	}

	return &models.TwoFactorSetupResponse{
		SharedKey:        key.Secret(),
		AuthenticatorURI: key.URL(),
		RecoveryCodes:    codes,
		Success:          true,
		Message:          "Scan the key with your authenticator app, then verify a code to finish enrollment",
	}, nil
}

// Refresh re-derives claims from the current credential and profile state and
// issues a fresh token. Requires only a still-valid access token; there is no
// rotating refresh artifact.
func (i *Issuer) Refresh(ctx context.Context, userID string) (*Result, error) {
	user, err := i.creds.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewAppError(apperrors.CodeUnauthenticated, "Unknown user", nil)
		}
		return nil, apperrors.NewAppError(apperrors.CodePersistenceFailure, "token refresh failed", err)
	}
	return i.issueToken(ctx, user, "refresh")
}

// issueToken resolves the credential's role set and signs a token. Runs on
// every issuance path so claims always reflect current profile state.
func (i *Issuer) issueToken(ctx context.Context, user *models.User, flow string) (*Result, error) {
	isAdmin, err := i.resolveAdministrator(ctx, user)
	if err != nil {
		return nil, err
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)

	role := "User"
	if isAdmin {
		role = models.AdministratorRole
	}

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"name":  user.Email,
		"email": user.Email,
		"jti":   uuid.New().String(),
		"role":  role,
		"iss":   i.issuer,
		"aud":   i.audience,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}
	if user.ProfileID != nil {
		claims["profile_id"] = *user.ProfileID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeInternalError, "failed to sign token", err)
	}

	metrics.RecordTokenIssued(flow)
	i.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"flow":    flow,
		"admin":   isAdmin,
	}).Info("Access token issued")

	return &Result{Token: signed, ExpiresAt: expiresAt}, nil
}

// resolveAdministrator merges the two authorization sources: the stored role
// row and the profile admin flag. The profile flag is authoritative for
// granting; a missing role row is repaired with an idempotent upsert. A stale
// role row is never removed here (no auto-demotion path).
func (i *Issuer) resolveAdministrator(ctx context.Context, user *models.User) (bool, error) {
	static, err := i.creds.HasRole(ctx, user.ID, models.AdministratorRole)
	if err != nil {
		return false, apperrors.NewAppError(apperrors.CodePersistenceFailure, "role lookup failed", err)
	}

	derived := false
	if user.ProfileID != nil {
		profile, err := i.profiles.ProfileByID(ctx, *user.ProfileID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, apperrors.NewAppError(apperrors.CodePersistenceFailure, "profile lookup failed", err)
		}
		if err == nil && profile.Admin == 1 {
			derived = true
		}
	}

	if derived && !static {
		added, err := i.creds.EnsureRole(ctx, user.ID, models.AdministratorRole)
		if err != nil {
			return false, apperrors.NewAppError(apperrors.CodePersistenceFailure, "role reconciliation failed", err)
		}
		if added {
			metrics.RecordRoleReconciliation()
			i.logger.WithField("user_id", user.ID).Info("Reconciled Administrator role from profile admin flag")
		}
	}

	return static || derived, nil
}
