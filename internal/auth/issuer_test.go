package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cineniche/catalog-api/internal/config"
	"github.com/cineniche/catalog-api/internal/models"
	"github.com/cineniche/catalog-api/internal/store"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

type fakeCreds struct {
	users    map[string]*models.User // keyed by lowercase email
	roles    map[string]map[string]bool
	roleAdds int
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{
		users: map[string]*models.User{},
		roles: map[string]map[string]bool{},
	}
}

func (f *fakeCreds) add(u *models.User) {
	f.users[strings.ToLower(u.Email)] = u
}

func (f *fakeCreds) UserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.users[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeCreds) UserByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCreds) CreateUser(_ context.Context, u *models.User) error {
	if _, exists := f.users[strings.ToLower(u.Email)]; exists {
		return store.ErrDuplicate
	}
	f.add(u)
	return nil
}

func (f *fakeCreds) HasRole(_ context.Context, userID, role string) (bool, error) {
	return f.roles[userID][role], nil
}

func (f *fakeCreds) EnsureRole(_ context.Context, userID, role string) (bool, error) {
	if f.roles[userID] == nil {
		f.roles[userID] = map[string]bool{}
	}
	if f.roles[userID][role] {
		return false, nil
	}
	f.roles[userID][role] = true
	f.roleAdds++
	return true, nil
}

func (f *fakeCreds) SetTwoFactor(_ context.Context, userID, secret string, enabled bool, codes []string) error {
	for _, u := range f.users {
		if u.ID == userID {
			u.TOTPSecret = secret
			u.TwoFactorEnabled = enabled
			u.RecoveryCodes = codes
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeCreds) ConsumeRecoveryCode(_ context.Context, userID, code string) (bool, error) {
	for _, u := range f.users {
		if u.ID != userID {
			continue
		}
		for i, c := range u.RecoveryCodes {
			if c == code {
				u.RecoveryCodes = append(u.RecoveryCodes[:i], u.RecoveryCodes[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

type fakeProfiles struct {
	profiles map[int64]*models.Profile
}

func (f *fakeProfiles) ProfileByID(_ context.Context, id int64) (*models.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) ProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	for _, p := range f.profiles {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

const testSecret = "test-secret"

var testTime = time.Date(2025, 4, 7, 12, 0, 0, 0, time.UTC)

func testIssuer(creds *fakeCreds, profiles *fakeProfiles) *Issuer {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.JWTConfig{
		Secret:   testSecret,
		Issuer:   "cineniche-catalog-api",
		Audience: "cineniche-web",
		TokenTTL: 3 * time.Hour,
	}
	iss := NewIssuer(cfg, creds, profiles, logger)
	iss.now = func() time.Time { return testTime }
	return iss
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func parseClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return testTime }))
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return parsed.Claims.(jwt.MapClaims)
}

func TestLogin_UnknownEmailAndWrongPasswordLookIdentical(t *testing.T) {
	creds := newFakeCreds()
	creds.add(&models.User{ID: "u1", Email: "known@example.com", PasswordHash: hashPassword(t, "correct")})
	issuer := testIssuer(creds, &fakeProfiles{})

	_, errUnknown := issuer.Login(context.Background(), "nobody@example.com", "whatever")
	_, errWrongPw := issuer.Login(context.Background(), "known@example.com", "wrong")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)

	appUnknown := errUnknown.(*apperrors.AppError)
	appWrongPw := errWrongPw.(*apperrors.AppError)

	assert.Equal(t, appUnknown.Code, appWrongPw.Code)
	assert.Equal(t, appUnknown.Message, appWrongPw.Message)
	assert.Equal(t, GenericLoginMessage, appUnknown.Message)
}

func TestLogin_IssuesTokenWithExpectedClaims(t *testing.T) {
	profileID := int64(42)
	creds := newFakeCreds()
	creds.add(&models.User{
		ID:           "u1",
		Email:        "user@example.com",
		PasswordHash: hashPassword(t, "password1"),
		ProfileID:    &profileID,
	})
	profiles := &fakeProfiles{profiles: map[int64]*models.Profile{
		42: {UserID: 42, Email: "user@example.com"},
	}}
	issuer := testIssuer(creds, profiles)

	result, err := issuer.Login(context.Background(), "user@example.com", "password1")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.False(t, result.RequiresTwoFactor)

	claims := parseClaims(t, result.Token)
	assert.Equal(t, "u1", claims["sub"])
	assert.Equal(t, "user@example.com", claims["email"])
	assert.Equal(t, "User", claims["role"])
	assert.Equal(t, float64(42), claims["profile_id"])
	assert.NotEmpty(t, claims["jti"])
	assert.Equal(t, float64(testTime.Unix()), claims["iat"])
	assert.Equal(t, float64(testTime.Add(3*time.Hour).Unix()), claims["exp"])
	assert.Equal(t, testTime.Add(3*time.Hour), result.ExpiresAt)
}

func TestLogin_ProfileAdminFlagGrantsRoleAndRepairsRow(t *testing.T) {
	profileID := int64(7)
	creds := newFakeCreds()
	creds.add(&models.User{
		ID:           "admin1",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "password1"),
		ProfileID:    &profileID,
	})
	profiles := &fakeProfiles{profiles: map[int64]*models.Profile{
		7: {UserID: 7, Email: "admin@example.com", Admin: 1},
	}}
	issuer := testIssuer(creds, profiles)

	result, err := issuer.Login(context.Background(), "admin@example.com", "password1")
	require.NoError(t, err)

	claims := parseClaims(t, result.Token)
	assert.Equal(t, models.AdministratorRole, claims["role"])
	assert.Equal(t, 1, creds.roleAdds)

	// Second issuance finds the role row and adds nothing
	_, err = issuer.Login(context.Background(), "admin@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, 1, creds.roleAdds)
}

func TestLogin_StaticRoleSurvivesClearedProfileFlag(t *testing.T) {
	profileID := int64(7)
	creds := newFakeCreds()
	creds.add(&models.User{
		ID:           "admin1",
		Email:        "admin@example.com",
		PasswordHash: hashPassword(t, "password1"),
		ProfileID:    &profileID,
	})
	creds.roles["admin1"] = map[string]bool{models.AdministratorRole: true}
	profiles := &fakeProfiles{profiles: map[int64]*models.Profile{
		7: {UserID: 7, Email: "admin@example.com", Admin: 0},
	}}
	issuer := testIssuer(creds, profiles)

	result, err := issuer.Login(context.Background(), "admin@example.com", "password1")
	require.NoError(t, err)

	claims := parseClaims(t, result.Token)
	assert.Equal(t, models.AdministratorRole, claims["role"])
	assert.Equal(t, 0, creds.roleAdds)
}

func TestLogin_TwoFactorGateWithholdsToken(t *testing.T) {
	creds := newFakeCreds()
	creds.add(&models.User{
		ID:               "u1",
		Email:            "user@example.com",
		PasswordHash:     hashPassword(t, "password1"),
		TOTPSecret:       "JBSWY3DPEHPK3PXP",
		TwoFactorEnabled: true,
	})
	issuer := testIssuer(creds, &fakeProfiles{})

	result, err := issuer.Login(context.Background(), "user@example.com", "password1")
	require.NoError(t, err)

	assert.True(t, result.RequiresTwoFactor)
	assert.Empty(t, result.Token)
}

func TestVerifyTwoFactor_ValidCode(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: "user@example.com"})
	require.NoError(t, err)

	creds := newFakeCreds()
	creds.add(&models.User{
		ID:               "u1",
		Email:            "user@example.com",
		PasswordHash:     hashPassword(t, "password1"),
		TOTPSecret:       key.Secret(),
		TwoFactorEnabled: true,
	})
	issuer := testIssuer(creds, &fakeProfiles{})

	code, err := totp.GenerateCode(key.Secret(), testTime)
	require.NoError(t, err)

	result, err := issuer.VerifyTwoFactor(context.Background(), "user@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestVerifyTwoFactor_BadCode(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: "user@example.com"})
	require.NoError(t, err)

	creds := newFakeCreds()
	creds.add(&models.User{
		ID:               "u1",
		Email:            "user@example.com",
		TOTPSecret:       key.Secret(),
		TwoFactorEnabled: true,
	})
	issuer := testIssuer(creds, &fakeProfiles{})

	_, err = issuer.VerifyTwoFactor(context.Background(), "user@example.com", "000000")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidTwoFactorCode, err.(*apperrors.AppError).Code)
}

func TestVerifyTwoFactor_RecoveryCodeIsSingleUse(t *testing.T) {
	creds := newFakeCreds()
	creds.add(&models.User{
		ID:               "u1",
		Email:            "user@example.com",
		TOTPSecret:       "JBSWY3DPEHPK3PXP",
		TwoFactorEnabled: true,
		RecoveryCodes:    []string{"abcde-fghjk"},
	})
	issuer := testIssuer(creds, &fakeProfiles{})

	result, err := issuer.VerifyTwoFactor(context.Background(), "user@example.com", "abcde-fghjk")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = issuer.VerifyTwoFactor(context.Background(), "user@example.com", "abcde-fghjk")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidTwoFactorCode, err.(*apperrors.AppError).Code)
}

func TestVerifyTwoFactor_ConfirmsPendingEnrollment(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: "user@example.com"})
	require.NoError(t, err)

	creds := newFakeCreds()
	creds.add(&models.User{
		ID:               "u1",
		Email:            "user@example.com",
		TOTPSecret:       key.Secret(),
		TwoFactorEnabled: false,
	})
	issuer := testIssuer(creds, &fakeProfiles{})

	code, err := totp.GenerateCode(key.Secret(), testTime)
	require.NoError(t, err)

	_, err = issuer.VerifyTwoFactor(context.Background(), "user@example.com", code)
	require.NoError(t, err)

	user, err := creds.UserByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, user.TwoFactorEnabled)
}

func TestRegister_RequiresExistingProfile(t *testing.T) {
	issuer := testIssuer(newFakeCreds(), &fakeProfiles{profiles: map[int64]*models.Profile{}})

	_, err := issuer.Register(context.Background(), "new@example.com", "password1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, err.(*apperrors.AppError).Code)
}

func TestRegister_LinksProfileAndAutoLogsIn(t *testing.T) {
	creds := newFakeCreds()
	profiles := &fakeProfiles{profiles: map[int64]*models.Profile{
		3: {UserID: 3, Email: "new@example.com"},
	}}
	issuer := testIssuer(creds, profiles)

	result, err := issuer.Register(context.Background(), "new@example.com", "password1")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	claims := parseClaims(t, result.Token)
	assert.Equal(t, float64(3), claims["profile_id"])

	user, err := creds.UserByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	require.NotNil(t, user.ProfileID)
	assert.Equal(t, int64(3), *user.ProfileID)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	creds := newFakeCreds()
	creds.add(&models.User{ID: "u1", Email: "new@example.com", PasswordHash: hashPassword(t, "x")})
	profiles := &fakeProfiles{profiles: map[int64]*models.Profile{
		3: {UserID: 3, Email: "new@example.com"},
	}}
	issuer := testIssuer(creds, profiles)

	_, err := issuer.Register(context.Background(), "new@example.com", "password1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, err.(*apperrors.AppError).Code)
}

func TestRefresh_ReDerivesClaimsFromCurrentState(t *testing.T) {
	profileID := int64(7)
	creds := newFakeCreds()
	creds.add(&models.User{ID: "u1", Email: "user@example.com", ProfileID: &profileID})
	profiles := &fakeProfiles{profiles: map[int64]*models.Profile{
		7: {UserID: 7, Email: "user@example.com"},
	}}
	issuer := testIssuer(creds, profiles)

	first, err := issuer.Refresh(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "User", parseClaims(t, first.Token)["role"])

	// Admin flag flips between issuances; the next token reflects it
	profiles.profiles[7].Admin = 1

	second, err := issuer.Refresh(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AdministratorRole, parseClaims(t, second.Token)["role"])

	assert.NotEqual(t, parseClaims(t, first.Token)["jti"], parseClaims(t, second.Token)["jti"])
}

func TestSetupTwoFactor_GeneratesSecretAndRecoveryCodes(t *testing.T) {
	creds := newFakeCreds()
	creds.add(&models.User{ID: "u1", Email: "user@example.com"})
	issuer := testIssuer(creds, &fakeProfiles{})

	resp, err := issuer.SetupTwoFactor(context.Background(), "u1")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SharedKey)
	assert.Contains(t, resp.AuthenticatorURI, "otpauth://totp/")
	assert.Len(t, resp.RecoveryCodes, 8)

	// Enrollment stays pending until the first verify
	user, err := creds.UserByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, user.TwoFactorEnabled)
	assert.Equal(t, resp.SharedKey, user.TOTPSecret)
}

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes(8)
	require.NoError(t, err)
	require.Len(t, codes, 8)

	seen := map[string]bool{}
	for _, c := range codes {
		assert.Len(t, c, 11)
		assert.Equal(t, byte('-'), c[5])
		assert.False(t, seen[c])
		seen[c] = true
	}
}
