package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineniche/catalog-api/internal/config"
	"github.com/cineniche/catalog-api/internal/models"
)

var authTestTime = time.Date(2025, 4, 7, 12, 0, 0, 0, time.UTC)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:   "test-secret",
		Issuer:   "cineniche-catalog-api",
		Audience: "cineniche-web",
		TokenTTL: 3 * time.Hour,
	}
}

func testAuthMiddleware(now time.Time) *AuthMiddleware {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	a := NewAuthMiddleware(testJWTConfig(), logger)
	a.now = func() time.Time { return now }
	return a
}

func signToken(t *testing.T, overrides map[string]interface{}) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   "u1",
		"email": "user@example.com",
		"role":  "User",
		"iss":   "cineniche-catalog-api",
		"aud":   "cineniche-web",
		"iat":   authTestTime.Unix(),
		"exp":   authTestTime.Add(3 * time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestValidateToken_AcceptedBeforeExpiry(t *testing.T) {
	a := testAuthMiddleware(authTestTime.Add(2*time.Hour + 59*time.Minute))

	claims, err := a.ValidateToken(signToken(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])
}

func TestValidateToken_RejectedAfterExpiry(t *testing.T) {
	a := testAuthMiddleware(authTestTime.Add(3*time.Hour + time.Minute))

	_, err := a.ValidateToken(signToken(t, nil))
	require.Error(t, err)
}

func TestValidateToken_NoSkewAtExactExpiry(t *testing.T) {
	a := testAuthMiddleware(authTestTime.Add(3 * time.Hour))

	_, err := a.ValidateToken(signToken(t, nil))
	require.Error(t, err)
}

func TestValidateToken_RejectsWrongIssuer(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	_, err := a.ValidateToken(signToken(t, map[string]interface{}{"iss": "someone-else"}))
	require.Error(t, err)
}

func TestValidateToken_RejectsWrongAudience(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	_, err := a.ValidateToken(signToken(t, map[string]interface{}{"aud": "other-app"}))
	require.Error(t, err)
}

func TestValidateToken_RejectsMissingExp(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	claims := jwt.MapClaims{
		"sub": "u1",
		"iss": "cineniche-catalog-api",
		"aud": "cineniche-web",
		"iat": authTestTime.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = a.ValidateToken(signed)
	require.Error(t, err)
}

func TestValidateToken_RejectsTamperedSignature(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"iss": "cineniche-catalog-api",
		"aud": "cineniche-web",
		"exp": authTestTime.Add(time.Hour).Unix(),
	}).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	_, err = a.ValidateToken(signed)
	require.Error(t, err)
}

func TestAuthenticate_MissingAndMalformedHeaders(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	app := fiber.New()
	app.Use(a.Authenticate(nil))
	app.Get("/protected", func(c *fiber.Ctx) error { return c.SendString("ok") })

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAuthenticate_SetsClaimsInContext(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	app := fiber.New()
	app.Use(a.Authenticate(nil))
	app.Get("/protected", func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c))
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, nil))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "u1", string(body))
}

func TestAuthenticate_ExemptPathSkipsCheck(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	app := fiber.New()
	app.Use(a.Authenticate([]string{"/public"}))
	app.Get("/public/info", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/public/info", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAdministrator(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	app := fiber.New()
	app.Use(a.Authenticate(nil))
	app.Use(a.RequireAdministrator())
	app.Get("/admin", func(c *fiber.Ctx) error { return c.SendString("ok") })

	userReq := httptest.NewRequest("GET", "/admin", nil)
	userReq.Header.Set("Authorization", "Bearer "+signToken(t, nil))
	resp, err := app.Test(userReq)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	adminReq := httptest.NewRequest("GET", "/admin", nil)
	adminReq.Header.Set("Authorization", "Bearer "+signToken(t, map[string]interface{}{
		"role": models.AdministratorRole,
	}))
	resp, err = app.Test(adminReq)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetProfileID(t *testing.T) {
	a := testAuthMiddleware(authTestTime)

	app := fiber.New()
	app.Use(a.Authenticate(nil))
	app.Get("/p", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": GetProfileID(c)})
	})

	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, map[string]interface{}{
		"profile_id": 42,
	}))

	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42}`, string(body))
}
