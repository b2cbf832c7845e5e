package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protectedApp(secret string, captured *string) *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(secret))
	app.Get("/protected", func(c *fiber.Ctx) error {
		if captured != nil {
			if subject, ok := c.Locals("user_id").(string); ok {
				*captured = subject
			}
		}
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := protectedApp("s3cret", nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsNonBearerHeader(t *testing.T) {
	app := protectedApp("s3cret", nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsWrongSignature(t *testing.T) {
	app := protectedApp("s3cret", nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", jwt.MapClaims{"sub": "sv-001"}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedStoresStringSubject(t *testing.T) {
	var subject string
	app := protectedApp("s3cret", &subject)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", jwt.MapClaims{"sub": "sv-001"}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "sv-001", subject)
}

func TestJWTProtectedFormatsNumericSubject(t *testing.T) {
	var subject string
	app := protectedApp("s3cret", &subject)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", jwt.MapClaims{"user_id": 42}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "42", subject)
}
