package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDHonorsIncomingHeader(t *testing.T) {
	var captured string
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		captured = GetCorrelationID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "corr-123", captured)
	require.Equal(t, "corr-123", resp.Header.Get("X-Correlation-ID"))
}

func TestCorrelationIDGeneratesWhenAbsent(t *testing.T) {
	var captured string
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		captured = GetCorrelationID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, captured)
	require.Equal(t, captured, resp.Header.Get("X-Correlation-ID"))
	_, err = uuid.Parse(captured)
	require.NoError(t, err)
}

func TestContextWithCorrelationRoundTrip(t *testing.T) {
	ctx := ContextWithCorrelation(context.Background(), "corr-456")
	require.Equal(t, "corr-456", CorrelationIDFromContext(ctx))

	require.Empty(t, CorrelationIDFromContext(context.Background()))
	require.Equal(t, context.Background(), ContextWithCorrelation(context.Background(), "  "))
}
