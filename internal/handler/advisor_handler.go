package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/middleware"
	"github.com/noah-isme/kompas-go-api/internal/service"
)

// AdvisorHandler wires the websocket career-advice endpoint.
type AdvisorHandler struct {
	service service.AdvisorService
	logger  zerolog.Logger
}

// NewAdvisorHandler constructs the handler.
func NewAdvisorHandler(service service.AdvisorService, logger zerolog.Logger) *AdvisorHandler {
	return &AdvisorHandler{
		service: service,
		logger:  logger.With().Str("component", "advisor_handler").Logger(),
	}
}

// Register binds the advisor routes under the provided router group.
func (h *AdvisorHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *AdvisorHandler) handleConnection(conn *websocket.Conn) {
	studentID := strings.TrimSpace(conn.Query("student_id"))
	if studentID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "student_id required"))
		_ = conn.Close()
		return
	}

	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.AdvisorConnectionOptions{
		StudentID:     studentID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Str("student_id", studentID).Msg("advisor websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("student_id", studentID).Msg("advisor websocket disconnected")
}
