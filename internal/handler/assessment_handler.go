package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/assessment"
	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/middleware"
	"github.com/noah-isme/kompas-go-api/internal/service"
	"github.com/noah-isme/kompas-go-api/internal/utils"
)

// AssessmentHandler wires assessment run, result and progress stream routes.
type AssessmentHandler struct {
	service   service.AssessmentService
	events    service.EventsService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewAssessmentHandler constructs the handler. The keep-alive interval pads
// the SSE stream during quiet stretches of a run.
func NewAssessmentHandler(service service.AssessmentService, events service.EventsService, keepAlive time.Duration, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		service:   service,
		events:    events,
		logger:    logger.With().Str("component", "assessment_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register attaches assessment routes to the student router group. The run
// limiter guards the run route only; pass nil to disable limiting.
func (h *AssessmentHandler) Register(router fiber.Router, runLimiter fiber.Handler) {
	if runLimiter == nil {
		runLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	router.Post("/:id/assessment/run", runLimiter, h.run)
	router.Get("/:id/assessment/result", h.result)
	router.Get("/:id/assessment/stream", h.stream)
}

func (h *AssessmentHandler) run(c *fiber.Ctx) error {
	var payload dto.RunAssessmentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	result, err := h.service.Run(requestContext(c), c.Params("id"), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, assessment.ErrEmptyFramework):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("assessment run failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "assessment run failed")
		}
	}

	return utils.SendSuccess(c, "assessment completed", result)
}

func (h *AssessmentHandler) result(c *fiber.Ctx) error {
	result, err := h.service.Latest(requestContext(c), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrNoAssessment) {
			return utils.SendError(c, fiber.StatusNotFound, "no assessment result for student")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch assessment result")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch assessment result")
	}

	return utils.SendSuccess(c, "assessment result", result)
}

func (h *AssessmentHandler) stream(c *fiber.Ctx) error {
	studentID := c.Params("id")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
	ctx, cancel := context.WithCancel(ctx)

	stream, cleanup := h.events.Subscribe(studentID)

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-stream:
				if !ok {
					return
				}
				if err := writeRunEvent(w, event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write run event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write run keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func writeRunEvent(w *bufio.Writer, event assessment.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Kind); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
