package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/service"
	"github.com/noah-isme/kompas-go-api/internal/utils"
)

// ForecastHandler wires grade forecast endpoints beneath the student resource.
type ForecastHandler struct {
	service service.ForecastService
	logger  zerolog.Logger
}

// NewForecastHandler constructs the handler.
func NewForecastHandler(service service.ForecastService, logger zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{
		service: service,
		logger:  logger.With().Str("component", "forecast_handler").Logger(),
	}
}

// Register attaches forecast routes to the student router group.
func (h *ForecastHandler) Register(router fiber.Router) {
	router.Post("/:id/forecasts/generate", h.generate)
	router.Get("/:id/forecasts", h.list)
}

func (h *ForecastHandler) generate(c *fiber.Ctx) error {
	forecasts, err := h.service.Generate(c.Context(), c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrInsufficientHistory):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("forecast generation failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "forecast generation failed")
		}
	}

	return utils.SendSuccess(c, "forecasts generated", dto.NewForecastResponseSlice(forecasts))
}

func (h *ForecastHandler) list(c *fiber.Ctx) error {
	forecasts, err := h.service.ListByStudent(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list forecasts")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list forecasts")
	}

	return utils.SendSuccess(c, "forecasts retrieved", dto.NewForecastResponseSlice(forecasts))
}
