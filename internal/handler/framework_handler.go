package handler

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/service"
	"github.com/noah-isme/kompas-go-api/internal/utils"
)

// FrameworkHandler wires framework question endpoints. Reads are open to any
// authenticated caller; import and export additionally require the admin
// token sent via the X-Admin-Token header.
type FrameworkHandler struct {
	service service.FrameworkService
	logger  zerolog.Logger
}

// NewFrameworkHandler constructs the handler.
func NewFrameworkHandler(service service.FrameworkService, logger zerolog.Logger) *FrameworkHandler {
	return &FrameworkHandler{
		service: service,
		logger:  logger.With().Str("component", "framework_handler").Logger(),
	}
}

// Register attaches the read-only framework routes.
func (h *FrameworkHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/versions", h.versions)
}

// RegisterAdmin attaches the token-guarded import and export routes.
func (h *FrameworkHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/import", h.importCSV)
	router.Get("/export", h.exportCSV)
}

func (h *FrameworkHandler) list(c *fiber.Ctx) error {
	version := strings.TrimSpace(c.Query("version"))
	if version == "" {
		active, err := h.service.Versions(c.Context())
		if err != nil {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to resolve framework versions")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to list framework")
		}
		version = active.Active
	}

	questions, err := h.service.List(c.Context(), version)
	if err != nil {
		if errors.Is(err, service.ErrFrameworkVersionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "framework version not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list framework")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list framework")
	}

	return utils.SendSuccess(c, "framework retrieved", questions)
}

func (h *FrameworkHandler) versions(c *fiber.Ctx) error {
	versions, err := h.service.Versions(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list framework versions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list framework versions")
	}

	return utils.SendSuccess(c, "framework versions", versions)
}

func (h *FrameworkHandler) importCSV(c *fiber.Ctx) error {
	token := c.Get("X-Admin-Token")

	version := strings.TrimSpace(c.FormValue("version"))
	if version == "" {
		version = strings.TrimSpace(c.Query("version"))
	}
	if version == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "version is required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	reader, err := csvUploadReader(file)
	if err != nil {
		switch {
		case errors.Is(err, errCSVTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, errCSVNotText):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to read framework upload")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to read framework upload")
		}
	}

	result, err := h.service.Import(c.Context(), token, version, reader)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFrameworkUnauthorized):
			return utils.SendError(c, fiber.StatusForbidden, "invalid admin token")
		case errors.Is(err, service.ErrFrameworkHeader), errors.Is(err, service.ErrFrameworkCSV):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("framework import failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "framework import failed")
		}
	}

	return utils.SendSuccess(c, "framework imported", result)
}

func (h *FrameworkHandler) exportCSV(c *fiber.Ctx) error {
	token := c.Get("X-Admin-Token")
	version := strings.TrimSpace(c.Query("version"))
	if version == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "version is required")
	}

	var buf bytes.Buffer
	if err := h.service.Export(c.Context(), token, version, &buf); err != nil {
		switch {
		case errors.Is(err, service.ErrFrameworkUnauthorized):
			return utils.SendError(c, fiber.StatusForbidden, "invalid admin token")
		case errors.Is(err, service.ErrFrameworkVersionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "framework version not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("framework export failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "framework export failed")
		}
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "framework-"+version+".csv"))
	return c.Send(buf.Bytes())
}
