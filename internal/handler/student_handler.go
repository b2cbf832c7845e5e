package handler

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kompas-go-api/internal/dto"
	"github.com/noah-isme/kompas-go-api/internal/service"
	"github.com/noah-isme/kompas-go-api/internal/utils"
)

// StudentHandler wires student profile, grade and roster endpoints.
type StudentHandler struct {
	service service.StudentService
	logger  zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(service service.StudentService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		service: service,
		logger:  logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches student routes to the router group.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Post("/import", h.importRoster)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/grades", h.addGrades)
	router.Get("/:id/grades/export", h.exportGrades)
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateStudentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.service.Create(c.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentExists):
			return utils.SendError(c, fiber.StatusConflict, "student already exists")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create student")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create student")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	req := dto.StudentListRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
	}

	response, err := h.service.List(c.Context(), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list students")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list students")
	}

	return utils.SendSuccess(c, "students retrieved", response)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	student, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch student")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch student")
	}

	return utils.SendSuccess(c, "student retrieved", student)
}

func (h *StudentHandler) update(c *fiber.Ctx) error {
	var payload dto.UpdateStudentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.service.Update(c.Context(), c.Params("id"), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to update student")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update student")
		}
	}

	return utils.SendSuccess(c, "student updated", student)
}

func (h *StudentHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete student")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete student")
	}

	return utils.SendSuccess(c, "student deleted", nil)
}

func (h *StudentHandler) addGrades(c *fiber.Ctx) error {
	var payload dto.AddGradesRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	grades, err := h.service.AddGrades(c.Context(), c.Params("id"), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to add grades")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to add grades")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grades recorded", grades)
}

func (h *StudentHandler) importRoster(c *fiber.Ctx) error {
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
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to read roster upload")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to read roster upload")
		}
	}

	result, err := h.service.ImportRoster(c.Context(), reader)
	if err != nil {
		if errors.Is(err, service.ErrRosterHeader) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("roster import failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "roster import failed")
	}

	return utils.SendSuccess(c, "roster imported", result)
}

func (h *StudentHandler) exportGrades(c *fiber.Ctx) error {
	id := c.Params("id")

	var buf bytes.Buffer
	if err := h.service.ExportRoster(c.Context(), id, &buf); err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to export grades")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to export grades")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", id+"-grades.csv"))
	return c.Send(buf.Bytes())
}
