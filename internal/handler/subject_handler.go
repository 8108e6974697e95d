package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/utils"
)

// SubjectHandler handles the subject catalog endpoints.
type SubjectHandler struct {
	service service.SubjectService
	logger  zerolog.Logger
}

// NewSubjectHandler constructs the handler.
func NewSubjectHandler(service service.SubjectService, logger zerolog.Logger) *SubjectHandler {
	return &SubjectHandler{
		service: service,
		logger:  logger.With().Str("component", "subject_handler").Logger(),
	}
}

// Register wires the read-only catalog routes.
func (h *SubjectHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/teachers", h.listAllTeachers)
	router.Get("/:id", h.get)
	router.Get("/:id/teachers", h.listTeachers)
}

// RegisterAdmin wires the catalog management routes. The guard runs before
// each route so it does not leak onto the shared read-only paths.
func (h *SubjectHandler) RegisterAdmin(router fiber.Router, requireAdmin fiber.Handler) {
	router.Post("", requireAdmin, h.create)
	router.Delete("/:id", requireAdmin, h.delete)
	router.Post("/:id/teachers/:teacherId", requireAdmin, h.assignTeacher)
	router.Delete("/:id/teachers/:teacherId", requireAdmin, h.unassignTeacher)
}

func (h *SubjectHandler) list(c *fiber.Ctx) error {
	result, err := h.service.List(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list subjects")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list subjects")
	}

	return utils.SendSuccess(c, "subjects retrieved", result)
}

func (h *SubjectHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}

	result, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubjectNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "subject not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load subject")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load subject")
	}

	return utils.SendSuccess(c, "subject retrieved", result)
}

func (h *SubjectHandler) listAllTeachers(c *fiber.Ctx) error {
	result, err := h.service.ListTeachers(c.Context(), 0)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list teachers")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list teachers")
	}

	return utils.SendSuccess(c, "teachers retrieved", result)
}

func (h *SubjectHandler) listTeachers(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}

	result, err := h.service.ListTeachers(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubjectNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "subject not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list subject teachers")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list subject teachers")
	}

	return utils.SendSuccess(c, "teachers retrieved", result)
}

func (h *SubjectHandler) create(c *fiber.Ctx) error {
	var payload dto.SubjectCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Create(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create subject")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create subject")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "subject created", result)
}

func (h *SubjectHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		if errors.Is(err, service.ErrSubjectNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "subject not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete subject")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete subject")
	}

	return utils.SendSuccess(c, "subject deleted", nil)
}

func (h *SubjectHandler) assignTeacher(c *fiber.Ctx) error {
	subjectID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}
	teacherID, err := parseUintParam(c, "teacherId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	result, err := h.service.AssignTeacher(c.Context(), subjectID, teacherID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubjectNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "subject not found")
		case errors.Is(err, service.ErrNotATeacher):
			return utils.SendError(c, fiber.StatusBadRequest, "user is not a teacher")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to assign teacher")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to assign teacher")
	}

	return utils.SendSuccess(c, "teacher assigned", result)
}

func (h *SubjectHandler) unassignTeacher(c *fiber.Ctx) error {
	subjectID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}
	teacherID, err := parseUintParam(c, "teacherId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	result, err := h.service.UnassignTeacher(c.Context(), subjectID, teacherID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubjectNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "subject not found")
		case errors.Is(err, service.ErrNotATeacher):
			return utils.SendError(c, fiber.StatusBadRequest, "user is not a teacher")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to unassign teacher")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to unassign teacher")
	}

	return utils.SendSuccess(c, "teacher unassigned", result)
}
