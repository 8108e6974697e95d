package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/utils"
)

// AdminUserHandler handles admin account management endpoints.
type AdminUserHandler struct {
	service service.AdminUserService
	logger  zerolog.Logger
}

// NewAdminUserHandler constructs the handler.
func NewAdminUserHandler(service service.AdminUserService, logger zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_user_handler").Logger(),
	}
}

// Register wires the admin user management routes.
func (h *AdminUserHandler) Register(router fiber.Router) {
	router.Get("/users", h.listUsers)
	router.Post("/teachers", h.createTeacher)
	router.Put("/teachers/:id", h.updateTeacher)
	router.Delete("/teachers/:id", h.deleteTeacher)
}

func (h *AdminUserHandler) listUsers(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	query := dto.UserListQuery{
		Role:     c.Query("role"),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}

	result, err := h.service.ListUsers(c.Context(), query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list users")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list users")
	}

	return utils.SendSuccess(c, "users retrieved", result)
}

func (h *AdminUserHandler) createTeacher(c *fiber.Ctx) error {
	var payload dto.TeacherCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.CreateTeacher(c.Context(), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			return utils.SendError(c, fiber.StatusConflict, "email already registered")
		case errors.Is(err, service.ErrSubjectNotFound):
			return utils.SendError(c, fiber.StatusBadRequest, "one or more subjects do not exist")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create teacher")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create teacher")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "teacher created", result)
}

func (h *AdminUserHandler) updateTeacher(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	var payload dto.TeacherUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.UpdateTeacher(c.Context(), id, payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "teacher not found")
		case errors.Is(err, service.ErrNotATeacher):
			return utils.SendError(c, fiber.StatusBadRequest, "user is not a teacher")
		case errors.Is(err, service.ErrSubjectNotFound):
			return utils.SendError(c, fiber.StatusBadRequest, "one or more subjects do not exist")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to update teacher")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update teacher")
	}

	return utils.SendSuccess(c, "teacher updated", result)
}

func (h *AdminUserHandler) deleteTeacher(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	if err := h.service.DeleteTeacher(c.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "teacher not found")
		case errors.Is(err, service.ErrNotATeacher):
			return utils.SendError(c, fiber.StatusBadRequest, "user is not a teacher")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete teacher")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete teacher")
	}

	return utils.SendSuccess(c, "teacher deleted", nil)
}
