package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/utils"
)

// AvailabilityHandler handles teacher availability windows and slot listings.
type AvailabilityHandler struct {
	service service.AvailabilityService
	logger  zerolog.Logger
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service service.AvailabilityService, logger zerolog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		logger:  logger.With().Str("component", "availability_handler").Logger(),
	}
}

// Register wires slot browsing for any authenticated user.
func (h *AvailabilityHandler) Register(router fiber.Router) {
	router.Get("/slots/:teacherId", h.daySlots)
	router.Get("/teachers/:teacherId", h.listByTeacher)
}

// RegisterTeacher wires the window management routes for teachers.
func (h *AvailabilityHandler) RegisterTeacher(router fiber.Router) {
	router.Get("", h.listOwn)
	router.Post("", h.create)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *AvailabilityHandler) daySlots(c *fiber.Ctx) error {
	teacherID, err := parseUintParam(c, "teacherId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}
	subjectID, err := parseQueryUint(c, "subject")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}
	date := c.Query("date")
	if date == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "date query parameter is required")
	}

	result, err := h.service.DaySlots(c.Context(), teacherID, subjectID, date)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDate) {
			return utils.SendError(c, fiber.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list slots")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list slots")
	}

	return utils.SendSuccess(c, "slots retrieved", result)
}

func (h *AvailabilityHandler) listByTeacher(c *fiber.Ctx) error {
	teacherID, err := parseUintParam(c, "teacherId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	result, err := h.service.ListByTeacher(c.Context(), teacherID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list availability")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list availability")
	}

	return utils.SendSuccess(c, "availability retrieved", result)
}

func (h *AvailabilityHandler) listOwn(c *fiber.Ctx) error {
	result, err := h.service.ListByTeacher(c.Context(), userIDFromContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list availability")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list availability")
	}

	return utils.SendSuccess(c, "availability retrieved", result)
}

func (h *AvailabilityHandler) create(c *fiber.Ctx) error {
	var payload dto.AvailabilityCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Create(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidWindow):
			return utils.SendError(c, fiber.StatusBadRequest, "window must fit at least one full slot")
		case errors.Is(err, service.ErrSubjectNotAssigned):
			return utils.SendError(c, fiber.StatusBadRequest, "subject is not assigned to this teacher")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create availability window")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create availability window")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "availability window created", result)
}

func (h *AvailabilityHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid window id")
	}

	var payload dto.AvailabilityUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Update(c.Context(), userIDFromContext(c), id, payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrWindowNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "availability window not found")
		case errors.Is(err, service.ErrNotWindowOwner):
			return utils.SendError(c, fiber.StatusForbidden, "window belongs to another teacher")
		case errors.Is(err, service.ErrInvalidWindow):
			return utils.SendError(c, fiber.StatusBadRequest, "window must fit at least one full slot")
		case errors.Is(err, service.ErrSubjectNotAssigned):
			return utils.SendError(c, fiber.StatusBadRequest, "subject is not assigned to this teacher")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to update availability window")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update availability window")
	}

	return utils.SendSuccess(c, "availability window updated", result)
}

func (h *AvailabilityHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid window id")
	}

	if err := h.service.Delete(c.Context(), userIDFromContext(c), id); err != nil {
		switch {
		case errors.Is(err, service.ErrWindowNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "availability window not found")
		case errors.Is(err, service.ErrNotWindowOwner):
			return utils.SendError(c, fiber.StatusForbidden, "window belongs to another teacher")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete availability window")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete availability window")
	}

	return utils.SendSuccess(c, "availability window deleted", nil)
}
