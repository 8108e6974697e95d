package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/utils"
)

// ConsultationHandler handles the booking lifecycle endpoints.
type ConsultationHandler struct {
	service service.ConsultationService
	logger  zerolog.Logger
}

// NewConsultationHandler constructs the handler.
func NewConsultationHandler(service service.ConsultationService, logger zerolog.Logger) *ConsultationHandler {
	return &ConsultationHandler{
		service: service,
		logger:  logger.With().Str("component", "consultation_handler").Logger(),
	}
}

// Register wires the consultation routes for authenticated users.
func (h *ConsultationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Put("/:id/cancel", h.cancel)
}

// RegisterStudent wires the student-only booking routes. The guard runs
// per route so it stays off the paths both sides share.
func (h *ConsultationHandler) RegisterStudent(router fiber.Router, requireStudent fiber.Handler) {
	router.Post("", requireStudent, h.book)
	router.Post("/:id/feedback", requireStudent, h.feedback)
}

// RegisterTeacher wires the teacher-only lifecycle routes.
func (h *ConsultationHandler) RegisterTeacher(router fiber.Router, requireTeacher fiber.Handler) {
	router.Put("/:id/confirm", requireTeacher, h.confirm)
	router.Put("/:id/reject", requireTeacher, h.reject)
	router.Put("/:id/complete", requireTeacher, h.complete)
}

func (h *ConsultationHandler) book(c *fiber.Ctx) error {
	var payload dto.ConsultationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Book(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPastSlot):
			return utils.SendDomainError(c, fiber.StatusBadRequest, "requested slot is in the past", "past_slot")
		case errors.Is(err, service.ErrSlotNotOffered):
			return utils.SendDomainError(c, fiber.StatusUnprocessableEntity, "requested time is not an offered slot", "slot_not_offered")
		case errors.Is(err, service.ErrSlotTaken):
			return utils.SendDomainError(c, fiber.StatusConflict, "slot already booked", "slot_taken")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to book consultation")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to book consultation")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "consultation booked", result)
}

func (h *ConsultationHandler) list(c *fiber.Ctx) error {
	status := models.ConsultationStatus(c.Query("status"))

	result, err := h.service.List(c.Context(), userIDFromContext(c), models.UserRole(userRoleFromContext(c)), status)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list consultations")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list consultations")
	}

	return utils.SendSuccess(c, "consultations retrieved", result)
}

func (h *ConsultationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	result, err := h.service.Get(c.Context(), userIDFromContext(c), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConsultationNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "consultation not found")
		case errors.Is(err, service.ErrNotParticipant):
			return utils.SendError(c, fiber.StatusForbidden, "not part of this consultation")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load consultation")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load consultation")
	}

	return utils.SendSuccess(c, "consultation retrieved", result)
}

func (h *ConsultationHandler) confirm(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	var payload dto.ConsultationConfirmRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	result, err := h.service.Confirm(c.Context(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.lifecycleError(c, err, "failed to confirm consultation")
	}

	return utils.SendSuccess(c, "consultation confirmed", result)
}

func (h *ConsultationHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	result, err := h.service.Reject(c.Context(), userIDFromContext(c), id)
	if err != nil {
		return h.lifecycleError(c, err, "failed to reject consultation")
	}

	return utils.SendSuccess(c, "consultation rejected", result)
}

func (h *ConsultationHandler) cancel(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	var payload dto.ConsultationCancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	result, err := h.service.Cancel(c.Context(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.lifecycleError(c, err, "failed to cancel consultation")
	}

	return utils.SendSuccess(c, "consultation cancelled", result)
}

func (h *ConsultationHandler) complete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	result, err := h.service.Complete(c.Context(), userIDFromContext(c), id)
	if err != nil {
		return h.lifecycleError(c, err, "failed to complete consultation")
	}

	return utils.SendSuccess(c, "consultation completed", result)
}

func (h *ConsultationHandler) feedback(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	var payload dto.ConsultationFeedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Feedback(c.Context(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.lifecycleError(c, err, "failed to save feedback")
	}

	return utils.SendSuccess(c, "feedback saved", result)
}

func (h *ConsultationHandler) lifecycleError(c *fiber.Ctx, err error, message string) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConsultationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "consultation not found")
	case errors.Is(err, service.ErrNotParticipant):
		return utils.SendError(c, fiber.StatusForbidden, "not part of this consultation")
	case errors.Is(err, service.ErrNotConsultationTeacher):
		return utils.SendError(c, fiber.StatusForbidden, "only the consultation's teacher may do this")
	case errors.Is(err, service.ErrNotConsultationStudent):
		return utils.SendError(c, fiber.StatusForbidden, "only the consultation's student may do this")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendDomainError(c, fiber.StatusConflict, "consultation is not in the required status", "invalid_transition")
	}

	requestLogger(h.logger, c).Error().Err(err).Msg(message)
	return utils.SendError(c, fiber.StatusInternalServerError, message)
}
