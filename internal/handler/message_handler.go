package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/utils"
)

// MessageHandler handles consultation chat over HTTP.
type MessageHandler struct {
	service service.MessageService
	logger  zerolog.Logger
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(service service.MessageService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		logger:  logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register wires the message routes for authenticated users.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Post("", h.send)
	router.Get("/status/:consultationId", h.windowStatus)
	router.Get("/:consultationId", h.history)
	router.Put("/:consultationId/read", h.markRead)
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Send(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		var gateErr *service.GateClosedError
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrConsultationNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "consultation not found")
		case errors.Is(err, service.ErrNotParticipant):
			return utils.SendError(c, fiber.StatusForbidden, "not part of this consultation")
		case errors.Is(err, service.ErrReceiverNotParticipant):
			return utils.SendError(c, fiber.StatusBadRequest, "receiver is not part of this consultation")
		case errors.As(err, &gateErr):
			return utils.SendDomainError(c, fiber.StatusForbidden, "messaging window is closed", gateErr.Reason)
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to send message")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to send message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", result)
}

func (h *MessageHandler) windowStatus(c *fiber.Ctx) error {
	consultationID, err := parseUintParam(c, "consultationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	result, err := h.service.WindowStatus(c.Context(), userIDFromContext(c), consultationID)
	if err != nil {
		return h.accessError(c, err, "failed to load message window status")
	}

	return utils.SendSuccess(c, "message window status retrieved", result)
}

func (h *MessageHandler) history(c *fiber.Ctx) error {
	consultationID, err := parseUintParam(c, "consultationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	result, err := h.service.History(c.Context(), userIDFromContext(c), consultationID, limit)
	if err != nil {
		return h.accessError(c, err, "failed to load messages")
	}

	return utils.SendSuccess(c, "messages retrieved", result)
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	consultationID, err := parseUintParam(c, "consultationId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	updated, err := h.service.MarkRead(c.Context(), userIDFromContext(c), consultationID)
	if err != nil {
		return h.accessError(c, err, "failed to mark messages read")
	}

	return utils.SendSuccess(c, "messages marked read", fiber.Map{"updated": updated})
}

func (h *MessageHandler) accessError(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrConsultationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "consultation not found")
	case errors.Is(err, service.ErrNotParticipant):
		return utils.SendError(c, fiber.StatusForbidden, "not part of this consultation")
	}

	requestLogger(h.logger, c).Error().Err(err).Msg(message)
	return utils.SendError(c, fiber.StatusInternalServerError, message)
}
