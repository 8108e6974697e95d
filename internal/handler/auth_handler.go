package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/utils"
)

// AuthHandler handles registration, login and profile endpoints.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterPublic wires the unauthenticated auth routes.
func (h *AuthHandler) RegisterPublic(router fiber.Router) {
	router.Post("/register", h.register)
	router.Post("/login", h.login)
	router.Post("/refresh", h.refresh)
}

// RegisterProtected wires the profile routes onto an authenticated /me group.
func (h *AuthHandler) RegisterProtected(router fiber.Router) {
	router.Get("", h.me)
	router.Put("", h.updateProfile)
	router.Put("/password", h.changePassword)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Register(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		if errors.Is(err, service.ErrEmailTaken) {
			return utils.SendError(c, fiber.StatusConflict, "email already registered")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to register user")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to register user")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user registered", result)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Login(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid email or password")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to log in")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to log in")
	}

	return utils.SendSuccess(c, "logged in", result)
}

func (h *AuthHandler) refresh(c *fiber.Ctx) error {
	var payload dto.RefreshRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Refresh(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid refresh token")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to refresh tokens")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to refresh tokens")
	}

	return utils.SendSuccess(c, "tokens refreshed", result)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	result, err := h.service.Me(c.Context(), userIDFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load profile")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load profile")
	}

	return utils.SendSuccess(c, "profile retrieved", result)
}

func (h *AuthHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.ProfileUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.UpdateProfile(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to update profile")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update profile")
	}

	return utils.SendSuccess(c, "profile updated", result)
}

func (h *AuthHandler) changePassword(c *fiber.Ctx) error {
	var payload dto.PasswordChangeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.ChangePassword(c.Context(), userIDFromContext(c), payload); err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			return utils.SendError(c, fiber.StatusUnauthorized, "current password incorrect")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to change password")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to change password")
	}

	return utils.SendSuccess(c, "password changed", nil)
}
