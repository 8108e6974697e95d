package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/middleware"
	"github.com/consultlink/api/internal/service"
)

// ChatHandler wires the live chat websocket upgrade.
type ChatHandler struct {
	service service.LiveChatService
	logger  zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.LiveChatService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	consultationID, err := strconv.ParseUint(strings.TrimSpace(conn.Query("consultation_id")), 10, 64)
	if err != nil || consultationID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "consultation_id required"))
		_ = conn.Close()
		return
	}

	role := fmt.Sprint(conn.Locals("user_role"))
	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.ChatConnectionOptions{
		UserID:         userID,
		Role:           role,
		ConsultationID: uint(consultationID),
		CorrelationID:  correlation,
		Context:        baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Uint64("consultation_id", consultationID).Msg("chat websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Uint64("consultation_id", consultationID).Msg("chat websocket disconnected")
}

func websocketUserID(conn *websocket.Conn) uint {
	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case float64:
			if v < 0 {
				return 0
			}
			return uint(v)
		case uint:
			return v
		case int:
			if v < 0 {
				return 0
			}
			return uint(v)
		case string:
			parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return 0
			}
			return uint(parsed)
		}
	}
	return 0
}
