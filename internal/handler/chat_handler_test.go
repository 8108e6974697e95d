package handler_test

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/handler"
	"github.com/consultlink/api/internal/middleware"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/validation"
)

// chatTestStack stands up the websocket route over a real fiber listener so
// the gorilla dialer can complete an actual upgrade handshake. The caller's
// identity comes from the X-Test-User handshake header.
func chatTestStack(t *testing.T) (string, func(), *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Subject{}, &models.Consultation{}, &models.Message{}))

	messageService := service.NewMessageService(
		repository.NewMessageRepository(db),
		repository.NewConsultationRepository(db),
		nil,
		validation.New(),
		zerolog.Nop(),
	)
	liveChat := service.NewLiveChatService(messageService, nil, "", nil, zerolog.Nop())
	messageService.SetBroadcaster(liveChat)

	app := fiber.New()
	app.Use(middleware.CorrelationID())
	chatGroup := app.Group("/api/v1/chat", func(c *fiber.Ctx) error {
		var userID uint
		if _, err := fmt.Sscanf(c.Get("X-Test-User"), "%d", &userID); err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("user_id", userID)
		c.Locals("user_role", "student")
		return c.Next()
	})
	handler.NewChatHandler(liveChat, zerolog.Nop()).Register(chatGroup)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "ws://" + listener.Addr().String(), shutdown, db
}

func seedOpenConsultation(t *testing.T, db *gorm.DB, studentID, teacherID uint) models.Consultation {
	t.Helper()

	consultation := models.Consultation{
		StudentID:       studentID,
		TeacherID:       teacherID,
		SubjectID:       1,
		ScheduledAt:     time.Now().UTC().Add(-5 * time.Minute),
		DurationMinutes: 30,
		Status:          models.ConsultationConfirmed,
	}
	require.NoError(t, db.Create(&consultation).Error)
	return consultation
}

func dialChat(t *testing.T, baseURL string, userID uint, consultationID string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	url := baseURL + "/api/v1/chat/ws"
	if consultationID != "" {
		url += "?consultation_id=" + consultationID
	}
	conn, resp, err := dialer.Dial(url, http.Header{"X-Test-User": {fmt.Sprintf("%d", userID)}})
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func TestChatWebsocketSendAndEcho(t *testing.T) {
	baseURL, shutdown, db := chatTestStack(t)
	defer shutdown()

	consultation := seedOpenConsultation(t, db, 2, 1)

	conn := dialChat(t, baseURL, 2, "1")
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"receiver_id": consultation.TeacherID,
		"content":     "are we still on for today?",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received dto.MessageResponse
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, consultation.ID, received.ConsultationID)
	require.Equal(t, uint(2), received.SenderID)
	require.Equal(t, "are we still on for today?", received.Content)
	require.Equal(t, "text", received.Type)

	// The message is persisted, not just relayed.
	var count int64
	require.NoError(t, db.Model(&models.Message{}).Where("consultation_id = ?", consultation.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestChatWebsocketGateDenial(t *testing.T) {
	baseURL, shutdown, db := chatTestStack(t)
	defer shutdown()

	// Confirmed but an hour early: joining is fine, sending is not.
	consultation := models.Consultation{
		StudentID:       2,
		TeacherID:       1,
		SubjectID:       1,
		ScheduledAt:     time.Now().UTC().Add(time.Hour),
		DurationMinutes: 30,
		Status:          models.ConsultationConfirmed,
	}
	require.NoError(t, db.Create(&consultation).Error)

	conn := dialChat(t, baseURL, 2, "1")
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"receiver_id": 1,
		"content":     "hello?",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var denial map[string]string
	require.NoError(t, conn.ReadJSON(&denial))
	require.Equal(t, "window_closed", denial["error"])
	require.Equal(t, "not_started", denial["reason"])
}

func TestChatWebsocketRejectsNonParticipant(t *testing.T) {
	baseURL, shutdown, db := chatTestStack(t)
	defer shutdown()

	consultation := seedOpenConsultation(t, db, 2, 1)

	// An unrelated authenticated user must not get room membership: every
	// broadcast for the consultation would otherwise reach them.
	intruder := dialChat(t, baseURL, 99, "1")
	defer intruder.Close()

	require.NoError(t, intruder.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := intruder.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation) || strings.Contains(err.Error(), "close"),
		"expected the socket to be closed, got: %v", err)

	// Traffic between the participants still flows and stays between them.
	participant := dialChat(t, baseURL, 2, "1")
	defer participant.Close()

	require.NoError(t, participant.WriteJSON(map[string]interface{}{
		"receiver_id": consultation.TeacherID,
		"content":     "see you in a minute",
	}))

	require.NoError(t, participant.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received dto.MessageResponse
	require.NoError(t, participant.ReadJSON(&received))
	require.Equal(t, "see you in a minute", received.Content)
}

func TestChatWebsocketRejectsUnconfirmedRoom(t *testing.T) {
	baseURL, shutdown, db := chatTestStack(t)
	defer shutdown()

	consultation := models.Consultation{
		StudentID:       2,
		TeacherID:       1,
		SubjectID:       1,
		ScheduledAt:     time.Now().UTC().Add(time.Hour),
		DurationMinutes: 30,
		Status:          models.ConsultationPending,
	}
	require.NoError(t, db.Create(&consultation).Error)

	conn := dialChat(t, baseURL, 2, "1")
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "a pending consultation has no open room")
}

func TestChatWebsocketRequiresConsultationID(t *testing.T) {
	baseURL, shutdown, _ := chatTestStack(t)
	defer shutdown()

	conn := dialChat(t, baseURL, 2, "")
	defer conn.Close()

	// The server closes the socket immediately with a close frame.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, fiber.StatusBadRequest) || strings.Contains(err.Error(), "close"))
}
