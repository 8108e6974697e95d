package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/handler"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
	"github.com/consultlink/api/internal/service"
	"github.com/consultlink/api/internal/utils"
	"github.com/consultlink/api/internal/validation"
)

// consultationApp wires the consultation routes over an in-memory database,
// replacing the JWT middleware with a locals stub that impersonates the
// user named in the X-Test-User / X-Test-Role headers.
func consultationApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Subject{}, &models.AvailabilityWindow{}, &models.Consultation{}, &models.SlotClaim{}))

	svc := service.NewConsultationService(
		repository.NewConsultationRepository(db),
		repository.NewAvailabilityRepository(db),
		repository.NewUserRepository(db),
		nil,
		nil,
		validation.New(),
		zerolog.Nop(),
	)

	consultationHandler := handler.NewConsultationHandler(svc, zerolog.Nop())

	app := fiber.New()
	api := app.Group("/api/v1/consultations", func(c *fiber.Ctx) error {
		var userID uint
		if _, err := fmt.Sscanf(c.Get("X-Test-User"), "%d", &userID); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "missing credentials")
		}
		c.Locals("user_id", userID)
		c.Locals("user_role", c.Get("X-Test-Role"))
		return c.Next()
	})

	consultationHandler.RegisterStudent(api, requireTestRole("student"))
	consultationHandler.RegisterTeacher(api, requireTestRole("teacher"))
	consultationHandler.Register(api)

	return app, db
}

func requireTestRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("X-Test-Role") != role {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

func seedBookingFixtures(t *testing.T, db *gorm.DB) (student, teacher models.User, slot time.Time) {
	t.Helper()

	subject := models.Subject{Name: "Algorithms", Description: "Data structures and algorithms"}
	require.NoError(t, db.Create(&subject).Error)

	teacher = models.User{Name: "Prof. Reyes", Email: "reyes@example.edu", PasswordHash: "x", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&teacher).Error)
	require.NoError(t, db.Model(&teacher).Association("Subjects").Append(&subject))

	student = models.User{Name: "Dana Cruz", Email: "dana@example.edu", PasswordHash: "x", Role: models.RoleStudent, StudentNumber: "21-3045-117"}
	require.NoError(t, db.Create(&student).Error)

	// Pick a slot at least a day out so the booking is always in the future.
	slot = time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour).Add(9 * time.Hour)

	window := models.AvailabilityWindow{
		TeacherID:           teacher.ID,
		SubjectID:           subject.ID,
		DayOfWeek:           int(slot.Weekday()),
		StartTime:           "09:00",
		EndTime:             "11:00",
		SlotDurationMinutes: 30,
		MaxCapacity:         1,
	}
	require.NoError(t, db.Create(&window).Error)

	return student, teacher, slot
}

func doJSON(t *testing.T, app *fiber.App, method, path string, userID uint, role string, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-Test-User", fmt.Sprintf("%d", userID))
	req.Header.Set("X-Test-Role", role)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestConsultationHandler_BookAndConfirm(t *testing.T) {
	app, db := consultationApp(t)
	student, teacher, slot := seedBookingFixtures(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/consultations", student.ID, "student", dto.ConsultationCreateRequest{
		TeacherID: teacher.ID,
		SubjectID: 1,
		DateTime:  slot.Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Success bool                     `json:"success"`
		Data    dto.ConsultationResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)
	require.True(t, created.Success)
	require.Equal(t, string(models.ConsultationPending), created.Data.Status)
	require.Equal(t, 30, created.Data.DurationMinutes)

	confirmPath := fmt.Sprintf("/api/v1/consultations/%d/confirm", created.Data.ID)
	resp = doJSON(t, app, http.MethodPut, confirmPath, teacher.ID, "teacher", dto.ConsultationConfirmRequest{
		MeetingLink: "https://meet.example.edu/room-1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var confirmed struct {
		Data dto.ConsultationResponse `json:"data"`
	}
	decodeResponse(t, resp, &confirmed)
	require.Equal(t, string(models.ConsultationConfirmed), confirmed.Data.Status)
	require.Equal(t, "https://meet.example.edu/room-1", confirmed.Data.MeetingLink)
}

func TestConsultationHandler_DoubleBookingConflict(t *testing.T) {
	app, db := consultationApp(t)
	student, teacher, slot := seedBookingFixtures(t, db)

	other := models.User{Name: "Ben Ramos", Email: "ben@example.edu", PasswordHash: "x", Role: models.RoleStudent, StudentNumber: "22-1101-004"}
	require.NoError(t, db.Create(&other).Error)

	payload := dto.ConsultationCreateRequest{TeacherID: teacher.ID, SubjectID: 1, DateTime: slot.Format(time.RFC3339)}

	resp := doJSON(t, app, http.MethodPost, "/api/v1/consultations", student.ID, "student", payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/consultations", other.ID, "student", payload)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var conflict utils.APIResponse
	decodeResponse(t, resp, &conflict)
	require.False(t, conflict.Success)
	require.Equal(t, "slot_taken", conflict.Reason)
}

func TestConsultationHandler_OffGridSlotRejected(t *testing.T) {
	app, db := consultationApp(t)
	student, teacher, slot := seedBookingFixtures(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/consultations", student.ID, "student", dto.ConsultationCreateRequest{
		TeacherID: teacher.ID,
		SubjectID: 1,
		DateTime:  slot.Add(15 * time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var rejected utils.APIResponse
	decodeResponse(t, resp, &rejected)
	require.Equal(t, "slot_not_offered", rejected.Reason)
}

func TestConsultationHandler_RoleEnforcement(t *testing.T) {
	app, db := consultationApp(t)
	student, teacher, slot := seedBookingFixtures(t, db)

	// Teachers cannot book.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/consultations", teacher.ID, "teacher", dto.ConsultationCreateRequest{
		TeacherID: teacher.ID,
		SubjectID: 1,
		DateTime:  slot.Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Students cannot confirm.
	resp = doJSON(t, app, http.MethodPut, "/api/v1/consultations/1/confirm", student.ID, "student", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Unauthenticated requests are turned away.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/consultations", nil)
	unauth, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, unauth.StatusCode)
}

func TestConsultationHandler_InvalidTransitionConflict(t *testing.T) {
	app, db := consultationApp(t)
	student, teacher, slot := seedBookingFixtures(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/consultations", student.ID, "student", dto.ConsultationCreateRequest{
		TeacherID: teacher.ID,
		SubjectID: 1,
		DateTime:  slot.Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.ConsultationResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)

	completePath := fmt.Sprintf("/api/v1/consultations/%d/complete", created.Data.ID)
	resp = doJSON(t, app, http.MethodPut, completePath, teacher.ID, "teacher", nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var conflict utils.APIResponse
	decodeResponse(t, resp, &conflict)
	require.Equal(t, "invalid_transition", conflict.Reason)
}

func TestConsultationHandler_CancelWithReason(t *testing.T) {
	app, db := consultationApp(t)
	student, teacher, slot := seedBookingFixtures(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/consultations", student.ID, "student", dto.ConsultationCreateRequest{
		TeacherID: teacher.ID,
		SubjectID: 1,
		DateTime:  slot.Format(time.RFC3339),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.ConsultationResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)

	cancelPath := fmt.Sprintf("/api/v1/consultations/%d/cancel", created.Data.ID)
	resp = doJSON(t, app, http.MethodPut, cancelPath, student.ID, "student", dto.ConsultationCancelRequest{Reason: "schedule clash"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cancelled struct {
		Data dto.ConsultationResponse `json:"data"`
	}
	decodeResponse(t, resp, &cancelled)
	require.Equal(t, string(models.ConsultationCancelled), cancelled.Data.Status)
	require.Equal(t, "schedule clash", cancelled.Data.CancelReason)
}
