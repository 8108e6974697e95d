package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
	"github.com/consultlink/api/internal/validation"
)

func TestEvaluateGateReasons(t *testing.T) {
	scheduled := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	base := models.Consultation{
		ID:              1,
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
	}

	pending := base
	pending.Status = models.ConsultationPending
	status := evaluateGate(pending, scheduled.Add(10*time.Minute))
	require.False(t, status.Allowed)
	require.Equal(t, GateReasonNotConfirmed, status.Reason)

	completed := base
	completed.Status = models.ConsultationCompleted
	status = evaluateGate(completed, scheduled.Add(10*time.Minute))
	require.False(t, status.Allowed)
	require.Equal(t, GateReasonCompleted, status.Reason)

	confirmed := base
	confirmed.Status = models.ConsultationConfirmed

	status = evaluateGate(confirmed, scheduled.Add(-time.Minute))
	require.False(t, status.Allowed)
	require.Equal(t, GateReasonNotStarted, status.Reason)

	status = evaluateGate(confirmed, scheduled.Add(31*time.Minute))
	require.False(t, status.Allowed)
	require.Equal(t, GateReasonEnded, status.Reason)

	status = evaluateGate(confirmed, scheduled.Add(10*time.Minute))
	require.True(t, status.Allowed)
	require.Empty(t, status.Reason)
}

func TestEvaluateGateInclusiveBounds(t *testing.T) {
	scheduled := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	consultation := models.Consultation{
		ID:              1,
		Status:          models.ConsultationConfirmed,
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
	}

	// Both endpoints of [14:00, 14:30] are inside the window.
	require.True(t, evaluateGate(consultation, scheduled).Allowed)
	require.True(t, evaluateGate(consultation, scheduled.Add(30*time.Minute)).Allowed)

	require.False(t, evaluateGate(consultation, scheduled.Add(-time.Second)).Allowed)
	require.False(t, evaluateGate(consultation, scheduled.Add(30*time.Minute+time.Second)).Allowed)
}

func setupMessageService(t *testing.T) (*messageService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Consultation{}, &models.Message{}))

	svc := NewMessageService(
		repository.NewMessageRepository(db),
		repository.NewConsultationRepository(db),
		nil,
		validation.New(),
		zerolog.Nop(),
	).(*messageService)

	return svc, db
}

func TestMessageServiceSendWithinWindow(t *testing.T) {
	svc, db := setupMessageService(t)

	scheduled := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	consultation := models.Consultation{
		StudentID:       10,
		TeacherID:       20,
		SubjectID:       1,
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
		Status:          models.ConsultationConfirmed,
	}
	require.NoError(t, db.Create(&consultation).Error)

	svc.now = func() time.Time { return scheduled.Add(5 * time.Minute) }

	sent, err := svc.Send(context.Background(), 10, dto.MessageSendRequest{
		ConsultationID: consultation.ID,
		ReceiverID:     20,
		Content:        "<script>alert('x')</script>see you soon",
	})
	require.NoError(t, err)
	require.Equal(t, uint(10), sent.SenderID)
	require.Equal(t, "see you soon", sent.Content, "markup must be stripped")
	require.Equal(t, "text", sent.Type)

	history, err := svc.History(context.Background(), 20, consultation.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestMessageServiceSendGateDenied(t *testing.T) {
	svc, db := setupMessageService(t)

	scheduled := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	consultation := models.Consultation{
		StudentID:       10,
		TeacherID:       20,
		SubjectID:       1,
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
		Status:          models.ConsultationConfirmed,
	}
	require.NoError(t, db.Create(&consultation).Error)

	svc.now = func() time.Time { return scheduled.Add(-time.Hour) }

	_, err := svc.Send(context.Background(), 10, dto.MessageSendRequest{
		ConsultationID: consultation.ID,
		ReceiverID:     20,
		Content:        "too early",
	})

	var gateErr *GateClosedError
	require.ErrorAs(t, err, &gateErr)
	require.Equal(t, GateReasonNotStarted, gateErr.Reason)
}

func TestMessageServiceSendAccessChecks(t *testing.T) {
	svc, db := setupMessageService(t)

	scheduled := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	consultation := models.Consultation{
		StudentID:       10,
		TeacherID:       20,
		SubjectID:       1,
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
		Status:          models.ConsultationConfirmed,
	}
	require.NoError(t, db.Create(&consultation).Error)

	svc.now = func() time.Time { return scheduled.Add(5 * time.Minute) }

	_, err := svc.Send(context.Background(), 99, dto.MessageSendRequest{
		ConsultationID: consultation.ID,
		ReceiverID:     20,
		Content:        "hello",
	})
	require.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.Send(context.Background(), 10, dto.MessageSendRequest{
		ConsultationID: consultation.ID,
		ReceiverID:     99,
		Content:        "hello",
	})
	require.ErrorIs(t, err, ErrReceiverNotParticipant)

	_, err = svc.Send(context.Background(), 10, dto.MessageSendRequest{
		ConsultationID: 12345,
		ReceiverID:     20,
		Content:        "hello",
	})
	require.ErrorIs(t, err, ErrConsultationNotFound)
}

func TestMessageServiceAuthorizeRoom(t *testing.T) {
	svc, db := setupMessageService(t)

	scheduled := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	confirmed := models.Consultation{
		StudentID:       10,
		TeacherID:       20,
		SubjectID:       1,
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
		Status:          models.ConsultationConfirmed,
	}
	require.NoError(t, db.Create(&confirmed).Error)

	pending := models.Consultation{
		StudentID:       10,
		TeacherID:       20,
		SubjectID:       1,
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
		Status:          models.ConsultationPending,
	}
	require.NoError(t, db.Create(&pending).Error)

	// Joining before the window opens is fine; only sends are time-gated.
	svc.now = func() time.Time { return scheduled.Add(-time.Hour) }

	require.NoError(t, svc.AuthorizeRoom(context.Background(), 10, confirmed.ID))
	require.NoError(t, svc.AuthorizeRoom(context.Background(), 20, confirmed.ID))

	err := svc.AuthorizeRoom(context.Background(), 99, confirmed.ID)
	require.ErrorIs(t, err, ErrNotParticipant)

	var gateErr *GateClosedError
	err = svc.AuthorizeRoom(context.Background(), 10, pending.ID)
	require.ErrorAs(t, err, &gateErr)
	require.Equal(t, GateReasonNotConfirmed, gateErr.Reason)

	err = svc.AuthorizeRoom(context.Background(), 10, 12345)
	require.ErrorIs(t, err, ErrConsultationNotFound)
}

func TestMessageServiceMarkRead(t *testing.T) {
	svc, db := setupMessageService(t)

	scheduled := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	consultation := models.Consultation{
		StudentID:       10,
		TeacherID:       20,
		SubjectID:       1,
		ScheduledAt:     scheduled,
		DurationMinutes: 30,
		Status:          models.ConsultationConfirmed,
	}
	require.NoError(t, db.Create(&consultation).Error)

	svc.now = func() time.Time { return scheduled.Add(5 * time.Minute) }

	for i := 0; i < 3; i++ {
		_, err := svc.Send(context.Background(), 10, dto.MessageSendRequest{
			ConsultationID: consultation.ID,
			ReceiverID:     20,
			Content:        "ping",
		})
		require.NoError(t, err)
	}

	updated, err := svc.MarkRead(context.Background(), 20, consultation.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), updated)

	updated, err = svc.MarkRead(context.Background(), 20, consultation.ID)
	require.NoError(t, err)
	require.Zero(t, updated)
}
