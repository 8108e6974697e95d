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

func setupAvailabilityService(t *testing.T) (AvailabilityService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Subject{}, &models.AvailabilityWindow{},
		&models.Consultation{}, &models.SlotClaim{},
	))

	svc := NewAvailabilityService(
		repository.NewAvailabilityRepository(db),
		repository.NewConsultationRepository(db),
		repository.NewUserRepository(db),
		validation.New(),
		zerolog.Nop(),
	)

	return svc, db
}

func seedTeacherWithSubject(t *testing.T, db *gorm.DB) (models.User, models.Subject) {
	t.Helper()

	subject := models.Subject{Name: "Algorithms"}
	require.NoError(t, db.Create(&subject).Error)

	teacher := models.User{
		Name:         "Prof. Chen",
		Email:        "chen@example.edu",
		PasswordHash: "x",
		Role:         models.RoleTeacher,
		Subjects:     []models.Subject{subject},
	}
	require.NoError(t, db.Create(&teacher).Error)

	return teacher, subject
}

func TestAvailabilityServiceCreateValidatesBounds(t *testing.T) {
	svc, db := setupAvailabilityService(t)
	teacher, subject := seedTeacherWithSubject(t, db)

	created, err := svc.Create(context.Background(), teacher.ID, dto.AvailabilityCreateRequest{
		SubjectID:           subject.ID,
		DayOfWeek:           1,
		StartTime:           "09:00",
		EndTime:             "11:00",
		SlotDurationMinutes: 30,
	})
	require.NoError(t, err)
	require.Equal(t, 1, created.MaxCapacity, "capacity defaults to one")

	_, err = svc.Create(context.Background(), teacher.ID, dto.AvailabilityCreateRequest{
		SubjectID:           subject.ID,
		DayOfWeek:           1,
		StartTime:           "11:00",
		EndTime:             "09:00",
		SlotDurationMinutes: 30,
	})
	require.ErrorIs(t, err, ErrInvalidWindow)

	_, err = svc.Create(context.Background(), teacher.ID, dto.AvailabilityCreateRequest{
		SubjectID:           subject.ID,
		DayOfWeek:           1,
		StartTime:           "09:00",
		EndTime:             "09:20",
		SlotDurationMinutes: 30,
	})
	require.ErrorIs(t, err, ErrInvalidWindow, "window shorter than one slot")

	_, err = svc.Create(context.Background(), teacher.ID, dto.AvailabilityCreateRequest{
		SubjectID:           subject.ID + 100,
		DayOfWeek:           1,
		StartTime:           "09:00",
		EndTime:             "11:00",
		SlotDurationMinutes: 30,
	})
	require.ErrorIs(t, err, ErrSubjectNotAssigned)
}

func TestAvailabilityServiceOwnership(t *testing.T) {
	svc, db := setupAvailabilityService(t)
	teacher, subject := seedTeacherWithSubject(t, db)

	created, err := svc.Create(context.Background(), teacher.ID, dto.AvailabilityCreateRequest{
		SubjectID:           subject.ID,
		DayOfWeek:           1,
		StartTime:           "09:00",
		EndTime:             "11:00",
		SlotDurationMinutes: 30,
	})
	require.NoError(t, err)

	otherTeacher := teacher.ID + 99

	_, err = svc.Update(context.Background(), otherTeacher, created.ID, dto.AvailabilityUpdateRequest{})
	require.ErrorIs(t, err, ErrNotWindowOwner)

	require.ErrorIs(t, svc.Delete(context.Background(), otherTeacher, created.ID), ErrNotWindowOwner)
	require.ErrorIs(t, svc.Delete(context.Background(), teacher.ID, created.ID+50), ErrWindowNotFound)

	newEnd := "12:00"
	updated, err := svc.Update(context.Background(), teacher.ID, created.ID, dto.AvailabilityUpdateRequest{EndTime: &newEnd})
	require.NoError(t, err)
	require.Equal(t, "12:00", updated.EndTime)

	badEnd := "08:00"
	_, err = svc.Update(context.Background(), teacher.ID, created.ID, dto.AvailabilityUpdateRequest{EndTime: &badEnd})
	require.ErrorIs(t, err, ErrInvalidWindow)

	require.NoError(t, svc.Delete(context.Background(), teacher.ID, created.ID))
}

func TestAvailabilityServiceDaySlots(t *testing.T) {
	svc, db := setupAvailabilityService(t)
	teacher, subject := seedTeacherWithSubject(t, db)

	_, err := svc.Create(context.Background(), teacher.ID, dto.AvailabilityCreateRequest{
		SubjectID:           subject.ID,
		DayOfWeek:           int(time.Monday),
		StartTime:           "09:00",
		EndTime:             "10:00",
		SlotDurationMinutes: 30,
	})
	require.NoError(t, err)

	// 2026-09-07 is a Monday.
	result, err := svc.DaySlots(context.Background(), teacher.ID, subject.ID, "2026-09-07")
	require.NoError(t, err)
	require.True(t, result.HasWindows)
	require.Len(t, result.Slots, 2)
	require.Equal(t, "09:00", result.Slots[0].StartTime)
	require.Equal(t, "09:30", result.Slots[1].StartTime)

	// A day without windows is distinguishable from a fully booked one.
	tuesday, err := svc.DaySlots(context.Background(), teacher.ID, subject.ID, "2026-09-08")
	require.NoError(t, err)
	require.False(t, tuesday.HasWindows)
	require.Empty(t, tuesday.Slots)

	_, err = svc.DaySlots(context.Background(), teacher.ID, subject.ID, "09/07/2026")
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestAvailabilityServiceDaySlotsExcludesClaimed(t *testing.T) {
	svc, db := setupAvailabilityService(t)
	teacher, subject := seedTeacherWithSubject(t, db)

	_, err := svc.Create(context.Background(), teacher.ID, dto.AvailabilityCreateRequest{
		SubjectID:           subject.ID,
		DayOfWeek:           int(time.Monday),
		StartTime:           "09:00",
		EndTime:             "10:00",
		SlotDurationMinutes: 30,
	})
	require.NoError(t, err)

	firstStart := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	consultation := models.Consultation{
		StudentID:       10,
		TeacherID:       teacher.ID,
		SubjectID:       subject.ID,
		ScheduledAt:     firstStart,
		DurationMinutes: 30,
		Status:          models.ConsultationPending,
	}
	require.NoError(t, db.Create(&consultation).Error)
	require.NoError(t, db.Create(&models.SlotClaim{
		TeacherID:      teacher.ID,
		StartsAt:       firstStart,
		ConsultationID: consultation.ID,
	}).Error)

	result, err := svc.DaySlots(context.Background(), teacher.ID, subject.ID, "2026-09-07")
	require.NoError(t, err)
	require.True(t, result.HasWindows)
	require.Len(t, result.Slots, 1)
	require.Equal(t, "09:30", result.Slots[0].StartTime)

	// All slots taken still reports the windows.
	secondStart := firstStart.Add(30 * time.Minute)
	second := models.Consultation{
		StudentID:       11,
		TeacherID:       teacher.ID,
		SubjectID:       subject.ID,
		ScheduledAt:     secondStart,
		DurationMinutes: 30,
		Status:          models.ConsultationPending,
	}
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&models.SlotClaim{
		TeacherID:      teacher.ID,
		StartsAt:       secondStart,
		ConsultationID: second.ID,
	}).Error)

	full, err := svc.DaySlots(context.Background(), teacher.ID, subject.ID, "2026-09-07")
	require.NoError(t, err)
	require.True(t, full.HasWindows)
	require.Empty(t, full.Slots)
}
