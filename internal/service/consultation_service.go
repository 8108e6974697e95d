package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/observability"
	"github.com/consultlink/api/internal/repository"
)

var (
	// ErrConsultationNotFound indicates the requested booking does not exist.
	ErrConsultationNotFound = errors.New("consultation not found")
	// ErrSlotTaken indicates another active booking already holds the slot.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrSlotNotOffered indicates the requested time is not a declared slot.
	ErrSlotNotOffered = errors.New("requested time is not an offered slot")
	// ErrPastSlot indicates the requested time is not in the future.
	ErrPastSlot = errors.New("requested slot is in the past")
	// ErrInvalidTransition indicates the booking is not in the expected state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotParticipant indicates the caller is neither the student nor the teacher.
	ErrNotParticipant = errors.New("caller is not part of this consultation")
	// ErrNotConsultationTeacher indicates a teacher-only operation by someone else.
	ErrNotConsultationTeacher = errors.New("only the consultation's teacher may do this")
	// ErrNotConsultationStudent indicates a student-only operation by someone else.
	ErrNotConsultationStudent = errors.New("only the consultation's student may do this")
)

// ConsultationService drives the booking lifecycle:
// pending -> {confirmed, rejected, cancelled}; confirmed -> {completed, cancelled}.
type ConsultationService interface {
	Book(ctx context.Context, studentID uint, payload dto.ConsultationCreateRequest) (dto.ConsultationResponse, error)
	Get(ctx context.Context, callerID, id uint) (dto.ConsultationResponse, error)
	List(ctx context.Context, callerID uint, role models.UserRole, status models.ConsultationStatus) ([]dto.ConsultationResponse, error)
	Confirm(ctx context.Context, teacherID, id uint, payload dto.ConsultationConfirmRequest) (dto.ConsultationResponse, error)
	Reject(ctx context.Context, teacherID, id uint) (dto.ConsultationResponse, error)
	Cancel(ctx context.Context, callerID, id uint, payload dto.ConsultationCancelRequest) (dto.ConsultationResponse, error)
	Complete(ctx context.Context, teacherID, id uint) (dto.ConsultationResponse, error)
	Feedback(ctx context.Context, studentID, id uint, payload dto.ConsultationFeedbackRequest) (dto.ConsultationResponse, error)
}

type consultationService struct {
	consultations repository.ConsultationRepository
	windows       repository.AvailabilityRepository
	users         repository.UserRepository
	notifications NotificationService
	mailer        Mailer
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewConsultationService builds a new consultation service. The notification
// service and mailer may be nil; lifecycle events are then only persisted.
func NewConsultationService(consultations repository.ConsultationRepository, windows repository.AvailabilityRepository, users repository.UserRepository, notifications NotificationService, mailer Mailer, validate *validator.Validate, logger zerolog.Logger) ConsultationService {
	return &consultationService{
		consultations: consultations,
		windows:       windows,
		users:         users,
		notifications: notifications,
		mailer:        mailer,
		validator:     validate,
		logger:        logger.With().Str("component", "consultation_service").Logger(),
		tracer:        otel.Tracer("github.com/consultlink/api/internal/service/consultation"),
		now:           time.Now,
	}
}

func (s *consultationService) Book(ctx context.Context, studentID uint, payload dto.ConsultationCreateRequest) (dto.ConsultationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConsultationResponse{}, err
	}

	startsAt, err := time.Parse(time.RFC3339, payload.DateTime)
	if err != nil {
		return dto.ConsultationResponse{}, fmt.Errorf("invalid date time: %w", err)
	}
	startsAt = startsAt.UTC()

	spanCtx, span := s.tracer.Start(ctx, "consultations.book", trace.WithAttributes(
		attribute.Int64("consultation.teacher_id", int64(payload.TeacherID)),
		attribute.Int64("consultation.subject_id", int64(payload.SubjectID)),
	))
	defer span.End()

	if !startsAt.After(s.now()) {
		return dto.ConsultationResponse{}, ErrPastSlot
	}

	windows, err := s.windows.ListForDay(spanCtx, payload.TeacherID, payload.SubjectID, int(startsAt.Weekday()))
	if err != nil {
		span.RecordError(err)
		return dto.ConsultationResponse{}, err
	}

	window, offered := matchWindow(windows, startsAt)
	if !offered {
		return dto.ConsultationResponse{}, ErrSlotNotOffered
	}

	consultation := models.Consultation{
		StudentID:       studentID,
		TeacherID:       payload.TeacherID,
		SubjectID:       payload.SubjectID,
		ScheduledAt:     startsAt,
		DurationMinutes: window.SlotDurationMinutes,
		Status:          models.ConsultationPending,
	}

	if err := s.consultations.CreateWithClaim(spanCtx, &consultation); err != nil {
		if errors.Is(err, repository.ErrSlotClaimed) {
			observability.SlotConflicts().Inc()
			return dto.ConsultationResponse{}, ErrSlotTaken
		}
		span.RecordError(err)
		return dto.ConsultationResponse{}, err
	}

	observability.ConsultationsBooked().Inc()
	s.logger.Info().
		Uint("consultation_id", consultation.ID).
		Uint("student_id", studentID).
		Uint("teacher_id", consultation.TeacherID).
		Time("scheduled_at", consultation.ScheduledAt).
		Msg("consultation booked")

	s.notifyUser(spanCtx, consultation.TeacherID, "consultation_requested",
		fmt.Sprintf("New consultation request for %s", consultation.ScheduledAt.Format(time.RFC3339)),
		consultation.ID)

	return dto.NewConsultationResponse(consultation), nil
}

func (s *consultationService) Get(ctx context.Context, callerID, id uint) (dto.ConsultationResponse, error) {
	consultation, err := s.load(ctx, id)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}

	if consultation.StudentID != callerID && consultation.TeacherID != callerID {
		return dto.ConsultationResponse{}, ErrNotParticipant
	}

	return dto.NewConsultationResponse(consultation), nil
}

func (s *consultationService) List(ctx context.Context, callerID uint, role models.UserRole, status models.ConsultationStatus) ([]dto.ConsultationResponse, error) {
	filter := repository.ConsultationFilter{Status: status}
	switch role {
	case models.RoleTeacher:
		filter.TeacherID = callerID
	default:
		filter.StudentID = callerID
	}

	consultations, err := s.consultations.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewConsultationResponseSlice(consultations), nil
}

func (s *consultationService) Confirm(ctx context.Context, teacherID, id uint, payload dto.ConsultationConfirmRequest) (dto.ConsultationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConsultationResponse{}, err
	}

	consultation, err := s.load(ctx, id)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}
	if consultation.TeacherID != teacherID {
		return dto.ConsultationResponse{}, ErrNotConsultationTeacher
	}

	updates := map[string]interface{}{}
	if payload.MeetingLink != "" {
		updates["meeting_link"] = payload.MeetingLink
	}

	updated, err := s.transition(ctx, id, models.ConsultationPending, models.ConsultationConfirmed, updates)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}

	s.notifyUser(ctx, updated.StudentID, "consultation_confirmed",
		fmt.Sprintf("Your consultation on %s was confirmed", updated.ScheduledAt.Format(time.RFC3339)),
		updated.ID)

	return dto.NewConsultationResponse(updated), nil
}

func (s *consultationService) Reject(ctx context.Context, teacherID, id uint) (dto.ConsultationResponse, error) {
	consultation, err := s.load(ctx, id)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}
	if consultation.TeacherID != teacherID {
		return dto.ConsultationResponse{}, ErrNotConsultationTeacher
	}

	updated, err := s.transition(ctx, id, models.ConsultationPending, models.ConsultationRejected, nil)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}

	if err := s.consultations.ReleaseClaim(ctx, id); err != nil {
		s.logger.Error().Err(err).Uint("consultation_id", id).Msg("failed to release slot claim")
	}

	s.notifyUser(ctx, updated.StudentID, "consultation_rejected",
		fmt.Sprintf("Your consultation request for %s was declined", updated.ScheduledAt.Format(time.RFC3339)),
		updated.ID)

	return dto.NewConsultationResponse(updated), nil
}

func (s *consultationService) Cancel(ctx context.Context, callerID, id uint, payload dto.ConsultationCancelRequest) (dto.ConsultationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConsultationResponse{}, err
	}

	consultation, err := s.load(ctx, id)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}
	if consultation.StudentID != callerID && consultation.TeacherID != callerID {
		return dto.ConsultationResponse{}, ErrNotParticipant
	}
	if consultation.Status.IsTerminal() {
		return dto.ConsultationResponse{}, ErrInvalidTransition
	}

	updates := map[string]interface{}{}
	if payload.Reason != "" {
		updates["cancel_reason"] = payload.Reason
	}

	updated, err := s.transition(ctx, id, consultation.Status, models.ConsultationCancelled, updates)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}

	if err := s.consultations.ReleaseClaim(ctx, id); err != nil {
		s.logger.Error().Err(err).Uint("consultation_id", id).Msg("failed to release slot claim")
	}

	counterpart := updated.StudentID
	if callerID == updated.StudentID {
		counterpart = updated.TeacherID
	}
	s.notifyUser(ctx, counterpart, "consultation_cancelled",
		fmt.Sprintf("The consultation on %s was cancelled", updated.ScheduledAt.Format(time.RFC3339)),
		updated.ID)

	return dto.NewConsultationResponse(updated), nil
}

func (s *consultationService) Complete(ctx context.Context, teacherID, id uint) (dto.ConsultationResponse, error) {
	consultation, err := s.load(ctx, id)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}
	if consultation.TeacherID != teacherID {
		return dto.ConsultationResponse{}, ErrNotConsultationTeacher
	}

	updated, err := s.transition(ctx, id, models.ConsultationConfirmed, models.ConsultationCompleted, nil)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}

	s.notifyUser(ctx, updated.StudentID, "consultation_completed",
		"Your consultation was marked completed. You can now leave feedback.",
		updated.ID)

	return dto.NewConsultationResponse(updated), nil
}

func (s *consultationService) Feedback(ctx context.Context, studentID, id uint, payload dto.ConsultationFeedbackRequest) (dto.ConsultationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConsultationResponse{}, err
	}

	consultation, err := s.load(ctx, id)
	if err != nil {
		return dto.ConsultationResponse{}, err
	}
	if consultation.StudentID != studentID {
		return dto.ConsultationResponse{}, ErrNotConsultationStudent
	}

	updated, err := s.consultations.SaveFeedback(ctx, id, payload.Rating, payload.Feedback)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return dto.ConsultationResponse{}, ErrInvalidTransition
		}
		return dto.ConsultationResponse{}, err
	}

	return dto.NewConsultationResponse(updated), nil
}

func (s *consultationService) load(ctx context.Context, id uint) (models.Consultation, error) {
	consultation, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Consultation{}, ErrConsultationNotFound
		}
		return models.Consultation{}, err
	}

	return consultation, nil
}

// transition performs one conditional status update. A stale read (the row
// was no longer in `from`) maps to ErrInvalidTransition: the caller raced a
// competing transition and lost.
func (s *consultationService) transition(ctx context.Context, id uint, from, to models.ConsultationStatus, updates map[string]interface{}) (models.Consultation, error) {
	spanCtx, span := s.tracer.Start(ctx, "consultations.transition", trace.WithAttributes(
		attribute.String("consultation.from", string(from)),
		attribute.String("consultation.to", string(to)),
	))
	defer span.End()

	updated, err := s.consultations.Transition(spanCtx, id, from, to, updates)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return models.Consultation{}, ErrInvalidTransition
		}
		span.RecordError(err)
		return models.Consultation{}, err
	}

	s.logger.Info().
		Uint("consultation_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("consultation transitioned")

	return updated, nil
}

// notifyUser persists a notification and emails the recipient. Both are
// fire-and-forget: a delivery failure never fails the booking operation.
func (s *consultationService) notifyUser(ctx context.Context, userID uint, eventType, message string, consultationID uint) {
	if s.notifications != nil {
		_, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  userID,
			Type:    eventType,
			Message: message,
			Payload: map[string]interface{}{"consultation_id": consultationID},
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to publish notification")
		}
	}

	if s.mailer != nil {
		users := s.users
		mailer := s.mailer
		logger := s.logger
		go func() {
			user, err := users.GetByID(context.Background(), userID)
			if err != nil {
				logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to load email recipient")
				return
			}
			if err := mailer.Send(context.Background(), user.Name, user.Email, "Consultation update", message); err != nil {
				logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to send email")
			}
		}()
	}
}
