package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
)

var (
	// ErrWindowNotFound indicates the availability window does not exist.
	ErrWindowNotFound = errors.New("availability window not found")
	// ErrNotWindowOwner indicates the caller does not own the window.
	ErrNotWindowOwner = errors.New("availability window belongs to another teacher")
	// ErrInvalidWindow indicates the window bounds violate the invariants.
	ErrInvalidWindow = errors.New("window end must follow start and fit at least one whole slot")
	// ErrInvalidDate indicates an unparseable requested date.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	// ErrSubjectNotAssigned indicates the teacher does not consult on the subject.
	ErrSubjectNotAssigned = errors.New("teacher is not assigned to this subject")
)

// AvailabilityService manages recurring windows and expands them into
// concrete bookable slots.
type AvailabilityService interface {
	ListByTeacher(ctx context.Context, teacherID uint) ([]dto.AvailabilityResponse, error)
	Create(ctx context.Context, teacherID uint, payload dto.AvailabilityCreateRequest) (dto.AvailabilityResponse, error)
	Update(ctx context.Context, teacherID, id uint, payload dto.AvailabilityUpdateRequest) (dto.AvailabilityResponse, error)
	Delete(ctx context.Context, teacherID, id uint) error
	DaySlots(ctx context.Context, teacherID, subjectID uint, date string) (dto.DaySlotsResponse, error)
}

type availabilityService struct {
	windows       repository.AvailabilityRepository
	consultations repository.ConsultationRepository
	users         repository.UserRepository
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewAvailabilityService builds a new availability service.
func NewAvailabilityService(windows repository.AvailabilityRepository, consultations repository.ConsultationRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) AvailabilityService {
	return &availabilityService{
		windows:       windows,
		consultations: consultations,
		users:         users,
		validator:     validate,
		logger:        logger.With().Str("component", "availability_service").Logger(),
	}
}

func (s *availabilityService) ListByTeacher(ctx context.Context, teacherID uint) ([]dto.AvailabilityResponse, error) {
	windows, err := s.windows.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	return dto.NewAvailabilityResponseSlice(windows), nil
}

func (s *availabilityService) Create(ctx context.Context, teacherID uint, payload dto.AvailabilityCreateRequest) (dto.AvailabilityResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AvailabilityResponse{}, err
	}

	if err := validateWindowBounds(payload.StartTime, payload.EndTime, payload.SlotDurationMinutes); err != nil {
		return dto.AvailabilityResponse{}, err
	}

	if err := s.checkSubjectAssignment(ctx, teacherID, payload.SubjectID); err != nil {
		return dto.AvailabilityResponse{}, err
	}

	maxCapacity := payload.MaxCapacity
	if maxCapacity <= 0 {
		maxCapacity = 1
	}

	window := models.AvailabilityWindow{
		TeacherID:           teacherID,
		SubjectID:           payload.SubjectID,
		DayOfWeek:           payload.DayOfWeek,
		StartTime:           payload.StartTime,
		EndTime:             payload.EndTime,
		SlotDurationMinutes: payload.SlotDurationMinutes,
		MaxCapacity:         maxCapacity,
	}

	if err := s.windows.Create(ctx, &window); err != nil {
		return dto.AvailabilityResponse{}, err
	}

	s.logger.Info().
		Uint("window_id", window.ID).
		Uint("teacher_id", teacherID).
		Int("day_of_week", window.DayOfWeek).
		Msg("availability window created")

	return dto.NewAvailabilityResponse(window), nil
}

func (s *availabilityService) Update(ctx context.Context, teacherID, id uint, payload dto.AvailabilityUpdateRequest) (dto.AvailabilityResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AvailabilityResponse{}, err
	}

	window, err := s.ownedWindow(ctx, teacherID, id)
	if err != nil {
		return dto.AvailabilityResponse{}, err
	}

	if payload.DayOfWeek != nil {
		window.DayOfWeek = *payload.DayOfWeek
	}
	if payload.StartTime != nil {
		window.StartTime = *payload.StartTime
	}
	if payload.EndTime != nil {
		window.EndTime = *payload.EndTime
	}
	if payload.SlotDurationMinutes != nil {
		window.SlotDurationMinutes = *payload.SlotDurationMinutes
	}
	if payload.MaxCapacity != nil {
		window.MaxCapacity = *payload.MaxCapacity
	}

	if err := validateWindowBounds(window.StartTime, window.EndTime, window.SlotDurationMinutes); err != nil {
		return dto.AvailabilityResponse{}, err
	}

	if err := s.windows.Update(ctx, &window); err != nil {
		return dto.AvailabilityResponse{}, err
	}

	return dto.NewAvailabilityResponse(window), nil
}

func (s *availabilityService) Delete(ctx context.Context, teacherID, id uint) error {
	if _, err := s.ownedWindow(ctx, teacherID, id); err != nil {
		return err
	}

	return s.windows.Delete(ctx, id)
}

// DaySlots expands the teacher's matching windows into concrete start times
// for the requested date, excluding starts already claimed by an active
// booking. Slots are recomputed on every request; nothing is materialized.
func (s *availabilityService) DaySlots(ctx context.Context, teacherID, subjectID uint, date string) (dto.DaySlotsResponse, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return dto.DaySlotsResponse{}, ErrInvalidDate
	}

	windows, err := s.windows.ListForDay(ctx, teacherID, subjectID, int(day.Weekday()))
	if err != nil {
		return dto.DaySlotsResponse{}, err
	}

	response := dto.DaySlotsResponse{
		TeacherID:  teacherID,
		SubjectID:  subjectID,
		Date:       date,
		HasWindows: len(windows) > 0,
		Slots:      []dto.SlotResponse{},
	}

	if len(windows) == 0 {
		return response, nil
	}

	claimed, err := s.consultations.ClaimedStarts(ctx, teacherID, day, day.Add(24*time.Hour))
	if err != nil {
		return dto.DaySlotsResponse{}, err
	}

	taken := make(map[int64]struct{}, len(claimed))
	for _, start := range claimed {
		taken[start.UTC().Unix()] = struct{}{}
	}

	for _, window := range windows {
		for _, slot := range expandWindow(window, day) {
			if _, booked := taken[slot.StartsAt.Unix()]; booked {
				continue
			}
			response.Slots = append(response.Slots, slot)
		}
	}

	return response, nil
}

func (s *availabilityService) ownedWindow(ctx context.Context, teacherID, id uint) (models.AvailabilityWindow, error) {
	window, err := s.windows.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AvailabilityWindow{}, ErrWindowNotFound
		}
		return models.AvailabilityWindow{}, err
	}

	if window.TeacherID != teacherID {
		return models.AvailabilityWindow{}, ErrNotWindowOwner
	}

	return window, nil
}

func (s *availabilityService) checkSubjectAssignment(ctx context.Context, teacherID, subjectID uint) error {
	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	for _, subject := range teacher.Subjects {
		if subject.ID == subjectID {
			return nil
		}
	}

	return ErrSubjectNotAssigned
}
