package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
)

var (
	// ErrSubjectNotFound indicates the requested subject does not exist.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrNotATeacher indicates the referenced account is not a teacher.
	ErrNotATeacher = errors.New("account is not a teacher")
)

// SubjectService exposes the subject catalog and admin subject management.
type SubjectService interface {
	List(ctx context.Context) ([]dto.SubjectResponse, error)
	Get(ctx context.Context, id uint) (dto.SubjectResponse, error)
	Create(ctx context.Context, payload dto.SubjectCreateRequest) (dto.SubjectResponse, error)
	Delete(ctx context.Context, id uint) error
	AssignTeacher(ctx context.Context, subjectID, teacherID uint) (dto.SubjectResponse, error)
	UnassignTeacher(ctx context.Context, subjectID, teacherID uint) (dto.SubjectResponse, error)
	ListTeachers(ctx context.Context, subjectID uint) ([]dto.UserResponse, error)
}

type subjectService struct {
	subjects  repository.SubjectRepository
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubjectService builds a new subject service.
func NewSubjectService(subjects repository.SubjectRepository, users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) SubjectService {
	return &subjectService{
		subjects:  subjects,
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "subject_service").Logger(),
	}
}

func (s *subjectService) List(ctx context.Context) ([]dto.SubjectResponse, error) {
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewSubjectResponseSlice(subjects), nil
}

func (s *subjectService) Get(ctx context.Context, id uint) (dto.SubjectResponse, error) {
	subject, err := s.subjects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubjectResponse{}, ErrSubjectNotFound
		}
		return dto.SubjectResponse{}, err
	}

	return dto.NewSubjectResponse(subject), nil
}

func (s *subjectService) Create(ctx context.Context, payload dto.SubjectCreateRequest) (dto.SubjectResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubjectResponse{}, err
	}

	subject := models.Subject{
		Name:        payload.Name,
		Description: payload.Description,
	}

	if err := s.subjects.Create(ctx, &subject); err != nil {
		return dto.SubjectResponse{}, err
	}

	s.logger.Info().Uint("subject_id", subject.ID).Str("name", subject.Name).Msg("subject created")

	return dto.NewSubjectResponse(subject), nil
}

func (s *subjectService) Delete(ctx context.Context, id uint) error {
	if err := s.subjects.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubjectNotFound
		}
		return err
	}

	return nil
}

func (s *subjectService) AssignTeacher(ctx context.Context, subjectID, teacherID uint) (dto.SubjectResponse, error) {
	subject, teacher, err := s.loadPair(ctx, subjectID, teacherID)
	if err != nil {
		return dto.SubjectResponse{}, err
	}

	if err := s.subjects.AddTeacher(ctx, &subject, teacher); err != nil {
		return dto.SubjectResponse{}, err
	}

	return s.Get(ctx, subjectID)
}

func (s *subjectService) UnassignTeacher(ctx context.Context, subjectID, teacherID uint) (dto.SubjectResponse, error) {
	subject, teacher, err := s.loadPair(ctx, subjectID, teacherID)
	if err != nil {
		return dto.SubjectResponse{}, err
	}

	if err := s.subjects.RemoveTeacher(ctx, &subject, teacher); err != nil {
		return dto.SubjectResponse{}, err
	}

	return s.Get(ctx, subjectID)
}

func (s *subjectService) ListTeachers(ctx context.Context, subjectID uint) ([]dto.UserResponse, error) {
	if subjectID != 0 {
		subject, err := s.subjects.GetByID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSubjectNotFound
			}
			return nil, err
		}
		return dto.NewUserResponseSlice(subject.Teachers), nil
	}

	teachers, _, err := s.users.List(ctx, repository.UserFilter{Role: models.RoleTeacher})
	if err != nil {
		return nil, err
	}

	return dto.NewUserResponseSlice(teachers), nil
}

func (s *subjectService) loadPair(ctx context.Context, subjectID, teacherID uint) (models.Subject, models.User, error) {
	subject, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Subject{}, models.User{}, ErrSubjectNotFound
		}
		return models.Subject{}, models.User{}, err
	}

	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Subject{}, models.User{}, ErrUserNotFound
		}
		return models.Subject{}, models.User{}, err
	}

	if !teacher.IsTeacher() {
		return models.Subject{}, models.User{}, ErrNotATeacher
	}

	return subject, teacher, nil
}
