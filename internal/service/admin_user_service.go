package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
)

// AdminUserService exposes admin account management use cases.
type AdminUserService interface {
	CreateTeacher(ctx context.Context, payload dto.TeacherCreateRequest) (dto.UserResponse, error)
	UpdateTeacher(ctx context.Context, id uint, payload dto.TeacherUpdateRequest) (dto.UserResponse, error)
	DeleteTeacher(ctx context.Context, id uint) error
	ListUsers(ctx context.Context, query dto.UserListQuery) (dto.UserListResponse, error)
}

type adminUserService struct {
	users     repository.UserRepository
	subjects  repository.SubjectRepository
	mailer    Mailer
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminUserService builds a new admin user service.
func NewAdminUserService(users repository.UserRepository, subjects repository.SubjectRepository, mailer Mailer, validate *validator.Validate, logger zerolog.Logger) AdminUserService {
	return &adminUserService{
		users:     users,
		subjects:  subjects,
		mailer:    mailer,
		validator: validate,
		logger:    logger.With().Str("component", "admin_user_service").Logger(),
	}
}

func (s *adminUserService) CreateTeacher(ctx context.Context, payload dto.TeacherCreateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	password := payload.Password
	if password == "" {
		password = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	subjects, err := s.subjects.GetMany(ctx, payload.SubjectIDs)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if len(subjects) != len(payload.SubjectIDs) {
		return dto.UserResponse{}, ErrSubjectNotFound
	}

	teacher := models.User{
		Name:         strings.TrimSpace(payload.Name),
		Email:        strings.ToLower(strings.TrimSpace(payload.Email)),
		PasswordHash: string(hash),
		Role:         models.RoleTeacher,
		Subjects:     subjects,
	}

	if err := s.users.Create(ctx, &teacher); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrEmailTaken
		}
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("teacher_id", teacher.ID).Msg("teacher account created")

	// Credentials email is fire-and-forget; a delivery failure must not fail
	// the account creation.
	go func() {
		body := fmt.Sprintf("Hello %s,\n\nYour ConsultLink teacher account is ready.\nEmail: %s\nTemporary password: %s\n\nPlease change your password after your first login.", teacher.Name, teacher.Email, password)
		if err := s.mailer.Send(context.Background(), teacher.Name, teacher.Email, "Your teacher account", body); err != nil {
			s.logger.Warn().Err(err).Uint("teacher_id", teacher.ID).Msg("failed to email credentials")
		}
	}()

	return dto.NewUserResponse(teacher), nil
}

func (s *adminUserService) UpdateTeacher(ctx context.Context, id uint, payload dto.TeacherUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	teacher, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if !teacher.IsTeacher() {
		return dto.UserResponse{}, ErrNotATeacher
	}

	if payload.Name != nil {
		teacher.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		teacher.Email = strings.ToLower(strings.TrimSpace(*payload.Email))
	}

	if err := s.users.Update(ctx, &teacher); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrEmailTaken
		}
		return dto.UserResponse{}, err
	}

	if payload.SubjectIDs != nil {
		subjects, err := s.subjects.GetMany(ctx, *payload.SubjectIDs)
		if err != nil {
			return dto.UserResponse{}, err
		}
		if len(subjects) != len(*payload.SubjectIDs) {
			return dto.UserResponse{}, ErrSubjectNotFound
		}
		if err := s.users.ReplaceSubjects(ctx, &teacher, subjects); err != nil {
			return dto.UserResponse{}, err
		}
		teacher.Subjects = subjects
	}

	return dto.NewUserResponse(teacher), nil
}

func (s *adminUserService) DeleteTeacher(ctx context.Context, id uint) error {
	teacher, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !teacher.IsTeacher() {
		return ErrNotATeacher
	}

	return s.users.Delete(ctx, id)
}

func (s *adminUserService) ListUsers(ctx context.Context, query dto.UserListQuery) (dto.UserListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.UserListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	filter := repository.UserFilter{
		Role:     models.UserRole(query.Role),
		Search:   query.Search,
		Page:     page,
		PageSize: pageSize,
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return dto.UserListResponse{}, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return dto.UserListResponse{
		Items: dto.NewUserResponseSlice(users),
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}
