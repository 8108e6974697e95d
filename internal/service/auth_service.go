package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/models"
	"github.com/consultlink/api/internal/repository"
)

var (
	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound indicates the requested account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRefreshToken indicates the refresh token failed verification.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

const tokenIssuer = "consultlink"

// TokenSettings configures JWT issuance.
type TokenSettings struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AuthService exposes registration, login and profile use cases.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.AuthResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error)
	Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenPairResponse, error)
	Me(ctx context.Context, userID uint) (dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID uint, payload dto.ProfileUpdateRequest) (dto.UserResponse, error)
	ChangePassword(ctx context.Context, userID uint, payload dto.PasswordChangeRequest) error
}

type authService struct {
	users     repository.UserRepository
	tokens    TokenSettings
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService builds a new auth service.
func NewAuthService(users repository.UserRepository, tokens TokenSettings, validate *validator.Validate, logger zerolog.Logger) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return dto.AuthResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AuthResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	user := models.User{
		Name:          strings.TrimSpace(payload.Name),
		Email:         email,
		PasswordHash:  string(hash),
		Role:          models.RoleStudent,
		StudentNumber: payload.StudentNumber,
	}

	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AuthResponse{}, ErrEmailTaken
		}
		return dto.AuthResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("student registered")

	return s.respondWithTokens(user)
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)) != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	return s.respondWithTokens(user)
}

func (s *authService) Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenPairResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenPairResponse{}, err
	}

	token, err := jwt.Parse(payload.RefreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidRefreshToken
		}
		return []byte(s.tokens.RefreshSecret), nil
	})
	if err != nil || !token.Valid {
		return dto.TokenPairResponse{}, ErrInvalidRefreshToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return dto.TokenPairResponse{}, ErrInvalidRefreshToken
	}
	if use, _ := claims["token_use"].(string); use != "refresh" {
		return dto.TokenPairResponse{}, ErrInvalidRefreshToken
	}

	subject, err := claims.GetSubject()
	if err != nil {
		return dto.TokenPairResponse{}, ErrInvalidRefreshToken
	}

	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return dto.TokenPairResponse{}, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenPairResponse{}, ErrUserNotFound
		}
		return dto.TokenPairResponse{}, err
	}

	return s.issueTokens(user)
}

func (s *authService) Me(ctx context.Context, userID uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID uint, payload dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if payload.Name != nil {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*payload.Email))
	}

	if err := s.users.Update(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrEmailTaken
		}
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uint, payload dto.PasswordChangeRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.OldPassword)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hash)
	return s.users.Update(ctx, &user)
}

func (s *authService) respondWithTokens(user models.User) (dto.AuthResponse, error) {
	tokens, err := s.issueTokens(user)
	if err != nil {
		return dto.AuthResponse{}, err
	}

	return dto.AuthResponse{User: dto.NewUserResponse(user), Tokens: tokens}, nil
}

func (s *authService) issueTokens(user models.User) (dto.TokenPairResponse, error) {
	now := s.now()
	accessExpiry := now.Add(s.tokens.AccessTTL)
	refreshExpiry := now.Add(s.tokens.RefreshTTL)

	access, err := s.signToken(user, "access", now, accessExpiry, s.tokens.AccessSecret)
	if err != nil {
		return dto.TokenPairResponse{}, err
	}

	refresh, err := s.signToken(user, "refresh", now, refreshExpiry, s.tokens.RefreshSecret)
	if err != nil {
		return dto.TokenPairResponse{}, err
	}

	return dto.TokenPairResponse{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (s *authService) signToken(user models.User, use string, issuedAt, expiresAt time.Time, secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub":       strconv.FormatUint(uint64(user.ID), 10),
		"role":      string(user.Role),
		"name":      user.Name,
		"token_use": use,
		"iss":       tokenIssuer,
		"iat":       jwt.NewNumericDate(issuedAt),
		"exp":       jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
