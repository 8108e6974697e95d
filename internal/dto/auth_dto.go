package dto

import (
	"time"

	"github.com/consultlink/api/internal/models"
)

// RegisterRequest is the student self-service registration payload.
type RegisterRequest struct {
	Name          string `json:"name" validate:"required,min=2"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	StudentNumber string `json:"student_number" validate:"required,student_id"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ProfileUpdateRequest describes an account profile edit.
type ProfileUpdateRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// PasswordChangeRequest verifies the old password before setting a new one.
type PasswordChangeRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// TokenPairResponse holds an issued access/refresh token pair.
type TokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthResponse combines the account and its freshly issued tokens.
type AuthResponse struct {
	User   UserResponse      `json:"user"`
	Tokens TokenPairResponse `json:"tokens"`
}

// UserResponse is the serialized account representation.
type UserResponse struct {
	ID            uint              `json:"id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Role          string            `json:"role"`
	StudentNumber string            `json:"student_number,omitempty"`
	Subjects      []SubjectResponse `json:"subjects,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(model models.User) UserResponse {
	response := UserResponse{
		ID:            model.ID,
		Name:          model.Name,
		Email:         model.Email,
		Role:          string(model.Role),
		StudentNumber: model.StudentNumber,
		CreatedAt:     model.CreatedAt,
	}

	for _, subject := range model.Subjects {
		response.Subjects = append(response.Subjects, NewSubjectResponse(subject))
	}

	return response
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}

	return responses
}
