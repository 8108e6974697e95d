package dto

import (
	"time"

	"github.com/consultlink/api/internal/models"
)

// SubjectCreateRequest describes the payload for creating a subject.
type SubjectCreateRequest struct {
	Name        string `json:"name" validate:"required,min=2"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// SubjectResponse is the serialized subject representation.
type SubjectResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Teachers    []TeacherSummary `json:"teachers,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TeacherSummary is the compact teacher representation embedded in listings.
type TeacherSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewSubjectResponse converts a model into a DTO.
func NewSubjectResponse(model models.Subject) SubjectResponse {
	response := SubjectResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		CreatedAt:   model.CreatedAt,
	}

	for _, teacher := range model.Teachers {
		response.Teachers = append(response.Teachers, TeacherSummary{
			ID:    teacher.ID,
			Name:  teacher.Name,
			Email: teacher.Email,
		})
	}

	return response
}

// NewSubjectResponseSlice converts a slice of models into DTOs.
func NewSubjectResponseSlice(subjects []models.Subject) []SubjectResponse {
	responses := make([]SubjectResponse, 0, len(subjects))
	for _, subject := range subjects {
		responses = append(responses, NewSubjectResponse(subject))
	}

	return responses
}
