package dto

import (
	"time"

	"github.com/consultlink/api/internal/models"
)

// ConsultationCreateRequest books a pending consultation against a slot.
type ConsultationCreateRequest struct {
	TeacherID uint   `json:"teacher_id" validate:"required"`
	SubjectID uint   `json:"subject_id" validate:"required"`
	DateTime  string `json:"date_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// ConsultationConfirmRequest optionally attaches a meeting link on confirm.
type ConsultationConfirmRequest struct {
	MeetingLink string `json:"meeting_link" validate:"omitempty,url"`
}

// ConsultationCancelRequest carries an optional cancellation reason.
type ConsultationCancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=2000"`
}

// ConsultationFeedbackRequest rates a completed consultation.
type ConsultationFeedbackRequest struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Feedback string `json:"feedback" validate:"omitempty,max=4000"`
}

// ConsultationResponse is the serialized booking representation.
type ConsultationResponse struct {
	ID              uint      `json:"id"`
	StudentID       uint      `json:"student_id"`
	TeacherID       uint      `json:"teacher_id"`
	SubjectID       uint      `json:"subject_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	EndsAt          time.Time `json:"ends_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	MeetingLink     string    `json:"meeting_link,omitempty"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	Rating          *int      `json:"rating,omitempty"`
	Feedback        string    `json:"feedback,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewConsultationResponse converts a model into a DTO.
func NewConsultationResponse(model models.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:              model.ID,
		StudentID:       model.StudentID,
		TeacherID:       model.TeacherID,
		SubjectID:       model.SubjectID,
		ScheduledAt:     model.ScheduledAt,
		EndsAt:          model.EndsAt(),
		DurationMinutes: model.DurationMinutes,
		Status:          string(model.Status),
		MeetingLink:     model.MeetingLink,
		CancelReason:    model.CancelReason,
		Rating:          model.Rating,
		Feedback:        model.Feedback,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewConsultationResponseSlice converts a slice of models into DTOs.
func NewConsultationResponseSlice(consultations []models.Consultation) []ConsultationResponse {
	responses := make([]ConsultationResponse, 0, len(consultations))
	for _, consultation := range consultations {
		responses = append(responses, NewConsultationResponse(consultation))
	}

	return responses
}
