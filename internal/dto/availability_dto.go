package dto

import (
	"time"

	"github.com/consultlink/api/internal/models"
)

// AvailabilityCreateRequest declares a recurring weekly availability window.
type AvailabilityCreateRequest struct {
	SubjectID           uint   `json:"subject_id" validate:"required"`
	DayOfWeek           int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime           string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime             string `json:"end_time" validate:"required,datetime=15:04"`
	SlotDurationMinutes int    `json:"slot_duration_minutes" validate:"required,min=5,max=480"`
	MaxCapacity         int    `json:"max_capacity" validate:"omitempty,min=1"`
}

// AvailabilityUpdateRequest edits an existing window.
type AvailabilityUpdateRequest struct {
	DayOfWeek           *int    `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	StartTime           *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime             *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	SlotDurationMinutes *int    `json:"slot_duration_minutes" validate:"omitempty,min=5,max=480"`
	MaxCapacity         *int    `json:"max_capacity" validate:"omitempty,min=1"`
}

// AvailabilityResponse is the serialized window representation.
type AvailabilityResponse struct {
	ID                  uint      `json:"id"`
	TeacherID           uint      `json:"teacher_id"`
	SubjectID           uint      `json:"subject_id"`
	DayOfWeek           int       `json:"day_of_week"`
	StartTime           string    `json:"start_time"`
	EndTime             string    `json:"end_time"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	MaxCapacity         int       `json:"max_capacity"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewAvailabilityResponse converts a model into a DTO.
func NewAvailabilityResponse(model models.AvailabilityWindow) AvailabilityResponse {
	return AvailabilityResponse{
		ID:                  model.ID,
		TeacherID:           model.TeacherID,
		SubjectID:           model.SubjectID,
		DayOfWeek:           model.DayOfWeek,
		StartTime:           model.StartTime,
		EndTime:             model.EndTime,
		SlotDurationMinutes: model.SlotDurationMinutes,
		MaxCapacity:         model.MaxCapacity,
		CreatedAt:           model.CreatedAt,
	}
}

// NewAvailabilityResponseSlice converts a slice of models into DTOs.
func NewAvailabilityResponseSlice(windows []models.AvailabilityWindow) []AvailabilityResponse {
	responses := make([]AvailabilityResponse, 0, len(windows))
	for _, window := range windows {
		responses = append(responses, NewAvailabilityResponse(window))
	}

	return responses
}

// SlotResponse is one concrete bookable start-time/duration pair.
type SlotResponse struct {
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// DaySlotsResponse lists the bookable slots for one teacher/subject/date.
// HasWindows distinguishes "no availability set for this date" from
// "windows exist but every slot is taken".
type DaySlotsResponse struct {
	TeacherID  uint           `json:"teacher_id"`
	SubjectID  uint           `json:"subject_id"`
	Date       string         `json:"date"`
	HasWindows bool           `json:"has_windows"`
	Slots      []SlotResponse `json:"slots"`
}
