package dto

import (
	"time"

	"github.com/consultlink/api/internal/models"
)

// NotificationCreateRequest publishes a notification to one user.
type NotificationCreateRequest struct {
	UserID  uint                   `json:"user_id" validate:"required"`
	Type    string                 `json:"type" validate:"required,max=64"`
	Message string                 `json:"message" validate:"required,max=2000"`
	Payload map[string]interface{} `json:"payload" validate:"omitempty"`
}

// NotificationResponse is the serialized notification representation.
type NotificationResponse struct {
	ID        uint                   `json:"id"`
	UserID    uint                   `json:"user_id"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewNotificationResponse converts a model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		Payload:   model.Payload,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of models into DTOs.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, NewNotificationResponse(notification))
	}

	return responses
}
