package dto

import (
	"time"

	"github.com/consultlink/api/internal/models"
)

// MessageSendRequest posts a chat message into a consultation's window.
type MessageSendRequest struct {
	ConsultationID uint   `json:"consultation_id" validate:"required"`
	ReceiverID     uint   `json:"receiver_id" validate:"required"`
	Content        string `json:"content" validate:"required,max=4000"`
	MessageType    string `json:"message_type" validate:"omitempty,oneof=text link"`
}

// MessageResponse is the serialized message representation.
type MessageResponse struct {
	ID             uint      `json:"id"`
	ConsultationID uint      `json:"consultation_id"`
	SenderID       uint      `json:"sender_id"`
	ReceiverID     uint      `json:"receiver_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(model models.Message) MessageResponse {
	return MessageResponse{
		ID:             model.ID,
		ConsultationID: model.ConsultationID,
		SenderID:       model.SenderID,
		ReceiverID:     model.ReceiverID,
		Content:        model.Content,
		Type:           model.Type,
		Read:           model.Read,
		CreatedAt:      model.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	responses := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		responses = append(responses, NewMessageResponse(message))
	}

	return responses
}

// MessageWindowStatus reports whether messaging is currently permitted for a
// consultation and, when it is not, exactly one denial reason.
type MessageWindowStatus struct {
	ConsultationID uint       `json:"consultation_id"`
	Allowed        bool       `json:"allowed"`
	Reason         string     `json:"reason,omitempty"`
	OpensAt        *time.Time `json:"opens_at,omitempty"`
	ClosesAt       *time.Time `json:"closes_at,omitempty"`
}
