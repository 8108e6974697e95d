package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message is a chat payload exchanged inside one consultation's booking window.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConsultationID uint      `gorm:"index;not null" json:"consultation_id"`
	SenderID       uint      `gorm:"index;not null" json:"sender_id"`
	ReceiverID     uint      `gorm:"index;not null" json:"receiver_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Type           string    `gorm:"size:32;default:text" json:"type"`
	Read           bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Notification is a fire-and-forget record of an event directed at a user.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"index;not null" json:"user_id"`
	Type      string            `gorm:"size:64" json:"type"`
	Message   string            `gorm:"type:text" json:"message"`
	Payload   datatypes.JSONMap `gorm:"type:json" json:"payload"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
