package models

import "time"

// ConsultationStatus enumerates the booking lifecycle states.
type ConsultationStatus string

const (
	ConsultationPending   ConsultationStatus = "pending"
	ConsultationConfirmed ConsultationStatus = "confirmed"
	ConsultationRejected  ConsultationStatus = "rejected"
	ConsultationCancelled ConsultationStatus = "cancelled"
	ConsultationCompleted ConsultationStatus = "completed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s ConsultationStatus) IsTerminal() bool {
	switch s {
	case ConsultationRejected, ConsultationCancelled, ConsultationCompleted:
		return true
	default:
		return false
	}
}

// Consultation is a booking between one student and one teacher for one
// subject at one concrete time. DurationMinutes is copied from the
// originating availability window at booking time.
type Consultation struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	StudentID       uint               `gorm:"index;not null" json:"student_id"`
	TeacherID       uint               `gorm:"index;not null" json:"teacher_id"`
	SubjectID       uint               `gorm:"index;not null" json:"subject_id"`
	ScheduledAt     time.Time          `gorm:"index;not null" json:"scheduled_at"`
	DurationMinutes int                `gorm:"not null" json:"duration_minutes"`
	Status          ConsultationStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	MeetingLink     string             `gorm:"size:512" json:"meeting_link,omitempty"`
	CancelReason    string             `gorm:"type:text" json:"cancel_reason,omitempty"`
	Rating          *int               `json:"rating,omitempty"`
	Feedback        string             `gorm:"type:text" json:"feedback,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// EndsAt returns the end of the booking window.
func (c Consultation) EndsAt() time.Time {
	return c.ScheduledAt.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// SlotClaim reserves a concrete (teacher, start time) pair for one active
// consultation. The unique index makes claiming atomic: a second booking for
// the same pair fails on insert instead of silently double-booking.
type SlotClaim struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TeacherID      uint      `gorm:"not null;uniqueIndex:idx_slot_claims_teacher_start" json:"teacher_id"`
	StartsAt       time.Time `gorm:"not null;uniqueIndex:idx_slot_claims_teacher_start" json:"starts_at"`
	ConsultationID uint      `gorm:"index;not null" json:"consultation_id"`
	CreatedAt      time.Time `json:"created_at"`
}
