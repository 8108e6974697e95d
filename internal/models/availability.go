package models

import "time"

// AvailabilityWindow is a teacher-owned recurring weekly declaration of a
// day/time range during which consultations for a subject may be booked.
// StartTime and EndTime are HH:MM strings in the teacher's local day.
type AvailabilityWindow struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	TeacherID           uint      `gorm:"index;not null" json:"teacher_id"`
	SubjectID           uint      `gorm:"index;not null" json:"subject_id"`
	DayOfWeek           int       `gorm:"not null" json:"day_of_week"`
	StartTime           string    `gorm:"size:5;not null" json:"start_time"`
	EndTime             string    `gorm:"size:5;not null" json:"end_time"`
	SlotDurationMinutes int       `gorm:"not null" json:"slot_duration_minutes"`
	MaxCapacity         int       `gorm:"not null;default:1" json:"max_capacity"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
