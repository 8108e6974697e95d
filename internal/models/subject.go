package models

import "time"

// Subject is a named academic topic students can book consultations for.
type Subject struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Teachers    []User    `gorm:"many2many:subject_teachers" json:"teachers,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
