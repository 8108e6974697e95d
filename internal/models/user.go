package models

import "time"

// UserRole enumerates the roles a ConsultLink account can hold.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User represents a ConsultLink account. Students carry a student number,
// teachers carry the set of subjects they consult on.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Email         string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash  string    `gorm:"size:255;not null" json:"-"`
	Role          UserRole  `gorm:"size:16;not null;index" json:"role"`
	StudentNumber string    `gorm:"size:16" json:"student_number,omitempty"`
	Subjects      []Subject `gorm:"many2many:subject_teachers" json:"subjects,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsTeacher reports whether the account holds the teacher role.
func (u User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// IsStudent reports whether the account holds the student role.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}
