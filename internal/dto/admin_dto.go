package dto

// TeacherCreateRequest provisions a teacher account.
type TeacherCreateRequest struct {
	Name       string `json:"name" validate:"required,min=2"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"omitempty,min=8"`
	SubjectIDs []uint `json:"subject_ids" validate:"omitempty,dive,required"`
}

// TeacherUpdateRequest edits a teacher account.
type TeacherUpdateRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=2"`
	Email      *string `json:"email" validate:"omitempty,email"`
	SubjectIDs *[]uint `json:"subject_ids" validate:"omitempty,dive,required"`
}

// UserListQuery filters the admin user listing.
type UserListQuery struct {
	Role     string `json:"role" validate:"omitempty,oneof=student teacher admin"`
	Search   string `json:"search" validate:"omitempty,max=255"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// PaginationMeta describes the page window of a listing response.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// UserListResponse pages through accounts for the admin dashboard.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}
