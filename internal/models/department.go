package models

import "time"

// Department groups staff and subjects.
type Department struct {
	ID          string    `db:"id" json:"id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	Name        string    `db:"name" json:"name"`
	Code        *string   `db:"code" json:"code,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	HeadStaffID *string   `db:"head_staff_id" json:"head_staff_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentFilter defines filters supported by list endpoints.
type DepartmentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
