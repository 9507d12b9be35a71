package models

import "time"

// Class represents a teaching group for one grade level.
type Class struct {
	ID             string    `db:"id" json:"id"`
	SchoolID       string    `db:"school_id" json:"school_id"`
	Name           string    `db:"name" json:"name"`
	GradeLevel     int       `db:"grade_level" json:"grade_level"`
	Section        *string   `db:"section" json:"section,omitempty"`
	Capacity       *int      `db:"capacity" json:"capacity,omitempty"`
	AcademicYearID *string   `db:"academic_year_id" json:"academic_year_id,omitempty"`
	ClassTeacherID *string   `db:"class_teacher_id" json:"class_teacher_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filters supported by list endpoints.
type ClassFilter struct {
	GradeLevel     *int
	AcademicYearID string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
