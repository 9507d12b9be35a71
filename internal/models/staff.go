package models

import "time"

// EmploymentType describes the contract a staff member works under.
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "full_time"
	EmploymentPartTime EmploymentType = "part_time"
	EmploymentContract EmploymentType = "contract"
)

// StaffStatus is the lifecycle state of a staff member.
type StaffStatus string

const (
	StaffStatusActive     StaffStatus = "active"
	StaffStatusInactive   StaffStatus = "inactive"
	StaffStatusOnLeave    StaffStatus = "on_leave"
	StaffStatusTerminated StaffStatus = "terminated"
)

// Staff is an employee of a school.
type Staff struct {
	ID             string         `db:"id" json:"id"`
	SchoolID       string         `db:"school_id" json:"school_id"`
	EmployeeNumber *string        `db:"employee_number" json:"employee_number,omitempty"`
	FirstName      string         `db:"first_name" json:"first_name"`
	LastName       string         `db:"last_name" json:"last_name"`
	Email          string         `db:"email" json:"email"`
	Phone          *string        `db:"phone" json:"phone,omitempty"`
	Position       string         `db:"position" json:"position"`
	DepartmentID   *string        `db:"department_id" json:"department_id,omitempty"`
	EmploymentType EmploymentType `db:"employment_type" json:"employment_type"`
	HireDate       *time.Time     `db:"hire_date" json:"hire_date,omitempty"`
	Salary         float64        `db:"salary" json:"salary"`
	Status         StaffStatus    `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// FullName joins the staff member's names.
func (s Staff) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StaffFilter defines filters supported by list endpoints.
type StaffFilter struct {
	DepartmentID   string
	Status         StaffStatus
	EmploymentType EmploymentType
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
