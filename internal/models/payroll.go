package models

import "time"

// PayrollStatus tracks a payroll run through approval and payment.
type PayrollStatus string

const (
	PayrollStatusDraft    PayrollStatus = "draft"
	PayrollStatusApproved PayrollStatus = "approved"
	PayrollStatusPaid     PayrollStatus = "paid"
)

// Payroll is one staff member's pay for a period.
type Payroll struct {
	ID          string        `db:"id" json:"id"`
	SchoolID    string        `db:"school_id" json:"school_id"`
	StaffID     string        `db:"staff_id" json:"staff_id"`
	PeriodStart time.Time     `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time     `db:"period_end" json:"period_end"`
	BasicSalary float64       `db:"basic_salary" json:"basic_salary"`
	Allowances  float64       `db:"allowances" json:"allowances"`
	Deductions  float64       `db:"deductions" json:"deductions"`
	NetSalary   float64       `db:"net_salary" json:"net_salary"`
	Status      PayrollStatus `db:"status" json:"status"`
	PaidAt      *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	Notes       *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// PayrollDetail joins the staff name for listings and exports.
type PayrollDetail struct {
	Payroll
	StaffName string `db:"staff_name" json:"staff_name"`
}

// PayrollFilter defines filters supported by list and export endpoints.
type PayrollFilter struct {
	StaffID   string
	Status    PayrollStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
