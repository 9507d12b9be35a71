package models

import "time"

// DashboardSummary aggregates headline figures for a school.
type DashboardSummary struct {
	SchoolID            string         `json:"school_id"`
	StaffByStatus       map[string]int `json:"staff_by_status"`
	TotalStaff          int            `json:"total_staff"`
	Classes             int            `json:"classes"`
	Subjects            int            `json:"subjects"`
	Departments         int            `json:"departments"`
	CurrentAcademicYear *AcademicYear  `json:"current_academic_year,omitempty"`
	CurrentTerm         *Term          `json:"current_term,omitempty"`
	PaymentsTotal       float64        `json:"payments_total"`
	PendingPayroll      int            `json:"pending_payroll"`
	UnreadNotifications int            `json:"unread_notifications"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// DashboardCounts are the school-wide aggregates loaded in one query.
type DashboardCounts struct {
	Classes        int     `db:"classes"`
	Subjects       int     `db:"subjects"`
	Departments    int     `db:"departments"`
	PaymentsTotal  float64 `db:"payments_total"`
	PendingPayroll int     `db:"pending_payroll"`
}

// StatusCount pairs a status label with its row count.
type StatusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}
