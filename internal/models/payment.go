package models

import "time"

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCheque       PaymentMethod = "cheque"
)

// PaymentStatus tracks settlement of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is money received by a school.
type Payment struct {
	ID               string        `db:"id" json:"id"`
	SchoolID         string        `db:"school_id" json:"school_id"`
	PayerName        string        `db:"payer_name" json:"payer_name"`
	StudentReference *string       `db:"student_reference" json:"student_reference,omitempty"`
	Amount           float64       `db:"amount" json:"amount"`
	Currency         string        `db:"currency" json:"currency"`
	PaymentDate      time.Time     `db:"payment_date" json:"payment_date"`
	Method           PaymentMethod `db:"method" json:"method"`
	Status           PaymentStatus `db:"status" json:"status"`
	Reference        *string       `db:"reference" json:"reference,omitempty"`
	Description      *string       `db:"description" json:"description,omitempty"`
	AcademicYearID   *string       `db:"academic_year_id" json:"academic_year_id,omitempty"`
	TermID           *string       `db:"term_id" json:"term_id,omitempty"`
	RecordedBy       *string       `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentFilter defines filters supported by list and export endpoints.
type PaymentFilter struct {
	Status         PaymentStatus
	Method         PaymentMethod
	From           *time.Time
	To             *time.Time
	TermID         string
	AcademicYearID string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
