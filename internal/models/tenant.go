package models

import "time"

// TenantStatus captures whether a tenant may use the platform.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
)

// Tenant is an organisation owning one or more schools.
type Tenant struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Slug      string       `db:"slug" json:"slug"`
	Domain    *string      `db:"domain" json:"domain,omitempty"`
	Status    TenantStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// TenantFilter defines tenant list filters.
type TenantFilter struct {
	ID        string
	Search    string
	Status    TenantStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// School belongs to exactly one tenant and scopes all domain data.
type School struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SchoolFilter defines school list filters.
type SchoolFilter struct {
	TenantID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ScopeSource records which rule picked the school for a request.
type ScopeSource string

const (
	ScopeSourceClaims      ScopeSource = "claims"
	ScopeSourceFirstSchool ScopeSource = "first_school"
	ScopeSourceExplicit    ScopeSource = "explicit"
)

// TenantScope is the resolved tenant and school a request operates on.
type TenantScope struct {
	TenantID string      `json:"tenant_id"`
	SchoolID string      `json:"school_id"`
	Source   ScopeSource `json:"source"`
}

// Valid reports whether the scope names a school.
func (s TenantScope) Valid() bool {
	return s.SchoolID != ""
}
