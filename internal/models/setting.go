package models

import "time"

// SettingType constrains how a setting value is interpreted.
type SettingType string

const (
	SettingTypeString  SettingType = "STRING"
	SettingTypeBoolean SettingType = "BOOLEAN"
	SettingTypeNumber  SettingType = "NUMBER"
	SettingTypeJSON    SettingType = "JSON"
)

// Well-known setting keys.
const (
	SettingKeyCurrency = "currency"
	SettingKeyTimezone = "timezone"
)

// Setting stores a per-school key/value pair.
type Setting struct {
	ID          string      `db:"id" json:"id,omitempty"`
	SchoolID    string      `db:"school_id" json:"school_id"`
	Key         string      `db:"key" json:"key"`
	Value       string      `db:"value" json:"value"`
	Type        SettingType `db:"type" json:"type"`
	Description *string     `db:"description" json:"description,omitempty"`
	UpdatedBy   *string     `db:"updated_by" json:"updated_by,omitempty"`
	IsDefault   bool        `db:"-" json:"is_default"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}
