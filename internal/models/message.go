package models

import "time"

// MessageFolder selects which side of a conversation to list.
type MessageFolder string

const (
	MessageFolderInbox MessageFolder = "inbox"
	MessageFolderSent  MessageFolder = "sent"
)

// Message is a direct message between two users of the same school.
type Message struct {
	ID          string     `db:"id" json:"id"`
	SchoolID    string     `db:"school_id" json:"school_id"`
	SenderID    string     `db:"sender_id" json:"sender_id"`
	RecipientID string     `db:"recipient_id" json:"recipient_id"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// MessageFilter defines filters supported by list endpoints.
type MessageFilter struct {
	UserID    string
	Folder    MessageFolder
	Unread    *bool
	Page      int
	PageSize  int
	SortOrder string
}
