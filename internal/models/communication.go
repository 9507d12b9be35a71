package models

import (
	"time"

	"github.com/lib/pq"
)

// CommunicationChannel is the outbound delivery channel.
type CommunicationChannel string

const (
	ChannelEmail CommunicationChannel = "EMAIL"
	ChannelSMS   CommunicationChannel = "SMS"
)

// CommunicationStatus tracks asynchronous delivery.
type CommunicationStatus string

const (
	CommunicationQueued CommunicationStatus = "queued"
	CommunicationSent   CommunicationStatus = "sent"
	CommunicationFailed CommunicationStatus = "failed"
)

// CommunicationLog records one outbound email or SMS request.
type CommunicationLog struct {
	ID          string               `db:"id" json:"id"`
	SchoolID    string               `db:"school_id" json:"school_id"`
	Channel     CommunicationChannel `db:"channel" json:"channel"`
	Recipients  pq.StringArray       `db:"recipients" json:"recipients"`
	Subject     *string              `db:"subject" json:"subject,omitempty"`
	Body        string               `db:"body" json:"body"`
	Status      CommunicationStatus  `db:"status" json:"status"`
	Provider    string               `db:"provider" json:"provider"`
	ProviderRef *string              `db:"provider_ref" json:"provider_ref,omitempty"`
	Error       *string              `db:"error" json:"error,omitempty"`
	Attempts    int                  `db:"attempts" json:"attempts"`
	RequestedBy *string              `db:"requested_by" json:"requested_by,omitempty"`
	SentAt      *time.Time           `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// CommunicationFilter defines filters supported by list endpoints.
type CommunicationFilter struct {
	Channel   CommunicationChannel
	Status    CommunicationStatus
	Page      int
	PageSize  int
	SortOrder string
}
