package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type NotificationType string
type NotificationChannel string
type NotificationStatus string

const (
	NotifyInternalQuoteCreated      NotificationType = "INTERNAL_QUOTE_CREATED"
	NotifyInternalQuoteStatusChange NotificationType = "INTERNAL_QUOTE_STATUS_CHANGE"
	NotifyInternalUserVerification  NotificationType = "INTERNAL_USER_VERIFICATION"
	NotifyInternalArtworkResponse   NotificationType = "INTERNAL_ARTWORK_RESPONSE"
	NotifyCustomerQuoteSent         NotificationType = "CUSTOMER_QUOTE_SENT"
	NotifyCustomerQuoteStatusChange NotificationType = "CUSTOMER_QUOTE_STATUS_CHANGE"
	NotifyCustomerArtworkApproval   NotificationType = "CUSTOMER_ARTWORK_APPROVAL"

	ChannelEmail NotificationChannel = "EMAIL"
	// ChannelSMS is accepted in settings but has no transport.
	ChannelSMS NotificationChannel = "SMS"

	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

const internalTypePrefix = "INTERNAL_"

var notificationTypes = []NotificationType{
	NotifyInternalQuoteCreated,
	NotifyInternalQuoteStatusChange,
	NotifyInternalUserVerification,
	NotifyInternalArtworkResponse,
	NotifyCustomerQuoteSent,
	NotifyCustomerQuoteStatusChange,
	NotifyCustomerArtworkApproval,
}

func NotificationTypes() []NotificationType {
	out := make([]NotificationType, len(notificationTypes))
	copy(out, notificationTypes)
	return out
}

func (t NotificationType) Valid() bool {
	for _, nt := range notificationTypes {
		if nt == t {
			return true
		}
	}
	return false
}

// IsInternal reports whether the type goes to staff rather than the customer.
func (t NotificationType) IsInternal() bool {
	return strings.HasPrefix(string(t), internalTypePrefix)
}

// NotificationSetting configures one notification type.
type NotificationSetting struct {
	Type            NotificationType    `json:"type" db:"type"`
	Enabled         bool                `json:"enabled" db:"enabled"`
	Channel         NotificationChannel `json:"channel" db:"channel"`
	Recipients      pq.StringArray      `json:"recipients" db:"recipients"`
	SubjectTemplate string              `json:"subject_template" db:"subject_template"`
	BodyTemplate    string              `json:"body_template" db:"body_template"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// NotificationLog is one row per attempted send.
type NotificationLog struct {
	ID           uuid.UUID           `json:"id" db:"id"`
	Type         NotificationType    `json:"type" db:"type"`
	Channel      NotificationChannel `json:"channel" db:"channel"`
	Recipient    string              `json:"recipient" db:"recipient"`
	Subject      string              `json:"subject" db:"subject"`
	Status       NotificationStatus  `json:"status" db:"status"`
	ErrorMessage *string             `json:"error_message,omitempty" db:"error_message"`
	MessageID    *string             `json:"message_id,omitempty" db:"message_id"`
	QuoteID      *uuid.UUID          `json:"quote_id,omitempty" db:"quote_id"`
	CustomerID   *uuid.UUID          `json:"customer_id,omitempty" db:"customer_id"`
	UserID       *string             `json:"user_id,omitempty" db:"user_id"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	SentAt       *time.Time          `json:"sent_at,omitempty" db:"sent_at"`
}

type NotificationLogFilter struct {
	Type    NotificationType
	Status  NotificationStatus
	QuoteID *uuid.UUID
	Limit   int
	Offset  int
}
