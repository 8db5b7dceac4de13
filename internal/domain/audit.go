package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AuditAction string
type ActorType string

const (
	AuditCreated                   AuditAction = "CREATED"
	AuditUpdated                   AuditAction = "UPDATED"
	AuditStatusChanged             AuditAction = "STATUS_CHANGED"
	AuditSentToCustomer            AuditAction = "SENT_TO_CUSTOMER"
	AuditApprovedByCustomer        AuditAction = "APPROVED_BY_CUSTOMER"
	AuditDeclinedByCustomer        AuditAction = "DECLINED_BY_CUSTOMER"
	AuditLineItemAdded             AuditAction = "LINE_ITEM_ADDED"
	AuditLineItemUpdated           AuditAction = "LINE_ITEM_UPDATED"
	AuditLineItemRemoved           AuditAction = "LINE_ITEM_REMOVED"
	AuditCustomerChanged           AuditAction = "CUSTOMER_CHANGED"
	AuditOwnerChanged              AuditAction = "OWNER_CHANGED"
	AuditPricingUpdated            AuditAction = "PRICING_UPDATED"
	AuditArtworkUploaded           AuditAction = "ARTWORK_UPLOADED"
	AuditArtworkSentToCustomer     AuditAction = "ARTWORK_SENT_TO_CUSTOMER"
	AuditArtworkApprovedByCustomer AuditAction = "ARTWORK_APPROVED_BY_CUSTOMER"
	AuditArtworkDeclinedByCustomer AuditAction = "ARTWORK_DECLINED_BY_CUSTOMER"
	AuditArtworkUpdated            AuditAction = "ARTWORK_UPDATED"
	AuditDeleted                   AuditAction = "DELETED"

	ActorAdmin    ActorType = "ADMIN"
	ActorCustomer ActorType = "CUSTOMER"
	ActorSystem   ActorType = "SYSTEM"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Actor identifies who performed a mutation.
type Actor struct {
	Type  ActorType `json:"type"`
	ID    string    `json:"id,omitempty"`
	Name  string    `json:"name,omitempty"`
	Email string    `json:"email,omitempty"`
	Role  string    `json:"role,omitempty"`
}

func (a Actor) IsPrivileged() bool {
	return a.Type == ActorAdmin && a.Role == RoleAdmin
}

// DisplayName is used in audit descriptions.
func (a Actor) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.Email != "":
		return a.Email
	case a.Type == ActorCustomer:
		return "customer"
	case a.Type == ActorSystem:
		return "system"
	case a.ID != "":
		return a.ID
	}
	return "unknown"
}

// CustomerActor is the actor for token-authenticated customer actions.
func CustomerActor(name, email string) Actor {
	return Actor{Type: ActorCustomer, Name: name, Email: email}
}

// Snapshot is an opaque structured slice of quote state stored as jsonb.
type Snapshot map[string]any

func (s *Snapshot) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported snapshot type %T", src)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*s = m
	return nil
}

func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Status returns the "status" key, if the snapshot carries one.
func (s Snapshot) Status() (QuoteStatus, bool) {
	if s == nil {
		return "", false
	}
	raw, ok := s["status"]
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return QuoteStatus(v), true
	case QuoteStatus:
		return v, true
	}
	return "", false
}

// QuoteAuditLogEntry is append-only and immutable once written.
type QuoteAuditLogEntry struct {
	ID            int64       `json:"id" db:"id"`
	QuoteID       uuid.UUID   `json:"quote_id" db:"quote_id"`
	QuoteNumber   string      `json:"quote_number" db:"quote_number"`
	Action        AuditAction `json:"action" db:"action"`
	Description   string      `json:"description" db:"description"`
	ActorType     ActorType   `json:"actor_type" db:"actor_type"`
	ActorID       *string     `json:"actor_id,omitempty" db:"actor_id"`
	ActorName     *string     `json:"actor_name,omitempty" db:"actor_name"`
	ActorEmail    *string     `json:"actor_email,omitempty" db:"actor_email"`
	PreviousValue Snapshot    `json:"previous_value,omitempty" db:"previous_value"`
	NewValue      Snapshot    `json:"new_value,omitempty" db:"new_value"`
	Metadata      Snapshot    `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// AuditDraft is an audit entry that has not been written yet.
type AuditDraft struct {
	QuoteID       uuid.UUID
	QuoteNumber   string
	Action        AuditAction
	Description   string
	Actor         Actor
	PreviousValue Snapshot
	NewValue      Snapshot
	Metadata      Snapshot
}

// Entry converts a draft into a storable row.
func (d AuditDraft) Entry() QuoteAuditLogEntry {
	e := QuoteAuditLogEntry{
		QuoteID:       d.QuoteID,
		QuoteNumber:   d.QuoteNumber,
		Action:        d.Action,
		Description:   d.Description,
		ActorType:     d.Actor.Type,
		PreviousValue: d.PreviousValue,
		NewValue:      d.NewValue,
		Metadata:      d.Metadata,
	}
	if e.ActorType == "" {
		e.ActorType = ActorSystem
	}
	if d.Actor.ID != "" {
		e.ActorID = &d.Actor.ID
	}
	if d.Actor.Name != "" {
		e.ActorName = &d.Actor.Name
	}
	if d.Actor.Email != "" {
		e.ActorEmail = &d.Actor.Email
	}
	return e
}

type AuditOrder string

const (
	AuditNewestFirst AuditOrder = "desc"
	AuditOldestFirst AuditOrder = "asc"
)

type AuditPageRequest struct {
	PageSize  int
	PageToken string
	Order     AuditOrder
}

type AuditPage struct {
	Entries       []QuoteAuditLogEntry `json:"entries"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}
