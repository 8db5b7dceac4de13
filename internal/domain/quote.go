package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type QuoteStatus string
type DiscountType string

const (
	QuoteStatusPending         QuoteStatus = "PENDING"
	QuoteStatusReviewing       QuoteStatus = "REVIEWING"
	QuoteStatusSent            QuoteStatus = "SENT"
	QuoteStatusArtworkPending  QuoteStatus = "ARTWORK_PENDING"
	QuoteStatusArtworkApproved QuoteStatus = "ARTWORK_APPROVED"
	QuoteStatusArtworkDeclined QuoteStatus = "ARTWORK_DECLINED"
	QuoteStatusApproved        QuoteStatus = "APPROVED"
	QuoteStatusDeclined        QuoteStatus = "DECLINED"
	QuoteStatusArchived        QuoteStatus = "ARCHIVED"

	DiscountFixed      DiscountType = "FIXED"
	DiscountPercentage DiscountType = "PERCENTAGE"
)

var quoteStatuses = []QuoteStatus{
	QuoteStatusPending,
	QuoteStatusReviewing,
	QuoteStatusSent,
	QuoteStatusArtworkPending,
	QuoteStatusArtworkApproved,
	QuoteStatusArtworkDeclined,
	QuoteStatusApproved,
	QuoteStatusDeclined,
	QuoteStatusArchived,
}

// QuoteStatuses returns every status in lifecycle order.
func QuoteStatuses() []QuoteStatus {
	out := make([]QuoteStatus, len(quoteStatuses))
	copy(out, quoteStatuses)
	return out
}

func (s QuoteStatus) Valid() bool {
	for _, st := range quoteStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Label renders the status for humans ("ARTWORK_PENDING" -> "Artwork Pending").
func (s QuoteStatus) Label() string {
	parts := strings.Split(strings.ToLower(string(s)), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// InArtworkReview reports whether s belongs to the artwork sub-workflow.
func (s QuoteStatus) InArtworkReview() bool {
	switch s {
	case QuoteStatusArtworkPending, QuoteStatusArtworkApproved, QuoteStatusArtworkDeclined:
		return true
	}
	return false
}

func (t DiscountType) Valid() bool {
	return t == DiscountFixed || t == DiscountPercentage
}

// Quote is the central aggregate of the lifecycle engine.
type Quote struct {
	ID          uuid.UUID `json:"id" db:"id"`
	QuoteNumber string    `json:"quote_number" db:"quote_number"`
	Title       string    `json:"title" db:"title"`
	Notes       string    `json:"notes" db:"notes"`

	// Customer reference: either a stored customer or inlined manual fields.
	CustomerID      *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"`
	CustomerName    string     `json:"customer_name" db:"customer_name"`
	CustomerEmail   string     `json:"customer_email" db:"customer_email"`
	CustomerPhone   string     `json:"customer_phone" db:"customer_phone"`
	CustomerCompany string     `json:"customer_company" db:"customer_company"`
	Customer        *Customer  `json:"customer,omitempty" db:"-"`

	OwnerID *string `json:"owner_id,omitempty" db:"owner_id"`

	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountValue decimal.Decimal `json:"discount_value" db:"discount_value"`
	DiscountType  DiscountType    `json:"discount_type" db:"discount_type"`
	Discount      decimal.Decimal `json:"discount" db:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	Tax           decimal.Decimal `json:"tax" db:"tax"`
	Shipping      decimal.Decimal `json:"shipping" db:"shipping"`
	Total         decimal.Decimal `json:"total" db:"total"`

	Status        QuoteStatus `json:"status" db:"status"`
	ApprovalToken string      `json:"-" db:"approval_token"`
	ValidUntil    *time.Time  `json:"valid_until,omitempty" db:"valid_until"`

	ArtworkRequired     bool       `json:"artwork_required" db:"artwork_required"`
	ArtworkURL          *string    `json:"artwork_url,omitempty" db:"artwork_url"`
	ArtworkFileName     *string    `json:"artwork_file_name,omitempty" db:"artwork_file_name"`
	ArtworkThumbnailURL *string    `json:"artwork_thumbnail_url,omitempty" db:"artwork_thumbnail_url"`
	ArtworkVersion      int        `json:"artwork_version" db:"artwork_version"`
	ArtworkToken        *string    `json:"-" db:"artwork_token"`
	ArtworkSentAt       *time.Time `json:"artwork_sent_at,omitempty" db:"artwork_sent_at"`
	ArtworkApprovedAt   *time.Time `json:"artwork_approved_at,omitempty" db:"artwork_approved_at"`
	ArtworkDeclinedAt   *time.Time `json:"artwork_declined_at,omitempty" db:"artwork_declined_at"`
	ArtworkNotes        *string    `json:"artwork_notes,omitempty" db:"artwork_notes"`

	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastModifiedAt time.Time  `json:"last_modified_at" db:"last_modified_at"`
	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty" db:"approved_at"`

	LineItems []LineItem `json:"line_items" db:"-"`
}

// ResolvedCustomerEmail prefers the linked customer record over the manual fields.
func (q *Quote) ResolvedCustomerEmail() string {
	if q.Customer != nil && strings.TrimSpace(q.Customer.Email) != "" {
		return strings.TrimSpace(q.Customer.Email)
	}
	return strings.TrimSpace(q.CustomerEmail)
}

func (q *Quote) ResolvedCustomerName() string {
	if q.Customer != nil && strings.TrimSpace(q.Customer.Name) != "" {
		return strings.TrimSpace(q.Customer.Name)
	}
	return strings.TrimSpace(q.CustomerName)
}

func (q *Quote) ResolvedCustomerCompany() string {
	if q.Customer != nil && strings.TrimSpace(q.Customer.Company) != "" {
		return strings.TrimSpace(q.Customer.Company)
	}
	return strings.TrimSpace(q.CustomerCompany)
}

func (q *Quote) HasArtwork() bool {
	return q.ArtworkVersion > 0 && q.ArtworkURL != nil && *q.ArtworkURL != ""
}

// ArtworkCleared reports whether the customer approved the current artwork
// version, or no artwork is needed at all.
func (q *Quote) ArtworkCleared() bool {
	if !q.ArtworkRequired {
		return true
	}
	return q.Status == QuoteStatusArtworkApproved && q.HasArtwork() && q.ArtworkApprovedAt != nil
}

func (q *Quote) IsArchived() bool {
	return q.Status == QuoteStatusArchived
}

// Clone returns a deep copy so callers can diff before/after states.
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}
	c := *q
	c.CustomerID = cloneUUID(q.CustomerID)
	c.OwnerID = cloneString(q.OwnerID)
	c.ValidUntil = cloneTime(q.ValidUntil)
	c.ArtworkURL = cloneString(q.ArtworkURL)
	c.ArtworkFileName = cloneString(q.ArtworkFileName)
	c.ArtworkThumbnailURL = cloneString(q.ArtworkThumbnailURL)
	c.ArtworkToken = cloneString(q.ArtworkToken)
	c.ArtworkSentAt = cloneTime(q.ArtworkSentAt)
	c.ArtworkApprovedAt = cloneTime(q.ArtworkApprovedAt)
	c.ArtworkDeclinedAt = cloneTime(q.ArtworkDeclinedAt)
	c.ArtworkNotes = cloneString(q.ArtworkNotes)
	c.SentAt = cloneTime(q.SentAt)
	c.ApprovedAt = cloneTime(q.ApprovedAt)
	if q.Customer != nil {
		cust := *q.Customer
		c.Customer = &cust
	}
	if q.LineItems != nil {
		c.LineItems = make([]LineItem, len(q.LineItems))
		for i, item := range q.LineItems {
			c.LineItems[i] = item.Clone()
		}
	}
	return &c
}

// QuoteFilter narrows quote listings.
type QuoteFilter struct {
	Status     QuoteStatus
	OwnerID    string
	CustomerID *uuid.UUID
	Search     string
	Limit      int
	Offset     int
}

type QuoteList struct {
	Quotes []Quote `json:"quotes"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
