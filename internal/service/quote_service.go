package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"log"
	"quotedesk/internal/domain"
	"quotedesk/internal/events"
	"quotedesk/internal/notification"
	"quotedesk/internal/pricing"
	"strings"
	"time"
)

type QuoteService struct {
	quotes    QuoteStore
	customers CustomerStore
	audit     *AuditService
	notifier  QuoteNotifier
	artwork   ArtworkPurger
	bus       Publisher
	now       func() time.Time
}

// NewQuoteService wires the quote workflow. artwork may be nil when no object
// storage is configured.
func NewQuoteService(
	quotes QuoteStore,
	customers CustomerStore,
	audit *AuditService,
	notifier QuoteNotifier,
	artwork ArtworkPurger,
	bus Publisher,
) *QuoteService {
	return &QuoteService{
		quotes:    quotes,
		customers: customers,
		audit:     audit,
		notifier:  notifier,
		artwork:   artwork,
		bus:       bus,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateQuoteInput struct {
	Title           string                 `json:"title"`
	Notes           string                 `json:"notes"`
	CustomerID      *uuid.UUID             `json:"customer_id,omitempty"`
	CustomerName    string                 `json:"customer_name"`
	CustomerEmail   string                 `json:"customer_email"`
	CustomerPhone   string                 `json:"customer_phone"`
	CustomerCompany string                 `json:"customer_company"`
	OwnerID         *string                `json:"owner_id,omitempty"`
	LineItems       []domain.LineItemInput `json:"line_items"`
	DiscountValue   decimal.Decimal        `json:"discount_value"`
	DiscountType    domain.DiscountType    `json:"discount_type"`
	TaxRate         decimal.Decimal        `json:"tax_rate"`
	Shipping        decimal.Decimal        `json:"shipping"`
	ValidUntil      *time.Time             `json:"valid_until,omitempty"`
	ArtworkRequired bool                   `json:"artwork_required"`
}

// UpdateQuoteInput has patch semantics: nil fields are left alone.
type UpdateQuoteInput struct {
	Title           *string                 `json:"title,omitempty"`
	Notes           *string                 `json:"notes,omitempty"`
	CustomerID      *uuid.UUID              `json:"customer_id,omitempty"`
	ClearCustomerID bool                    `json:"clear_customer_id,omitempty"`
	CustomerName    *string                 `json:"customer_name,omitempty"`
	CustomerEmail   *string                 `json:"customer_email,omitempty"`
	CustomerPhone   *string                 `json:"customer_phone,omitempty"`
	CustomerCompany *string                 `json:"customer_company,omitempty"`
	OwnerID         *string                 `json:"owner_id,omitempty"`
	LineItems       *[]domain.LineItemInput `json:"line_items,omitempty"`
	DiscountValue   *decimal.Decimal        `json:"discount_value,omitempty"`
	DiscountType    *domain.DiscountType    `json:"discount_type,omitempty"`
	TaxRate         *decimal.Decimal        `json:"tax_rate,omitempty"`
	Shipping        *decimal.Decimal        `json:"shipping,omitempty"`
	ValidUntil      *time.Time              `json:"valid_until,omitempty"`
	ArtworkRequired *bool                   `json:"artwork_required,omitempty"`
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (s *QuoteService) Create(ctx context.Context, actor domain.Actor, in CreateQuoteInput) (*domain.Quote, error) {
	const op = "create quote"

	if len(in.LineItems) == 0 {
		return nil, domain.Invalid(op, "a quote needs at least one line item")
	}
	items, err := buildLineItems(op, in.LineItems, nil)
	if err != nil {
		return nil, err
	}
	if err := validatePricingInputs(op, in.DiscountValue, in.DiscountType, in.TaxRate, in.Shipping); err != nil {
		return nil, err
	}

	q := &domain.Quote{
		ID:              uuid.New(),
		Title:           strings.TrimSpace(in.Title),
		Notes:           in.Notes,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		CustomerCompany: strings.TrimSpace(in.CustomerCompany),
		OwnerID:         normalizeOwner(in.OwnerID),
		DiscountValue:   in.DiscountValue,
		DiscountType:    in.DiscountType,
		TaxRate:         in.TaxRate,
		Shipping:        in.Shipping,
		Status:          domain.QuoteStatusPending,
		ValidUntil:      in.ValidUntil,
		ArtworkRequired: in.ArtworkRequired,
		LineItems:       items,
	}
	if q.DiscountType == "" {
		q.DiscountType = domain.DiscountFixed
	}

	if in.CustomerID != nil {
		cust, err := s.lookupCustomer(ctx, op, *in.CustomerID)
		if err != nil {
			return nil, err
		}
		q.CustomerID = in.CustomerID
		q.Customer = cust
	} else if q.CustomerName == "" || !looksLikeEmail(q.CustomerEmail) {
		return nil, domain.Invalid(op, "select a customer or enter a customer name and email")
	}

	q.ApprovalToken, err = generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate approval token: %w", err)
	}

	if pricing.Apply(q).IsCredit() {
		log.Printf("[QuoteService] New quote %s totals to a credit of %s", q.ID, q.Total.StringFixed(2))
	}

	if err := s.quotes.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}
	log.Printf("[QuoteService] Created quote %s (%s) total=%s", q.QuoteNumber, q.ID, q.Total.StringFixed(2))

	s.publish(ctx, q, actor, []domain.AuditDraft{auditCreated(q, actor)},
		[]events.Intent{{Type: domain.NotifyInternalQuoteCreated, NewStatus: q.Status}}, nil)
	return q, nil
}

func (s *QuoteService) Get(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	return s.quotes.GetByID(ctx, id)
}

func (s *QuoteService) List(ctx context.Context, filter domain.QuoteFilter) (*domain.QuoteList, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Invalid("list quotes", "unknown status %q", filter.Status)
	}
	return s.quotes.List(ctx, filter)
}

// GetByApprovalToken is the customer's view of a quote behind its approval link.
func (s *QuoteService) GetByApprovalToken(ctx context.Context, token string) (*domain.Quote, error) {
	q, err := s.quotes.GetByApprovalToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, err
	}
	if q.IsArchived() {
		return nil, domain.ErrTokenInvalid
	}
	return q, nil
}

// Update applies a patch. Each changed dimension gets its own audit entry.
func (s *QuoteService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in UpdateQuoteInput) (*domain.Quote, error) {
	const op = "update quote"

	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.IsArchived() {
		return nil, &domain.ValidationError{Op: op, Reason: "archived quotes cannot be edited", Err: domain.ErrInvalidTransition}
	}
	before := q.Clone()

	// Customer
	if in.ClearCustomerID {
		q.CustomerID = nil
		q.Customer = nil
	}
	if in.CustomerID != nil && (q.CustomerID == nil || *q.CustomerID != *in.CustomerID) {
		cust, err := s.lookupCustomer(ctx, op, *in.CustomerID)
		if err != nil {
			return nil, err
		}
		q.CustomerID = in.CustomerID
		q.Customer = cust
	}
	setTrimmed(&q.CustomerName, in.CustomerName)
	setTrimmed(&q.CustomerEmail, in.CustomerEmail)
	setTrimmed(&q.CustomerPhone, in.CustomerPhone)
	setTrimmed(&q.CustomerCompany, in.CustomerCompany)
	if q.CustomerID == nil && (q.CustomerName == "" || !looksLikeEmail(q.CustomerEmail)) {
		return nil, domain.Invalid(op, "select a customer or enter a customer name and email")
	}

	if in.OwnerID != nil {
		q.OwnerID = normalizeOwner(in.OwnerID)
	}

	// Pricing inputs
	if in.DiscountValue != nil {
		q.DiscountValue = *in.DiscountValue
	}
	if in.DiscountType != nil {
		q.DiscountType = *in.DiscountType
	}
	if in.TaxRate != nil {
		q.TaxRate = *in.TaxRate
	}
	if in.Shipping != nil {
		q.Shipping = *in.Shipping
	}
	if err := validatePricingInputs(op, q.DiscountValue, q.DiscountType, q.TaxRate, q.Shipping); err != nil {
		return nil, err
	}

	var diff lineItemDiff
	if in.LineItems != nil {
		if len(*in.LineItems) == 0 {
			return nil, domain.Invalid(op, "a quote needs at least one line item")
		}
		items, err := buildLineItems(op, *in.LineItems, before.LineItems)
		if err != nil {
			return nil, err
		}
		diff = diffLineItems(before.LineItems, items)
		q.LineItems = items
	}

	// Other fields
	var (
		fields     []string
		prevFields = domain.Snapshot{}
		newFields  = domain.Snapshot{}
	)
	if in.Title != nil && strings.TrimSpace(*in.Title) != q.Title {
		prevFields["title"], newFields["title"] = q.Title, strings.TrimSpace(*in.Title)
		q.Title = strings.TrimSpace(*in.Title)
		fields = append(fields, "title")
	}
	if in.Notes != nil && *in.Notes != q.Notes {
		prevFields["notes"], newFields["notes"] = q.Notes, *in.Notes
		q.Notes = *in.Notes
		fields = append(fields, "notes")
	}
	if in.ValidUntil != nil && (q.ValidUntil == nil || !q.ValidUntil.Equal(*in.ValidUntil)) {
		prevFields["validUntil"], newFields["validUntil"] = formatTimePtr(q.ValidUntil), formatTimePtr(in.ValidUntil)
		q.ValidUntil = in.ValidUntil
		fields = append(fields, "valid until")
	}
	if in.ArtworkRequired != nil && *in.ArtworkRequired != q.ArtworkRequired {
		if q.Status.InArtworkReview() {
			return nil, &domain.ValidationError{Op: op, Reason: "artwork requirement cannot change during artwork review", Err: domain.ErrInvalidTransition}
		}
		prevFields["artworkRequired"], newFields["artworkRequired"] = q.ArtworkRequired, *in.ArtworkRequired
		q.ArtworkRequired = *in.ArtworkRequired
		fields = append(fields, "artwork required")
	}

	if pricing.Apply(q).IsCredit() {
		log.Printf("[QuoteService] Quote %s now totals to a credit of %s", q.QuoteNumber, q.Total.StringFixed(2))
	}

	var drafts []domain.AuditDraft
	if !sameCustomer(before, q) {
		drafts = append(drafts, auditCustomerChanged(before, q, actor))
	}
	if derefOr(before.OwnerID, "") != derefOr(q.OwnerID, "") {
		drafts = append(drafts, auditOwnerChanged(before, q, actor))
	}
	if !diff.Empty() {
		drafts = append(drafts, auditLineItemsChanged(q, diff, len(before.LineItems), actor))
	}
	if !samePricing(before, q) {
		drafts = append(drafts, auditPricingUpdated(before, q, actor))
	}
	if len(fields) > 0 {
		drafts = append(drafts, auditUpdated(q, fields, prevFields, newFields, actor))
	}
	if len(drafts) == 0 {
		return before, nil
	}

	if err := s.quotes.Update(ctx, q, before.Status, !diff.Empty()); err != nil {
		return nil, fmt.Errorf("failed to update quote: %w", err)
	}
	log.Printf("[QuoteService] Updated quote %s (%d audit entries)", q.QuoteNumber, len(drafts))

	s.publish(ctx, q, actor, drafts, nil, nil)
	return q, nil
}

// ChangeStatus moves a quote along the admin transition table.
func (s *QuoteService) ChangeStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.QuoteStatus) (*domain.Quote, error) {
	const op = "change status"
	if !to.Valid() {
		return nil, domain.Invalid(op, "unknown status %q", to)
	}
	if to == domain.QuoteStatusArchived && !actor.IsPrivileged() {
		return nil, domain.ErrForbidden
	}

	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := q.Status
	if !CanTransition(prev, to) {
		return nil, domain.InvalidTransition(op, prev, to)
	}
	if to.InArtworkReview() && !(q.ArtworkRequired && q.HasArtwork()) {
		return nil, &domain.ValidationError{Op: op, Reason: "quote has no artwork to review", Err: domain.ErrInvalidTransition}
	}
	if to == domain.QuoteStatusApproved && !q.ArtworkCleared() {
		return nil, &domain.ValidationError{Op: op, Reason: "artwork must be approved before the quote", Err: domain.ErrInvalidTransition}
	}

	now := s.now()
	q.Status = to
	switch to {
	case domain.QuoteStatusSent:
		if q.SentAt == nil {
			q.SentAt = &now
		}
	case domain.QuoteStatusApproved:
		q.ApprovedAt = &now
	}

	if err := s.quotes.Update(ctx, q, prev, false); err != nil {
		return nil, fmt.Errorf("failed to change status: %w", err)
	}
	log.Printf("[QuoteService] Quote %s: %s -> %s by %s", q.QuoteNumber, prev, to, actor.DisplayName())

	s.publish(ctx, q, actor,
		[]domain.AuditDraft{auditStatusChanged(q, prev, actor)},
		[]events.Intent{{Type: domain.NotifyInternalQuoteStatusChange, PreviousStatus: prev, NewStatus: to}},
		nil)
	return q, nil
}

// SendToCustomer emails the quote. Re-sending is allowed and audited every time.
// The state change is committed before delivery, so a *domain.DeliveryError
// comes back together with the updated quote.
func (s *QuoteService) SendToCustomer(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Quote, error) {
	const op = "send quote"

	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := q.Status
	switch prev {
	case domain.QuoteStatusPending, domain.QuoteStatusReviewing:
		q.Status = domain.QuoteStatusSent
	case domain.QuoteStatusSent, domain.QuoteStatusArtworkPending,
		domain.QuoteStatusArtworkApproved, domain.QuoteStatusArtworkDeclined:
	default:
		return nil, domain.InvalidTransition(op, prev, domain.QuoteStatusSent)
	}
	if !looksLikeEmail(q.ResolvedCustomerEmail()) {
		return nil, domain.Invalid(op, "quote has no customer email")
	}

	now := s.now()
	q.SentAt = &now
	if err := s.quotes.Update(ctx, q, prev, false); err != nil {
		return nil, fmt.Errorf("failed to mark quote sent: %w", err)
	}

	res := s.notifier.SendNow(ctx, domain.NotifyCustomerQuoteSent, q, actor, false)
	s.publish(ctx, q, actor, []domain.AuditDraft{auditSentToCustomer(q, prev, actor, res.Outcome)}, nil, nil)
	if res.Outcome == notification.OutcomeSkipped {
		log.Printf("[QuoteService] Quote %s marked sent without email: %s is disabled", q.QuoteNumber, domain.NotifyCustomerQuoteSent)
	}
	if !res.Success() {
		log.Printf("[QuoteService] Quote %s marked sent but email failed: %v", q.QuoteNumber, res.Err)
		return q, &domain.DeliveryError{Type: domain.NotifyCustomerQuoteSent, Err: res.Err}
	}
	return q, nil
}

// Archive is one-way. Only privileged users may archive.
func (s *QuoteService) Archive(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Quote, error) {
	if !actor.IsPrivileged() {
		return nil, domain.ErrForbidden
	}
	return s.ChangeStatus(ctx, actor, id, domain.QuoteStatusArchived)
}

// Delete removes the quote and its line items. The audit entry is written
// first and outlives the quote.
func (s *QuoteService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.IsPrivileged() {
		return domain.ErrForbidden
	}
	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, auditDeleted(q, actor))

	if err := s.quotes.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	log.Printf("[QuoteService] Deleted quote %s by %s", q.QuoteNumber, actor.DisplayName())

	if s.artwork != nil && q.ArtworkVersion > 0 {
		s.artwork.PurgeArtwork(ctx, q.ID)
	}
	return nil
}

// RespondToQuote records the customer's decision from the approval link.
func (s *QuoteService) RespondToQuote(ctx context.Context, token string, approve bool, notes string) (*domain.Quote, error) {
	const op = "respond to quote"

	q, err := s.GetByApprovalToken(ctx, token)
	if err != nil {
		return nil, err
	}
	prev := q.Status
	to := domain.QuoteStatusDeclined
	if approve {
		to = domain.QuoteStatusApproved
	}

	switch {
	case q.ArtworkRequired && prev == domain.QuoteStatusArtworkApproved && q.ArtworkCleared():
	case q.ArtworkRequired && (prev == domain.QuoteStatusSent || prev.InArtworkReview()):
		return nil, &domain.ValidationError{Op: op, Reason: "artwork must be approved before the quote", Err: domain.ErrInvalidTransition}
	case !q.ArtworkRequired && prev == domain.QuoteStatusSent:
	default:
		return nil, domain.InvalidTransition(op, prev, to)
	}

	notes = strings.TrimSpace(notes)
	actor := domain.CustomerActor(q.ResolvedCustomerName(), q.ResolvedCustomerEmail())
	q.Status = to
	if approve {
		now := s.now()
		q.ApprovedAt = &now
	}
	if err := s.quotes.Update(ctx, q, prev, false); err != nil {
		return nil, fmt.Errorf("failed to record customer response: %w", err)
	}
	log.Printf("[QuoteService] Customer %s quote %s", strings.ToLower(to.Label()), q.QuoteNumber)

	verb := "declined"
	if approve {
		verb = "approved"
	}
	s.publish(ctx, q, actor,
		[]domain.AuditDraft{auditCustomerResponded(q, prev, approve, notes, actor)},
		[]events.Intent{
			{Type: domain.NotifyCustomerQuoteStatusChange, PreviousStatus: prev, NewStatus: to},
			{Type: domain.NotifyInternalQuoteStatusChange, PreviousStatus: prev, NewStatus: to},
		},
		&events.OwnerAlert{
			Headline: fmt.Sprintf("%s %s quote %s", orNone(q.ResolvedCustomerName()), verb, q.QuoteNumber),
			Action:   verb,
			Notes:    notes,
		})
	return q, nil
}

func (s *QuoteService) publish(ctx context.Context, q *domain.Quote, actor domain.Actor, drafts []domain.AuditDraft, intents []events.Intent, alert *events.OwnerAlert) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.QuoteMutated{
		Quote:         q.Clone(),
		Actor:         actor,
		Audit:         drafts,
		Notifications: intents,
		OwnerAlert:    alert,
	})
}

func (s *QuoteService) lookupCustomer(ctx context.Context, op string, id uuid.UUID) (*domain.Customer, error) {
	cust, err := s.customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid(op, "customer %s does not exist", id)
		}
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return cust, nil
}

// buildLineItems validates client input. Client totals are never read; ids of
// existing items are kept so edits can be told apart from additions.
func buildLineItems(op string, in []domain.LineItemInput, existing []domain.LineItem) ([]domain.LineItem, error) {
	known := make(map[uuid.UUID]bool, len(existing))
	for _, it := range existing {
		known[it.ID] = true
	}

	items := make([]domain.LineItem, 0, len(in))
	seen := make(map[uuid.UUID]bool, len(in))
	for i, li := range in {
		itemType := li.ItemType
		if itemType == "" {
			itemType = domain.LineItemCustom
		}
		switch {
		case !itemType.Valid():
			return nil, domain.Invalid(op, "line item %d: unknown type %q", i+1, li.ItemType)
		case li.Quantity <= 0:
			return nil, domain.Invalid(op, "line item %d: quantity must be positive", i+1)
		case li.UnitPrice.IsNegative():
			return nil, domain.Invalid(op, "line item %d: unit price cannot be negative", i+1)
		case li.Discount.IsNegative():
			return nil, domain.Invalid(op, "line item %d: discount cannot be negative", i+1)
		case !pricing.FitsPlaces(li.UnitPrice, pricing.RatePlaces):
			return nil, domain.Invalid(op, "line item %d: unit price allows at most %d decimal places", i+1, pricing.RatePlaces)
		case !pricing.FitsPlaces(li.Discount, pricing.MoneyPlaces):
			return nil, domain.Invalid(op, "line item %d: discount allows at most %d decimal places", i+1, pricing.MoneyPlaces)
		}

		id := uuid.New()
		if li.ID != nil && known[*li.ID] && !seen[*li.ID] {
			id = *li.ID
		}
		seen[id] = true

		item := domain.LineItem{
			ID:          id,
			Position:    i,
			ItemType:    itemType,
			Description: strings.TrimSpace(li.Description),
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Discount:    li.Discount,
			ProductID:   li.ProductID,
			SupplierID:  li.SupplierID,
		}
		if itemType == domain.LineItemService {
			item.ServiceOptions = li.ServiceOptions
		}
		items = append(items, item)
	}
	return items, nil
}

func diffLineItems(before, after []domain.LineItem) lineItemDiff {
	prev := make(map[uuid.UUID]domain.LineItem, len(before))
	for _, it := range before {
		prev[it.ID] = it
	}
	var d lineItemDiff
	for _, it := range after {
		old, ok := prev[it.ID]
		if !ok {
			d.Added++
			continue
		}
		if !old.SameContent(it) {
			d.Modified++
		}
		delete(prev, it.ID)
	}
	d.Removed = len(prev)
	return d
}

func validatePricingInputs(op string, discountValue decimal.Decimal, discountType domain.DiscountType, taxRate, shipping decimal.Decimal) error {
	switch {
	case discountType != "" && !discountType.Valid():
		return domain.Invalid(op, "unknown discount type %q", discountType)
	case discountValue.IsNegative():
		return domain.Invalid(op, "discount cannot be negative")
	case taxRate.IsNegative():
		return domain.Invalid(op, "tax rate cannot be negative")
	case shipping.IsNegative():
		return domain.Invalid(op, "shipping cannot be negative")
	case !pricing.FitsPlaces(discountValue, pricing.RatePlaces):
		return domain.Invalid(op, "discount allows at most %d decimal places", pricing.RatePlaces)
	case !pricing.FitsPlaces(taxRate, pricing.RatePlaces):
		return domain.Invalid(op, "tax rate allows at most %d decimal places", pricing.RatePlaces)
	case !pricing.FitsPlaces(shipping, pricing.MoneyPlaces):
		return domain.Invalid(op, "shipping allows at most %d decimal places", pricing.MoneyPlaces)
	}
	return nil
}

func sameCustomer(a, b *domain.Quote) bool {
	idA, idB := "", ""
	if a.CustomerID != nil {
		idA = a.CustomerID.String()
	}
	if b.CustomerID != nil {
		idB = b.CustomerID.String()
	}
	return idA == idB &&
		a.CustomerName == b.CustomerName &&
		a.CustomerEmail == b.CustomerEmail &&
		a.CustomerPhone == b.CustomerPhone &&
		a.CustomerCompany == b.CustomerCompany
}

func samePricing(a, b *domain.Quote) bool {
	return a.DiscountType == b.DiscountType &&
		a.DiscountValue.Equal(b.DiscountValue) &&
		a.TaxRate.Equal(b.TaxRate) &&
		a.Shipping.Equal(b.Shipping) &&
		a.Subtotal.Equal(b.Subtotal) &&
		a.Total.Equal(b.Total)
}

func normalizeOwner(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func looksLikeEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \r\n")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
