package service

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"log"
	"quotedesk/internal/domain"
	"quotedesk/internal/events"
	"quotedesk/internal/notification"
	"quotedesk/internal/pagination"
	"strings"
)

type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Record appends one entry. A failed write is logged and swallowed: the
// mutation it describes is already committed.
func (s *AuditService) Record(ctx context.Context, d domain.AuditDraft) {
	entry := d.Entry()
	if err := s.store.Insert(ctx, &entry); err != nil {
		log.Printf("[Audit] Failed to record %s for quote %s (%s): %v", d.Action, d.QuoteNumber, d.QuoteID, err)
	}
}

// Handle is the events.Handler that writes the drafts carried by a mutation.
func (s *AuditService) Handle(ctx context.Context, ev events.QuoteMutated) {
	for _, d := range ev.Audit {
		s.Record(ctx, d)
	}
}

// GetAuditLogs pages through a quote's history, newest first unless asked otherwise.
func (s *AuditService) GetAuditLogs(ctx context.Context, quoteID uuid.UUID, req domain.AuditPageRequest) (*domain.AuditPage, error) {
	descending := req.Order != domain.AuditOldestFirst
	if req.Order != "" && req.Order != domain.AuditOldestFirst && req.Order != domain.AuditNewestFirst {
		return nil, domain.Invalid("get audit logs", "unknown order %q", req.Order)
	}
	size := pagination.Normalize(req.PageSize)
	scope := quoteID.String()

	var after int64
	if req.PageToken != "" {
		c, err := pagination.Decode(req.PageToken)
		if err != nil {
			return nil, &domain.ValidationError{Op: "get audit logs", Reason: err.Error()}
		}
		if c.Scope != scope || (c.Dir == pagination.Backward) != descending {
			return nil, domain.Invalid("get audit logs", "page token does not match this query")
		}
		after = c.Seq
	}

	// One extra row tells us whether another page exists.
	entries, err := s.store.ListByQuote(ctx, quoteID, after, descending, size+1)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}

	page := &domain.AuditPage{Entries: entries}
	if len(entries) > size {
		page.Entries = entries[:size]
		token, err := pagination.Encode(pagination.Next(page.Entries[size-1].ID, descending, scope))
		if err != nil {
			return nil, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// Draft builders. Every draft carries the resulting status in NewValue so a
// replay in creation order yields an unbroken status chain.

func draft(q *domain.Quote, action domain.AuditAction, actor domain.Actor, description string, prev, next domain.Snapshot) domain.AuditDraft {
	if next == nil {
		next = domain.Snapshot{}
	}
	if _, ok := next["status"]; !ok {
		next["status"] = string(q.Status)
	}
	return domain.AuditDraft{
		QuoteID:       q.ID,
		QuoteNumber:   q.QuoteNumber,
		Action:        action,
		Description:   description,
		Actor:         actor,
		PreviousValue: prev,
		NewValue:      next,
	}
}

func auditCreated(q *domain.Quote, actor domain.Actor) domain.AuditDraft {
	return draft(q, domain.AuditCreated, actor,
		fmt.Sprintf("Quote %s created by %s", q.QuoteNumber, actor.DisplayName()),
		nil,
		domain.Snapshot{
			"status":        string(q.Status),
			"total":         q.Total.StringFixed(2),
			"lineItemCount": len(q.LineItems),
			"customerName":  q.ResolvedCustomerName(),
		})
}

func auditStatusChanged(q *domain.Quote, prev domain.QuoteStatus, actor domain.Actor) domain.AuditDraft {
	return draft(q, domain.AuditStatusChanged, actor,
		fmt.Sprintf("Status changed from %s to %s by %s", prev.Label(), q.Status.Label(), actor.DisplayName()),
		domain.Snapshot{"status": string(prev)},
		domain.Snapshot{"status": string(q.Status)})
}

// auditSentToCustomer describes what actually happened to the email, since the
// quote counts as sent either way.
func auditSentToCustomer(q *domain.Quote, prev domain.QuoteStatus, actor domain.Actor, email notification.Outcome) domain.AuditDraft {
	to := q.ResolvedCustomerEmail()
	desc := fmt.Sprintf("Quote sent to %s by %s", to, actor.DisplayName())
	switch email {
	case notification.OutcomeSkipped:
		desc = fmt.Sprintf("Quote marked as sent to %s by %s; no email was sent because the notification is disabled", to, actor.DisplayName())
	case notification.OutcomeFailed:
		desc = fmt.Sprintf("Quote marked as sent to %s by %s; the email could not be delivered", to, actor.DisplayName())
	}
	d := draft(q, domain.AuditSentToCustomer, actor, desc,
		domain.Snapshot{"status": string(prev)},
		domain.Snapshot{"status": string(q.Status), "recipient": to})
	d.Metadata = domain.Snapshot{"email": string(email)}
	return d
}

func auditCustomerResponded(q *domain.Quote, prev domain.QuoteStatus, approved bool, notes string, actor domain.Actor) domain.AuditDraft {
	action, verb := domain.AuditDeclinedByCustomer, "declined"
	if approved {
		action, verb = domain.AuditApprovedByCustomer, "approved"
	}
	d := draft(q, action, actor,
		fmt.Sprintf("Quote %s by customer %s", verb, actor.DisplayName()),
		domain.Snapshot{"status": string(prev)},
		domain.Snapshot{"status": string(q.Status)})
	if notes != "" {
		d.Metadata = domain.Snapshot{"notes": notes}
	}
	return d
}

type lineItemDiff struct {
	Added, Removed, Modified int
}

func (d lineItemDiff) Empty() bool {
	return d.Added == 0 && d.Removed == 0 && d.Modified == 0
}

func auditLineItemsChanged(q *domain.Quote, diff lineItemDiff, prevCount int, actor domain.Actor) domain.AuditDraft {
	action := domain.AuditLineItemUpdated
	switch {
	case diff.Added > 0 && diff.Removed == 0 && diff.Modified == 0:
		action = domain.AuditLineItemAdded
	case diff.Removed > 0 && diff.Added == 0 && diff.Modified == 0:
		action = domain.AuditLineItemRemoved
	}
	var parts []string
	if diff.Added > 0 {
		parts = append(parts, plural(diff.Added, "item")+" added")
	}
	if diff.Removed > 0 {
		parts = append(parts, plural(diff.Removed, "item")+" removed")
	}
	if diff.Modified > 0 {
		parts = append(parts, plural(diff.Modified, "item")+" modified")
	}
	return draft(q, action, actor,
		fmt.Sprintf("Line items changed by %s: %s", actor.DisplayName(), strings.Join(parts, ", ")),
		domain.Snapshot{"lineItemCount": prevCount},
		domain.Snapshot{
			"lineItemCount": len(q.LineItems),
			"added":         diff.Added,
			"removed":       diff.Removed,
			"modified":      diff.Modified,
		})
}

func customerSlice(q *domain.Quote) domain.Snapshot {
	s := domain.Snapshot{
		"customerName":    q.CustomerName,
		"customerEmail":   q.CustomerEmail,
		"customerPhone":   q.CustomerPhone,
		"customerCompany": q.CustomerCompany,
	}
	if q.CustomerID != nil {
		s["customerId"] = q.CustomerID.String()
	}
	return s
}

func auditCustomerChanged(before, after *domain.Quote, actor domain.Actor) domain.AuditDraft {
	from, to := before.ResolvedCustomerName(), after.ResolvedCustomerName()
	desc := fmt.Sprintf("Customer changed from %s to %s by %s", orNone(from), orNone(to), actor.DisplayName())
	if from == to {
		desc = fmt.Sprintf("Customer details for %s updated by %s", orNone(to), actor.DisplayName())
	}
	return draft(after, domain.AuditCustomerChanged, actor, desc, customerSlice(before), customerSlice(after))
}

func auditOwnerChanged(before, after *domain.Quote, actor domain.Actor) domain.AuditDraft {
	from, to := derefOr(before.OwnerID, ""), derefOr(after.OwnerID, "")
	return draft(after, domain.AuditOwnerChanged, actor,
		fmt.Sprintf("Owner changed from %s to %s by %s", orNone(from), orNone(to), actor.DisplayName()),
		domain.Snapshot{"ownerId": from},
		domain.Snapshot{"ownerId": to})
}

func pricingSlice(q *domain.Quote) domain.Snapshot {
	return domain.Snapshot{
		"subtotal":      q.Subtotal.StringFixed(2),
		"discountValue": q.DiscountValue.String(),
		"discountType":  string(q.DiscountType),
		"discount":      q.Discount.StringFixed(2),
		"taxRate":       q.TaxRate.String(),
		"tax":           q.Tax.StringFixed(2),
		"shipping":      q.Shipping.StringFixed(2),
		"total":         q.Total.StringFixed(2),
	}
}

func auditPricingUpdated(before, after *domain.Quote, actor domain.Actor) domain.AuditDraft {
	return draft(after, domain.AuditPricingUpdated, actor,
		fmt.Sprintf("Pricing updated by %s: total %s -> %s", actor.DisplayName(), before.Total.StringFixed(2), after.Total.StringFixed(2)),
		pricingSlice(before), pricingSlice(after))
}

func auditUpdated(after *domain.Quote, fields []string, prev, next domain.Snapshot, actor domain.Actor) domain.AuditDraft {
	return draft(after, domain.AuditUpdated, actor,
		fmt.Sprintf("Quote updated by %s: %s", actor.DisplayName(), strings.Join(fields, ", ")),
		prev, next)
}

func artworkSlice(q *domain.Quote) domain.Snapshot {
	return domain.Snapshot{
		"artworkVersion":  q.ArtworkVersion,
		"artworkFileName": derefOr(q.ArtworkFileName, ""),
	}
}

func auditArtworkUploaded(before, after *domain.Quote, actor domain.Actor) domain.AuditDraft {
	prev := artworkSlice(before)
	prev["status"] = string(before.Status)
	next := artworkSlice(after)
	next["status"] = string(after.Status)
	if after.ArtworkVersion == 1 {
		return draft(after, domain.AuditArtworkUploaded, actor,
			fmt.Sprintf("Artwork %s uploaded by %s", derefOr(after.ArtworkFileName, ""), actor.DisplayName()),
			prev, next)
	}
	return draft(after, domain.AuditArtworkUpdated, actor,
		fmt.Sprintf("Artwork updated from v%d to v%d by %s", before.ArtworkVersion, after.ArtworkVersion, actor.DisplayName()),
		prev, next)
}

func auditArtworkSent(q *domain.Quote, prev domain.QuoteStatus, actor domain.Actor) domain.AuditDraft {
	return draft(q, domain.AuditArtworkSentToCustomer, actor,
		fmt.Sprintf("Artwork v%d sent to %s by %s", q.ArtworkVersion, q.ResolvedCustomerEmail(), actor.DisplayName()),
		domain.Snapshot{"status": string(prev)},
		domain.Snapshot{"status": string(q.Status), "artworkVersion": q.ArtworkVersion})
}

func auditArtworkResponded(q *domain.Quote, prev domain.QuoteStatus, approved bool, notes string, actor domain.Actor) domain.AuditDraft {
	action, verb := domain.AuditArtworkDeclinedByCustomer, "declined"
	if approved {
		action, verb = domain.AuditArtworkApprovedByCustomer, "approved"
	}
	d := draft(q, action, actor,
		fmt.Sprintf("Artwork v%d %s by customer %s", q.ArtworkVersion, verb, actor.DisplayName()),
		domain.Snapshot{"status": string(prev)},
		domain.Snapshot{"status": string(q.Status), "artworkVersion": q.ArtworkVersion})
	if notes != "" {
		d.Metadata = domain.Snapshot{"notes": notes}
	}
	return d
}

func auditDeleted(q *domain.Quote, actor domain.Actor) domain.AuditDraft {
	d := draft(q, domain.AuditDeleted, actor,
		fmt.Sprintf("Quote %s deleted by %s", q.QuoteNumber, actor.DisplayName()),
		domain.Snapshot{"status": string(q.Status), "total": q.Total.StringFixed(2)},
		domain.Snapshot{"deleted": true})
	return d
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
