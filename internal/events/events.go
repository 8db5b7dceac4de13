// Package events carries post-commit quote mutations to their consumers.
package events

import (
	"context"
	"log"
	"sync"
	"time"

	"quotedesk/internal/domain"
)

// Intent asks for one automatic, setting-gated notification.
type Intent struct {
	Type           domain.NotificationType
	PreviousStatus domain.QuoteStatus
	NewStatus      domain.QuoteStatus
	ArtworkAction  string
}

// OwnerAlert is the direct message to the quote owner that bypasses settings.
type OwnerAlert struct {
	Headline string
	Action   string
	Notes    string
}

// QuoteMutated is published once the store transaction for a mutation has committed.
type QuoteMutated struct {
	Quote         *domain.Quote
	Actor         domain.Actor
	Audit         []domain.AuditDraft
	Notifications []Intent
	OwnerAlert    *OwnerAlert
	OccurredAt    time.Time
}

type Handler func(ctx context.Context, ev QuoteMutated)

type subscription struct {
	name    string
	handler Handler
}

// Bus delivers events synchronously to subscribers in registration order.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
}

// Publish never fails: a panicking subscriber is logged and the next one still runs.
func (b *Bus) Publish(ctx context.Context, ev QuoteMutated) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, ev QuoteMutated) {
	defer func() {
		if r := recover(); r != nil {
			quoteNumber := ""
			if ev.Quote != nil {
				quoteNumber = ev.Quote.QuoteNumber
			}
			log.Printf("[Events] subscriber %s panicked on quote %s: %v", s.name, quoteNumber, r)
		}
	}()
	s.handler(ctx, ev)
}
