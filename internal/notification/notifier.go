package notification

import (
	"context"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"quotedesk/internal/domain"
	"quotedesk/internal/events"
)

type SettingsSource interface {
	ListSettings(ctx context.Context) ([]domain.NotificationSetting, error)
}

// UserDirectory resolves internal users such as quote owners.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Links builds the URLs embedded in messages.
type Links struct {
	AdminBaseURL  string
	PublicBaseURL string
}

func (l Links) Quote(q *domain.Quote) string {
	if l.AdminBaseURL == "" {
		return ""
	}
	return strings.TrimRight(l.AdminBaseURL, "/") + "/quotes/" + q.ID.String()
}

func (l Links) QuoteApproval(q *domain.Quote) string {
	if l.PublicBaseURL == "" || q.ApprovalToken == "" {
		return ""
	}
	return strings.TrimRight(l.PublicBaseURL, "/") + "/quote/" + q.ApprovalToken
}

func (l Links) ArtworkApproval(q *domain.Quote) string {
	if l.PublicBaseURL == "" || q.ArtworkToken == nil || *q.ArtworkToken == "" {
		return ""
	}
	return strings.TrimRight(l.PublicBaseURL, "/") + "/artwork/" + *q.ArtworkToken
}

// Notifier turns quote mutations into dispatches. Settings are loaded once per
// event and handed to the dispatcher as a snapshot.
type Notifier struct {
	dispatcher  *Dispatcher
	settings    SettingsSource
	users       UserDirectory
	links       Links
	companyName string
}

func NewNotifier(d *Dispatcher, settings SettingsSource, users UserDirectory, links Links, companyName string) *Notifier {
	return &Notifier{
		dispatcher:  d,
		settings:    settings,
		users:       users,
		links:       links,
		companyName: companyName,
	}
}

func (n *Notifier) Dispatcher() *Dispatcher {
	return n.dispatcher
}

func (n *Notifier) snapshot(ctx context.Context) Snapshot {
	settings, err := n.settings.ListSettings(ctx)
	if err != nil {
		log.Printf("[Notifier] Failed to load notification settings: %v", err)
		return Snapshot{}
	}
	return NewSnapshot(settings)
}

func (n *Notifier) owner(ctx context.Context, q *domain.Quote) *domain.User {
	if q.OwnerID == nil || *q.OwnerID == "" || n.users == nil {
		return nil
	}
	u, err := n.users.GetUser(ctx, *q.OwnerID)
	if err != nil {
		log.Printf("[Notifier] Failed to resolve owner %s of %s: %v", *q.OwnerID, q.QuoteNumber, err)
		return nil
	}
	return u
}

// ContextFor builds the template context for a quote. user may be nil.
func (n *Notifier) ContextFor(q *domain.Quote, user *domain.User) TemplateContext {
	total := q.Total
	id := q.ID
	c := TemplateContext{
		QuoteID:            &id,
		QuoteNumber:        q.QuoteNumber,
		QuoteTitle:         q.Title,
		QuoteTotal:         &total,
		QuoteStatus:        q.Status,
		NewStatus:          q.Status,
		ValidUntil:         q.ValidUntil,
		CustomerID:         q.CustomerID,
		CustomerName:       q.ResolvedCustomerName(),
		CustomerCompany:    q.ResolvedCustomerCompany(),
		CustomerEmail:      q.ResolvedCustomerEmail(),
		ArtworkVersion:     q.ArtworkVersion,
		ArtworkApprovalURL: n.links.ArtworkApproval(q),
		QuoteURL:           n.links.Quote(q),
		QuoteApprovalURL:   n.links.QuoteApproval(q),
		CompanyName:        n.companyName,
	}
	if q.ArtworkURL != nil {
		c.ArtworkURL = *q.ArtworkURL
	}
	if q.ArtworkFileName != nil {
		c.ArtworkFileName = *q.ArtworkFileName
	}
	if q.ArtworkNotes != nil {
		c.ArtworkNotes = *q.ArtworkNotes
	}
	if user != nil {
		c.UserID = user.ID
		c.UserName = user.Name
		c.UserEmail = user.Email
	}
	return c
}

func actorUser(a domain.Actor) *domain.User {
	if a.Type != domain.ActorAdmin {
		return nil
	}
	return &domain.User{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role}
}

// SendNow dispatches one notification synchronously for a user-triggered action
// and returns the outcome so the caller can surface failures.
func (n *Notifier) SendNow(ctx context.Context, t domain.NotificationType, q *domain.Quote, actor domain.Actor, force bool) Result {
	user := n.owner(ctx, q)
	if user == nil {
		user = actorUser(actor)
	}
	return n.dispatcher.Dispatch(ctx, Request{
		Type:     t,
		Context:  n.ContextFor(q, user),
		Force:    force,
		Settings: n.snapshot(ctx),
	})
}

// Handle is the events.Handler for automatic notifications. Failures are logged only.
func (n *Notifier) Handle(ctx context.Context, ev events.QuoteMutated) {
	if ev.Quote == nil || (len(ev.Notifications) == 0 && ev.OwnerAlert == nil) {
		return
	}

	owner := n.owner(ctx, ev.Quote)
	user := owner
	if user == nil {
		user = actorUser(ev.Actor)
	}
	base := n.ContextFor(ev.Quote, user)

	var snap Snapshot
	if len(ev.Notifications) > 0 {
		snap = n.snapshot(ctx)
	}
	for _, intent := range ev.Notifications {
		c := base
		if intent.PreviousStatus != "" {
			c.PreviousStatus = intent.PreviousStatus
		}
		if intent.NewStatus != "" {
			c.NewStatus = intent.NewStatus
		}
		if intent.ArtworkAction != "" {
			c.ArtworkAction = intent.ArtworkAction
		}
		// The creation notice names whoever created the quote, not its owner.
		if creator := actorUser(ev.Actor); intent.Type == domain.NotifyInternalQuoteCreated && creator != nil {
			c.UserID, c.UserName, c.UserEmail = creator.ID, creator.Name, creator.Email
		}
		res := n.dispatcher.Dispatch(ctx, Request{Type: intent.Type, Context: c, Settings: snap})
		if !res.Success() {
			log.Printf("[Notifier] %s for %s failed: %v", intent.Type, ev.Quote.QuoteNumber, res.Err)
		}
	}

	if ev.OwnerAlert != nil && owner != nil {
		alertType := domain.NotifyInternalQuoteStatusChange
		if len(ev.Notifications) > 0 {
			alertType = ev.Notifications[len(ev.Notifications)-1].Type
		}
		c := base
		for _, intent := range ev.Notifications {
			if intent.PreviousStatus != "" {
				c.PreviousStatus = intent.PreviousStatus
			}
		}
		err := n.dispatcher.AlertOwner(ctx, *owner, OwnerMessage{
			Type:     alertType,
			Headline: ev.OwnerAlert.Headline,
			Action:   ev.OwnerAlert.Action,
			Notes:    ev.OwnerAlert.Notes,
			Context:  c,
		})
		if err != nil {
			log.Printf("[Notifier] Owner alert for %s not delivered: %v", ev.Quote.QuoteNumber, err)
		}
	}
}

// SendTest renders a notification type against sample data and delivers it to one address.
func (n *Notifier) SendTest(ctx context.Context, t domain.NotificationType, to string, actor domain.Actor) Result {
	total := decimal.RequireFromString("1234.5")
	c := TemplateContext{
		QuoteNumber:        "Q-0000-00000",
		QuoteTitle:         "Sample quote",
		QuoteTotal:         &total,
		QuoteStatus:        domain.QuoteStatusSent,
		PreviousStatus:     domain.QuoteStatusPending,
		NewStatus:          domain.QuoteStatusSent,
		CustomerName:       "Sample Customer",
		CustomerCompany:    "Sample Co.",
		CustomerEmail:      to,
		UserID:             actor.ID,
		UserName:           actor.Name,
		UserEmail:          actor.Email,
		ArtworkFileName:    "artwork.pdf",
		ArtworkVersion:     2,
		ArtworkAction:      "approved",
		ArtworkApprovalURL: strings.TrimRight(n.links.PublicBaseURL, "/") + "/artwork/sample",
		QuoteApprovalURL:   strings.TrimRight(n.links.PublicBaseURL, "/") + "/quote/sample",
		CompanyName:        n.companyName,
	}
	return n.dispatcher.Dispatch(ctx, Request{
		Type:              t,
		Context:           c,
		OverrideRecipient: to,
		Force:             true,
		Settings:          n.snapshot(ctx),
	})
}
