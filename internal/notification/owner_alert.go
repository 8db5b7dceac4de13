package notification

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"quotedesk/internal/domain"
)

// OwnerMessage is a direct operational alert to the quote owner. It is not
// template driven and ignores notification settings.
type OwnerMessage struct {
	// Type is only used to classify the NotificationLog row.
	Type     domain.NotificationType
	Headline string
	Action   string
	Notes    string
	Context  TemplateContext
}

func (d *Dispatcher) AlertOwner(ctx context.Context, owner domain.User, m OwnerMessage) error {
	to := strings.TrimSpace(owner.Email)
	if to == "" {
		return domain.ErrNoRecipients
	}

	c := m.Context
	c.UserID = owner.ID
	subject := headerSafe.Replace(fmt.Sprintf("[%s] %s", c.QuoteNumber, m.Headline))
	msg := Template{Subject: subject, Body: d.ownerAlertBody(owner, m), IsHTML: true}

	a := d.sendOne(ctx, Request{Type: m.Type, Context: c}, domain.ChannelEmail, to, msg)
	if !a.Success {
		log.Printf("[Dispatcher] Owner alert for %s to %s failed: %v", c.QuoteNumber, to, a.Err)
		return a.Err
	}
	return nil
}

func (d *Dispatcher) ownerAlertBody(owner domain.User, m OwnerMessage) string {
	c := m.Context
	esc := html.EscapeString
	row := func(label, value string) string {
		if strings.TrimSpace(value) == "" {
			value = Missing
		}
		return fmt.Sprintf(`<tr><td style="padding:4px 12px 4px 0;color:#666">%s</td><td style="padding:4px 0"><strong>%s</strong></td></tr>`, esc(label), esc(value))
	}

	var b strings.Builder
	name := owner.Name
	if name == "" {
		name = owner.Email
	}
	fmt.Fprintf(&b, `<div style="font-family:Arial,sans-serif;font-size:14px">`)
	fmt.Fprintf(&b, `<p>Hi %s,</p>`, esc(name))
	fmt.Fprintf(&b, `<h2 style="margin:12px 0">%s</h2>`, esc(m.Headline))
	fmt.Fprintf(&b, `<p>%s %s.</p>`, esc(orDefault(c.CustomerName, "The customer")), esc(m.Action))
	b.WriteString(`<table style="border-collapse:collapse">`)
	b.WriteString(row("Quote", c.QuoteNumber))
	b.WriteString(row("Title", c.QuoteTitle))
	b.WriteString(row("Customer", c.CustomerName))
	b.WriteString(row("Company", c.CustomerCompany))
	b.WriteString(row("Status", c.NewStatus.Label()))
	if c.QuoteTotal != nil {
		b.WriteString(row("Total", d.renderer.format.Currency(*c.QuoteTotal)))
	}
	if c.ArtworkVersion > 0 {
		b.WriteString(row("Artwork", fmt.Sprintf("v%d %s", c.ArtworkVersion, c.ArtworkFileName)))
	}
	b.WriteString(`</table>`)
	if notes := strings.TrimSpace(m.Notes); notes != "" {
		fmt.Fprintf(&b, `<blockquote style="border-left:3px solid #ccc;margin:12px 0;padding-left:12px">%s</blockquote>`, esc(notes))
	}
	if c.QuoteURL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">Open quote</a></p>`, esc(c.QuoteURL))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
