package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"quotedesk/internal/domain"
	"quotedesk/internal/service/mail"
)

type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Snapshot is the notification configuration in effect for one dispatch.
type Snapshot map[domain.NotificationType]domain.NotificationSetting

func NewSnapshot(settings []domain.NotificationSetting) Snapshot {
	s := make(Snapshot, len(settings))
	for _, st := range settings {
		s[st.Type] = st
	}
	return s
}

func (s Snapshot) Lookup(t domain.NotificationType) (*domain.NotificationSetting, bool) {
	st, ok := s[t]
	if !ok {
		return nil, false
	}
	return &st, true
}

// LogStore persists one row per delivery attempt.
type LogStore interface {
	CreateLog(ctx context.Context, l *domain.NotificationLog) error
	MarkLog(ctx context.Context, id uuid.UUID, status domain.NotificationStatus, messageID, errMsg *string) error
}

type Request struct {
	Type              domain.NotificationType
	Context           TemplateContext
	OverrideRecipient string
	// Force skips the enabled gate for direct user actions.
	Force    bool
	Settings Snapshot
}

type Attempt struct {
	Recipient string
	Success   bool
	MessageID string
	Err       error
}

type Result struct {
	Outcome  Outcome
	Err      error
	Attempts []Attempt
}

func (r Result) Success() bool {
	return r.Outcome != OutcomeFailed
}

type Dispatcher struct {
	sender           mail.Sender
	logs             LogStore
	renderer         *Renderer
	defaultInternals []string
}

func NewDispatcher(sender mail.Sender, logs LogStore, renderer *Renderer, defaultInternalRecipients []string) *Dispatcher {
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	return &Dispatcher{
		sender:           sender,
		logs:             logs,
		renderer:         renderer,
		defaultInternals: cleanRecipients(defaultInternalRecipients),
	}
}

func (d *Dispatcher) Renderer() *Renderer {
	return d.renderer
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	setting, found := req.Settings.Lookup(req.Type)
	if !req.Force && (!found || !setting.Enabled) {
		log.Printf("[Dispatcher] %s skipped: disabled or not configured", req.Type)
		return Result{Outcome: OutcomeSkipped}
	}

	channel := domain.ChannelEmail
	if found && setting.Channel != "" {
		channel = setting.Channel
	}
	if channel != domain.ChannelEmail {
		log.Printf("[Dispatcher] %s not sent: channel %s has no transport", req.Type, channel)
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("%s: %w", channel, domain.ErrChannelUnsupported)}
	}

	msg := d.renderer.RenderTemplate(Resolve(req.Type, setting), req.Context)

	recipients := d.recipients(req, setting)
	if len(recipients) == 0 {
		log.Printf("[Dispatcher] %s not sent: no recipients", req.Type)
		return Result{Outcome: OutcomeFailed, Err: domain.ErrNoRecipients}
	}

	result := Result{Outcome: OutcomeSent}
	var errs []error
	for _, to := range recipients {
		a := d.sendOne(ctx, req, channel, to, msg)
		result.Attempts = append(result.Attempts, a)
		if !a.Success {
			errs = append(errs, fmt.Errorf("%s: %w", to, a.Err))
		}
	}
	if len(errs) > 0 {
		result.Outcome = OutcomeFailed
		result.Err = errors.Join(errs...)
		log.Printf("[Dispatcher] %s: %d of %d deliveries failed: %v", req.Type, len(errs), len(recipients), result.Err)
	}
	return result
}

func (d *Dispatcher) recipients(req Request, setting *domain.NotificationSetting) []string {
	if r := strings.TrimSpace(req.OverrideRecipient); r != "" {
		return []string{r}
	}
	if req.Type.IsInternal() {
		if setting != nil {
			if list := cleanRecipients(setting.Recipients); len(list) > 0 {
				return list
			}
		}
		return d.defaultInternals
	}
	if e := strings.TrimSpace(req.Context.CustomerEmail); e != "" {
		return []string{e}
	}
	return nil
}

func (d *Dispatcher) sendOne(ctx context.Context, req Request, channel domain.NotificationChannel, to string, msg Template) Attempt {
	entry := &domain.NotificationLog{
		ID:         uuid.New(),
		Type:       req.Type,
		Channel:    channel,
		Recipient:  to,
		Subject:    msg.Subject,
		Status:     domain.NotificationPending,
		QuoteID:    req.Context.QuoteID,
		CustomerID: req.Context.CustomerID,
	}
	if req.Context.UserID != "" {
		uid := req.Context.UserID
		entry.UserID = &uid
	}
	logged := true
	if err := d.logs.CreateLog(ctx, entry); err != nil {
		logged = false
		log.Printf("[Dispatcher] Failed to record notification log for %s: %v", to, err)
	}

	res := d.sender.Send(ctx, mail.Message{To: to, Subject: msg.Subject, Body: msg.Body, IsHTML: msg.IsHTML})
	a := Attempt{Recipient: to, Success: res.Success, MessageID: res.MessageID, Err: res.Error}
	if !res.Success && a.Err == nil {
		a.Err = errors.New("email transport reported failure")
	}

	if logged {
		status := domain.NotificationSent
		var msgID, errMsg *string
		if a.Success {
			if a.MessageID != "" {
				msgID = &a.MessageID
			}
		} else {
			status = domain.NotificationFailed
			s := a.Err.Error()
			errMsg = &s
		}
		if err := d.logs.MarkLog(ctx, entry.ID, status, msgID, errMsg); err != nil {
			log.Printf("[Dispatcher] Failed to update notification log %s: %v", entry.ID, err)
		}
	}
	return a
}

func cleanRecipients(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, r := range in {
		r = strings.TrimSpace(r)
		key := strings.ToLower(r)
		if r == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
