package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"quotedesk/internal/domain"
	"quotedesk/internal/notification"
	"strings"
)

// NotificationService manages the per-type settings and exposes the delivery log.
type NotificationService struct {
	store    SettingsStore
	notifier QuoteNotifier
}

func NewNotificationService(store SettingsStore, notifier QuoteNotifier) *NotificationService {
	return &NotificationService{store: store, notifier: notifier}
}

type UpdateSettingInput struct {
	Enabled         *bool                       `json:"enabled,omitempty"`
	Channel         *domain.NotificationChannel `json:"channel,omitempty"`
	Recipients      *[]string                   `json:"recipients,omitempty"`
	SubjectTemplate *string                     `json:"subject_template,omitempty"`
	BodyTemplate    *string                     `json:"body_template,omitempty"`
}

// SettingView is a setting together with the template that will actually be used.
type SettingView struct {
	domain.NotificationSetting
	EffectiveSubject string `json:"effective_subject"`
	EffectiveBody    string `json:"effective_body"`
}

func (s *NotificationService) ListSettings(ctx context.Context) ([]SettingView, error) {
	settings, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification settings: %w", err)
	}
	byType := notification.NewSnapshot(settings)

	views := make([]SettingView, 0, len(domain.NotificationTypes()))
	for _, t := range domain.NotificationTypes() {
		st, ok := byType.Lookup(t)
		if !ok {
			st = &domain.NotificationSetting{Type: t, Channel: domain.ChannelEmail}
		}
		tpl := notification.Resolve(t, st)
		views = append(views, SettingView{
			NotificationSetting: *st,
			EffectiveSubject:    tpl.Subject,
			EffectiveBody:       tpl.Body,
		})
	}
	return views, nil
}

func (s *NotificationService) UpdateSetting(ctx context.Context, actor domain.Actor, t domain.NotificationType, in UpdateSettingInput) (*domain.NotificationSetting, error) {
	const op = "update notification setting"
	if !t.Valid() {
		return nil, domain.Invalid(op, "unknown notification type %q", t)
	}

	st, err := s.store.GetSetting(ctx, t)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		st = &domain.NotificationSetting{Type: t, Channel: domain.ChannelEmail}
	}

	if in.Enabled != nil {
		st.Enabled = *in.Enabled
	}
	if in.Channel != nil {
		if *in.Channel != domain.ChannelEmail && *in.Channel != domain.ChannelSMS {
			return nil, domain.Invalid(op, "unknown channel %q", *in.Channel)
		}
		st.Channel = *in.Channel
	}
	if in.Recipients != nil {
		var clean []string
		for _, r := range *in.Recipients {
			r = strings.TrimSpace(r)
			if r == "" {
				continue
			}
			if !looksLikeEmail(r) {
				return nil, domain.Invalid(op, "invalid recipient %q", r)
			}
			clean = append(clean, r)
		}
		st.Recipients = clean
	}
	if in.SubjectTemplate != nil {
		st.SubjectTemplate = strings.ReplaceAll(strings.ReplaceAll(*in.SubjectTemplate, "\r", ""), "\n", " ")
	}
	if in.BodyTemplate != nil {
		st.BodyTemplate = *in.BodyTemplate
	}

	if err := s.store.UpsertSetting(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save notification setting: %w", err)
	}
	log.Printf("[NotificationService] %s updated by %s (enabled=%t)", t, actor.DisplayName(), st.Enabled)
	return st, nil
}

func (s *NotificationService) ListLogs(ctx context.Context, filter domain.NotificationLogFilter) ([]domain.NotificationLog, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, domain.Invalid("list notification logs", "unknown notification type %q", filter.Type)
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.store.ListLogs(ctx, filter)
}

// SendTest delivers a sample of the type's current template to one address.
func (s *NotificationService) SendTest(ctx context.Context, actor domain.Actor, t domain.NotificationType, to string) (notification.Result, error) {
	const op = "send test notification"
	if !t.Valid() {
		return notification.Result{}, domain.Invalid(op, "unknown notification type %q", t)
	}
	to = strings.TrimSpace(to)
	if to == "" {
		to = actor.Email
	}
	if !looksLikeEmail(to) {
		return notification.Result{}, domain.Invalid(op, "a valid recipient is required")
	}
	res := s.notifier.SendTest(ctx, t, to, actor)
	if !res.Success() {
		return res, &domain.DeliveryError{Type: t, Err: res.Err}
	}
	return res, nil
}
