package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quotedesk/internal/domain"
	"quotedesk/internal/events"
	"quotedesk/internal/service/mail"
)

type fakeSender struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []mail.Message
}

func (f *fakeSender) Send(ctx context.Context, msg mail.Message) mail.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[msg.To] {
		return mail.SendResult{Error: errors.New("mailbox unavailable")}
	}
	f.sent = append(f.sent, msg)
	return mail.SendResult{Success: true, MessageID: "<" + msg.To + ">"}
}

type fakeLogs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.NotificationLog
	fail bool
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{rows: map[uuid.UUID]*domain.NotificationLog{}}
}

func (f *fakeLogs) CreateLog(ctx context.Context, l *domain.NotificationLog) error {
	if f.fail {
		return errors.New("db down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *l
	f.rows[l.ID] = &row
	return nil
}

func (f *fakeLogs) MarkLog(ctx context.Context, id uuid.UUID, status domain.NotificationStatus, messageID, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.Status = status
	row.MessageID = messageID
	row.ErrorMessage = errMsg
	return nil
}

func (f *fakeLogs) count(status domain.NotificationStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if status == "" || r.Status == status {
			n++
		}
	}
	return n
}

func enabled(t domain.NotificationType, recipients ...string) domain.NotificationSetting {
	return domain.NotificationSetting{Type: t, Enabled: true, Channel: domain.ChannelEmail, Recipients: recipients}
}

func TestDispatchDisabledIsSkippedWithoutLogs(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := NewDispatcher(sender, logs, nil, []string{"ops@example.com"})

	snap := NewSnapshot([]domain.NotificationSetting{{Type: domain.NotifyInternalQuoteCreated, Enabled: false}})
	res := d.Dispatch(context.Background(), Request{Type: domain.NotifyInternalQuoteCreated, Settings: snap})

	if !res.Success() || res.Outcome != OutcomeSkipped {
		t.Fatalf("unexpected result: %+v", res)
	}
	if logs.count("") != 0 || len(sender.sent) != 0 {
		t.Fatalf("disabled notification produced %d logs and %d sends", logs.count(""), len(sender.sent))
	}
}

func TestDispatchMissingSettingIsSkipped(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, newFakeLogs(), nil, nil)
	res := d.Dispatch(context.Background(), Request{Type: domain.NotifyCustomerQuoteSent})
	if res.Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped", res.Outcome)
	}
}

func TestDispatchForcedIgnoresGate(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := NewDispatcher(sender, logs, nil, nil)

	snap := NewSnapshot([]domain.NotificationSetting{{Type: domain.NotifyCustomerArtworkApproval, Enabled: false}})
	res := d.Dispatch(context.Background(), Request{
		Type:     domain.NotifyCustomerArtworkApproval,
		Context:  TemplateContext{CustomerEmail: "buyer@example.com", QuoteNumber: "Q-2026-00001"},
		Force:    true,
		Settings: snap,
	})
	if res.Outcome != OutcomeSent {
		t.Fatalf("outcome = %s (%v), want sent", res.Outcome, res.Err)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "buyer@example.com" {
		t.Fatalf("unexpected sends: %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].Subject, "Q-2026-00001") {
		t.Fatalf("subject not rendered: %q", sender.sent[0].Subject)
	}
	if logs.count(domain.NotificationSent) != 1 {
		t.Fatalf("expected one sent log row")
	}
}

func TestDispatchRecipientResolution(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		defaults []string
		want     []string
	}{
		{
			name: "override wins",
			req: Request{Type: domain.NotifyInternalQuoteCreated, OverrideRecipient: "me@example.com",
				Settings: NewSnapshot([]domain.NotificationSetting{enabled(domain.NotifyInternalQuoteCreated, "ops@example.com")})},
			want: []string{"me@example.com"},
		},
		{
			name: "internal uses setting list",
			req: Request{Type: domain.NotifyInternalQuoteCreated,
				Settings: NewSnapshot([]domain.NotificationSetting{enabled(domain.NotifyInternalQuoteCreated, "a@example.com", " b@example.com ", "A@example.com")})},
			want: []string{"a@example.com", "b@example.com"},
		},
		{
			name:     "internal falls back to defaults",
			req:      Request{Type: domain.NotifyInternalQuoteCreated, Settings: NewSnapshot([]domain.NotificationSetting{enabled(domain.NotifyInternalQuoteCreated)})},
			defaults: []string{"sales@example.com"},
			want:     []string{"sales@example.com"},
		},
		{
			name: "customer type uses customer email",
			req: Request{Type: domain.NotifyCustomerQuoteSent, Context: TemplateContext{CustomerEmail: "c@example.com"},
				Settings: NewSnapshot([]domain.NotificationSetting{enabled(domain.NotifyCustomerQuoteSent, "ops@example.com")})},
			want: []string{"c@example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			d := NewDispatcher(sender, newFakeLogs(), nil, tt.defaults)
			res := d.Dispatch(context.Background(), tt.req)
			if res.Outcome != OutcomeSent {
				t.Fatalf("outcome = %s (%v)", res.Outcome, res.Err)
			}
			var got []string
			for _, m := range sender.sent {
				got = append(got, m.To)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("recipients = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatchNoRecipientsFails(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, newFakeLogs(), nil, nil)
	res := d.Dispatch(context.Background(), Request{
		Type:     domain.NotifyCustomerQuoteSent,
		Settings: NewSnapshot([]domain.NotificationSetting{enabled(domain.NotifyCustomerQuoteSent)}),
	})
	if res.Success() || !errors.Is(res.Err, domain.ErrNoRecipients) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"bad@example.com": true}}
	logs := newFakeLogs()
	d := NewDispatcher(sender, logs, nil, nil)

	res := d.Dispatch(context.Background(), Request{
		Type:     domain.NotifyInternalQuoteStatusChange,
		Settings: NewSnapshot([]domain.NotificationSetting{enabled(domain.NotifyInternalQuoteStatusChange, "bad@example.com", "good@example.com")}),
	})
	if res.Outcome != OutcomeFailed || res.Err == nil {
		t.Fatalf("expected failure, got %+v", res)
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "good@example.com" {
		t.Fatalf("a failing recipient blocked the next one: %+v", sender.sent)
	}
	if logs.count(domain.NotificationSent) != 1 || logs.count(domain.NotificationFailed) != 1 {
		t.Fatalf("expected one sent and one failed log row, have %d/%d", logs.count(domain.NotificationSent), logs.count(domain.NotificationFailed))
	}
}

func TestDispatchSMSUnsupported(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, newFakeLogs(), nil, nil)
	setting := enabled(domain.NotifyCustomerQuoteSent)
	setting.Channel = domain.ChannelSMS
	res := d.Dispatch(context.Background(), Request{
		Type:     domain.NotifyCustomerQuoteSent,
		Context:  TemplateContext{CustomerEmail: "c@example.com"},
		Settings: NewSnapshot([]domain.NotificationSetting{setting}),
	})
	if res.Success() || !errors.Is(res.Err, domain.ErrChannelUnsupported) || len(sender.sent) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatchStillSendsWhenLogStoreFails(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	logs.fail = true
	d := NewDispatcher(sender, logs, nil, nil)
	res := d.Dispatch(context.Background(), Request{
		Type:     domain.NotifyCustomerQuoteSent,
		Context:  TemplateContext{CustomerEmail: "c@example.com"},
		Settings: NewSnapshot([]domain.NotificationSetting{enabled(domain.NotifyCustomerQuoteSent)}),
	})
	if res.Outcome != OutcomeSent || len(sender.sent) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

type staticSettings []domain.NotificationSetting

func (s staticSettings) ListSettings(ctx context.Context) ([]domain.NotificationSetting, error) {
	return s, nil
}

type staticUsers map[string]domain.User

func (u staticUsers) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func TestNotifierHandleSendsIntentsAndOwnerAlert(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	d := NewDispatcher(sender, logs, nil, nil)
	settings := staticSettings{
		enabled(domain.NotifyInternalQuoteStatusChange, "ops@example.com"),
		enabled(domain.NotifyCustomerQuoteStatusChange),
	}
	owner := "owner-1"
	n := NewNotifier(d, settings, staticUsers{owner: {ID: owner, Name: "Olga", Email: "olga@example.com"}}, Links{AdminBaseURL: "https://admin.example.com"}, "Acme Print")

	q := &domain.Quote{
		ID:            uuid.New(),
		QuoteNumber:   "Q-2026-00007",
		Status:        domain.QuoteStatusApproved,
		CustomerName:  "Cleo",
		CustomerEmail: "cleo@example.com",
		OwnerID:       &owner,
		Total:         decimal.RequireFromString("99.5"),
	}
	n.Handle(context.Background(), events.QuoteMutated{
		Quote: q,
		Actor: domain.CustomerActor("Cleo", "cleo@example.com"),
		Notifications: []events.Intent{
			{Type: domain.NotifyCustomerQuoteStatusChange, PreviousStatus: domain.QuoteStatusSent, NewStatus: domain.QuoteStatusApproved},
			{Type: domain.NotifyInternalQuoteStatusChange, PreviousStatus: domain.QuoteStatusSent, NewStatus: domain.QuoteStatusApproved},
		},
		OwnerAlert: &events.OwnerAlert{Headline: "Quote approved", Action: "approved the quote", Notes: "Ship fast"},
	})

	got := map[string]mail.Message{}
	for _, m := range sender.sent {
		got[m.To] = m
	}
	if len(got) != 3 {
		t.Fatalf("expected customer, internal and owner messages, got %d: %+v", len(got), sender.sent)
	}
	if !strings.Contains(got["cleo@example.com"].Body, "Sent") || !strings.Contains(got["cleo@example.com"].Body, "Approved") {
		t.Errorf("customer body missing statuses: %s", got["cleo@example.com"].Body)
	}
	alert := got["olga@example.com"]
	if !strings.Contains(alert.Subject, "Q-2026-00007") || !strings.Contains(alert.Body, "Ship fast") || !strings.Contains(alert.Body, "$99.50") {
		t.Errorf("owner alert incomplete: %q %s", alert.Subject, alert.Body)
	}
}

func TestNotifierCreatedNamesTheCreator(t *testing.T) {
	sender := &fakeSender{}
	settings := staticSettings{enabled(domain.NotifyInternalQuoteCreated, "ops@example.com")}
	owner := "owner-1"
	n := NewNotifier(NewDispatcher(sender, newFakeLogs(), nil, nil), settings,
		staticUsers{owner: {ID: owner, Name: "Olga", Email: "olga@example.com"}}, Links{}, "Acme Print")

	q := &domain.Quote{ID: uuid.New(), QuoteNumber: "Q-2026-00009", Status: domain.QuoteStatusPending, OwnerID: &owner}
	n.Handle(context.Background(), events.QuoteMutated{
		Quote:         q,
		Actor:         domain.Actor{Type: domain.ActorAdmin, ID: "u-sam", Name: "Sam", Email: "sam@example.com", Role: domain.RoleStaff},
		Notifications: []events.Intent{{Type: domain.NotifyInternalQuoteCreated}},
	})

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	body := sender.sent[0].Body
	if !strings.Contains(body, "created by Sam") || strings.Contains(body, "Olga") {
		t.Fatalf("creation notice should name the creator: %s", body)
	}
}

func TestNotifierSkipsOwnerAlertWithoutOwner(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(NewDispatcher(sender, newFakeLogs(), nil, nil), staticSettings{}, staticUsers{}, Links{}, "")
	n.Handle(context.Background(), events.QuoteMutated{
		Quote:      &domain.Quote{ID: uuid.New(), QuoteNumber: "Q-2026-00008"},
		OwnerAlert: &events.OwnerAlert{Headline: "Artwork approved"},
	})
	if len(sender.sent) != 0 {
		t.Fatalf("unexpected sends: %+v", sender.sent)
	}
}
