package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quotedesk/internal/domain"
	"quotedesk/internal/events"
	"quotedesk/internal/notification"
	"quotedesk/internal/service/s3"
)

var (
	adminActor = domain.Actor{Type: domain.ActorAdmin, ID: "u-admin", Name: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin}
	staffActor = domain.Actor{Type: domain.ActorAdmin, ID: "u-staff", Name: "Sam Staff", Email: "sam@example.com", Role: domain.RoleStaff}
)

type fakeQuoteStore struct {
	mu        sync.Mutex
	quotes    map[uuid.UUID]*domain.Quote
	seq       int64
	clock     time.Time
	updates   int
	updateErr error
}

func newFakeQuoteStore() *fakeQuoteStore {
	return &fakeQuoteStore{
		quotes: map[uuid.UUID]*domain.Quote{},
		clock:  time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeQuoteStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeQuoteStore) Create(ctx context.Context, q *domain.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	q.QuoteNumber = domainQuoteNumber(f.seq)
	q.CreatedAt = f.tick()
	q.LastModifiedAt = q.CreatedAt
	for i := range q.LineItems {
		q.LineItems[i].QuoteID = q.ID
		q.LineItems[i].Position = i
	}
	f.quotes[q.ID] = q.Clone()
	return nil
}

func domainQuoteNumber(seq int64) string {
	return fmt.Sprintf("Q-2026-%05d", seq)
}

func (f *fakeQuoteStore) get(match func(*domain.Quote) bool) (*domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.quotes {
		if match(q) {
			return q.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeQuoteStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	return f.get(func(q *domain.Quote) bool { return q.ID == id })
}

func (f *fakeQuoteStore) GetByApprovalToken(ctx context.Context, token string) (*domain.Quote, error) {
	return f.get(func(q *domain.Quote) bool { return q.ApprovalToken == token })
}

func (f *fakeQuoteStore) GetByArtworkToken(ctx context.Context, token string) (*domain.Quote, error) {
	return f.get(func(q *domain.Quote) bool { return q.ArtworkToken != nil && *q.ArtworkToken == token })
}

func (f *fakeQuoteStore) Update(ctx context.Context, q *domain.Quote, expected domain.QuoteStatus, replaceItems bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.quotes[q.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != expected {
		return domain.ErrConflict
	}
	if !replaceItems {
		q.LineItems = cur.Clone().LineItems
	}
	q.LastModifiedAt = f.tick()
	f.updates++
	f.quotes[q.ID] = q.Clone()
	return nil
}

func (f *fakeQuoteStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.quotes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.quotes, id)
	return nil
}

func (f *fakeQuoteStore) List(ctx context.Context, filter domain.QuoteFilter) (*domain.QuoteList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &domain.QuoteList{Limit: filter.Limit, Offset: filter.Offset}
	for _, q := range f.quotes {
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		out.Quotes = append(out.Quotes, *q.Clone())
	}
	out.Total = len(out.Quotes)
	return out, nil
}

type fakeCustomers map[uuid.UUID]*domain.Customer

func (f fakeCustomers) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	c, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type fakeAuditStore struct {
	mu        sync.Mutex
	entries   []domain.QuoteAuditLogEntry
	insertErr error
}

func (f *fakeAuditStore) Insert(ctx context.Context, e *domain.QuoteAuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	e.ID = int64(len(f.entries) + 1)
	e.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(e.ID) * time.Second)
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeAuditStore) ListByQuote(ctx context.Context, quoteID uuid.UUID, afterID int64, descending bool, limit int) ([]domain.QuoteAuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.QuoteAuditLogEntry
	for _, e := range f.entries {
		if e.QuoteID != quoteID {
			continue
		}
		if afterID > 0 && ((descending && e.ID >= afterID) || (!descending && e.ID <= afterID)) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAuditStore) actions(quoteID uuid.UUID) []domain.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditAction
	for _, e := range f.entries {
		if e.QuoteID == quoteID {
			out = append(out, e.Action)
		}
	}
	return out
}

type sendCall struct {
	Type  domain.NotificationType
	Force bool
	Quote *domain.Quote
}

type fakeNotifier struct {
	mu     sync.Mutex
	calls  []sendCall
	result notification.Result
}

func (f *fakeNotifier) SendNow(ctx context.Context, t domain.NotificationType, q *domain.Quote, actor domain.Actor, force bool) notification.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sendCall{Type: t, Force: force, Quote: q.Clone()})
	if f.result.Outcome == "" {
		return notification.Result{Outcome: notification.OutcomeSent}
	}
	return f.result
}

func (f *fakeNotifier) SendTest(ctx context.Context, t domain.NotificationType, to string, actor domain.Actor) notification.Result {
	return f.SendNow(ctx, t, &domain.Quote{CustomerEmail: to}, actor, true)
}

type fakeObject struct {
	io.ReadCloser
	size int64
	ct   string
}

func (o fakeObject) ContentLength() int64 { return o.size }
func (o fakeObject) ContentType() string  { return o.ct }

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	f.types[key] = contentType
	return nil
}

func (f *fakeStorage) GetObject(ctx context.Context, key string) (s3.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, s3.ErrObjectNotFound
	}
	return fakeObject{ReadCloser: io.NopCloser(bytes.NewReader(data)), size: int64(len(data)), ct: f.types[key]}, nil
}

func (f *fakeStorage) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			delete(f.objects, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStorage) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeStorage) URL(key string) string {
	return "https://cdn.example.com/" + key
}

type fakeThumbs struct {
	err error
}

func (f fakeThumbs) Thumbnail(data []byte, contentType string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("thumb"), nil
}

// recorder captures published events after the audit subscriber has run.
type recorder struct {
	mu     sync.Mutex
	events []events.QuoteMutated
}

func (r *recorder) handle(ctx context.Context, ev events.QuoteMutated) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) intents() []domain.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.NotificationType
	for _, ev := range r.events {
		for _, in := range ev.Notifications {
			out = append(out, in.Type)
		}
	}
	return out
}

func (r *recorder) alerts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.OwnerAlert != nil {
			n++
		}
	}
	return n
}

type harness struct {
	quotes    *fakeQuoteStore
	customers fakeCustomers
	audit     *fakeAuditStore
	notifier  *fakeNotifier
	storage   *fakeStorage
	events    *recorder

	auditSvc   *AuditService
	quoteSvc   *QuoteService
	artworkSvc *ArtworkService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		quotes:    newFakeQuoteStore(),
		customers: fakeCustomers{},
		audit:     &fakeAuditStore{},
		notifier:  &fakeNotifier{},
		storage:   newFakeStorage(),
		events:    &recorder{},
	}
	h.auditSvc = NewAuditService(h.audit)
	bus := events.NewBus()
	bus.Subscribe("audit", h.auditSvc.Handle)
	bus.Subscribe("recorder", h.events.handle)

	h.artworkSvc = NewArtworkService(h.quotes, h.storage, fakeThumbs{}, h.notifier, bus)
	h.quoteSvc = NewQuoteService(h.quotes, h.customers, h.auditSvc, h.notifier, h.artworkSvc, bus)
	return h
}

func sampleInput() CreateQuoteInput {
	return CreateQuoteInput{
		Title:         "Team shirts",
		CustomerName:  "Cleo Customer",
		CustomerEmail: "cleo@example.com",
		LineItems: []domain.LineItemInput{{
			ItemType:    domain.LineItemProduct,
			Description: "Tee",
			Quantity:    50,
			UnitPrice:   decimal.RequireFromString("2.00"),
		}},
		DiscountType:  domain.DiscountFixed,
		DiscountValue: decimal.NewFromInt(10),
		TaxRate:       decimal.NewFromInt(8),
		Shipping:      decimal.NewFromInt(15),
	}
}

func (h *harness) create(t *testing.T, mutate func(*CreateQuoteInput)) *domain.Quote {
	t.Helper()
	in := sampleInput()
	if mutate != nil {
		mutate(&in)
	}
	q, err := h.quoteSvc.Create(context.Background(), adminActor, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return q
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *domain.Quote {
	t.Helper()
	q, err := h.quotes.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return q
}

var errBoom = errors.New("boom")
