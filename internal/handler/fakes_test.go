package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quotedesk/internal/auth"
	"quotedesk/internal/domain"
	"quotedesk/internal/events"
	"quotedesk/internal/notification"
	"quotedesk/internal/service"
	"quotedesk/internal/service/pdf"
	"quotedesk/internal/service/s3"
)

type memQuotes struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*domain.Quote
	seq    int
}

func (m *memQuotes) Create(ctx context.Context, q *domain.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	q.QuoteNumber = fmt.Sprintf("Q-2026-%05d", m.seq)
	m.quotes[q.ID] = q.Clone()
	return nil
}

func (m *memQuotes) find(match func(*domain.Quote) bool) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.quotes {
		if match(q) {
			return q.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memQuotes) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	return m.find(func(q *domain.Quote) bool { return q.ID == id })
}

func (m *memQuotes) GetByApprovalToken(ctx context.Context, token string) (*domain.Quote, error) {
	return m.find(func(q *domain.Quote) bool { return q.ApprovalToken == token })
}

func (m *memQuotes) GetByArtworkToken(ctx context.Context, token string) (*domain.Quote, error) {
	return m.find(func(q *domain.Quote) bool { return q.ArtworkToken != nil && *q.ArtworkToken == token })
}

func (m *memQuotes) Update(ctx context.Context, q *domain.Quote, expected domain.QuoteStatus, replaceItems bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.quotes[q.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != expected {
		return domain.ErrConflict
	}
	m.quotes[q.ID] = q.Clone()
	return nil
}

func (m *memQuotes) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quotes, id)
	return nil
}

func (m *memQuotes) List(ctx context.Context, filter domain.QuoteFilter) (*domain.QuoteList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &domain.QuoteList{Quotes: []domain.Quote{}}
	for _, q := range m.quotes {
		if filter.Status == "" || q.Status == filter.Status {
			out.Quotes = append(out.Quotes, *q.Clone())
		}
	}
	out.Total = len(out.Quotes)
	return out, nil
}

type noCustomers struct{}

func (noCustomers) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	return nil, domain.ErrNotFound
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.QuoteAuditLogEntry
}

func (m *memAudit) Insert(ctx context.Context, e *domain.QuoteAuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAudit) ListByQuote(ctx context.Context, quoteID uuid.UUID, afterID int64, descending bool, limit int) ([]domain.QuoteAuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QuoteAuditLogEntry
	for _, e := range m.entries {
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

type memSettings struct {
	settings map[domain.NotificationType]domain.NotificationSetting
}

func (m *memSettings) ListSettings(ctx context.Context) ([]domain.NotificationSetting, error) {
	var out []domain.NotificationSetting
	for _, s := range m.settings {
		out = append(out, s)
	}
	return out, nil
}

func (m *memSettings) GetSetting(ctx context.Context, t domain.NotificationType) (*domain.NotificationSetting, error) {
	s, ok := m.settings[t]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *memSettings) UpsertSetting(ctx context.Context, s *domain.NotificationSetting) error {
	m.settings[s.Type] = *s
	return nil
}

func (m *memSettings) ListLogs(ctx context.Context, filter domain.NotificationLogFilter) ([]domain.NotificationLog, error) {
	return nil, nil
}

type stubNotifier struct {
	result notification.Result
}

func (s *stubNotifier) SendNow(ctx context.Context, t domain.NotificationType, q *domain.Quote, actor domain.Actor, force bool) notification.Result {
	if s.result.Outcome == "" {
		return notification.Result{Outcome: notification.OutcomeSent}
	}
	return s.result
}

func (s *stubNotifier) SendTest(ctx context.Context, t domain.NotificationType, to string, actor domain.Actor) notification.Result {
	return s.SendNow(ctx, t, nil, actor, true)
}

type memObject struct {
	io.ReadCloser
	size int64
	ct   string
}

func (o memObject) ContentLength() int64 { return o.size }
func (o memObject) ContentType() string  { return o.ct }

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (m *memStorage) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return nil
}

func (m *memStorage) GetObject(ctx context.Context, key string) (s3.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, s3.ErrObjectNotFound
	}
	return memObject{io.NopCloser(bytes.NewReader(data)), int64(len(data)), m.types[key]}, nil
}

func (m *memStorage) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}

func (m *memStorage) URL(key string) string { return "https://cdn.example.com/" + key }

type noThumbs struct{}

func (noThumbs) Thumbnail(data []byte, contentType string) ([]byte, error) {
	return nil, fmt.Errorf("no thumbnails in tests")
}

const (
	adminToken = "admin-token"
	staffToken = "staff-token"
)

type testServer struct {
	router   http.Handler
	quotes   *memQuotes
	audit    *memAudit
	storage  *memStorage
	notifier *stubNotifier
	auditSvc *service.AuditService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		quotes:   &memQuotes{quotes: map[uuid.UUID]*domain.Quote{}},
		audit:    &memAudit{},
		storage:  &memStorage{objects: map[string][]byte{}, types: map[string]string{}},
		notifier: &stubNotifier{},
	}
	ts.auditSvc = service.NewAuditService(ts.audit)
	bus := events.NewBus()
	bus.Subscribe("audit", ts.auditSvc.Handle)

	artworkSvc := service.NewArtworkService(ts.quotes, ts.storage, noThumbs{}, ts.notifier, bus)
	quoteSvc := service.NewQuoteService(ts.quotes, noCustomers{}, ts.auditSvc, ts.notifier, artworkSvc, bus)
	notificationSvc := service.NewNotificationService(&memSettings{settings: map[domain.NotificationType]domain.NotificationSetting{}}, ts.notifier)
	gen := pdf.New("Quotedesk", nil)

	dir := auth.NewStaticDirectory(map[string]domain.User{
		adminToken: {ID: "u-1", Email: "ada@example.com", Name: "Ada", Role: domain.RoleAdmin},
		staffToken: {ID: "u-2", Email: "sam@example.com", Name: "Sam", Role: domain.RoleStaff},
	})

	r := chi.NewRouter()
	Routes{
		Quotes:        NewQuoteHandler(quoteSvc, gen),
		Artwork:       NewArtworkHandler(artworkSvc),
		Public:        NewPublicHandler(quoteSvc, artworkSvc, gen),
		Audit:         NewAuditHandler(ts.auditSvc),
		Notifications: NewNotificationHandler(notificationSvc),
	}.Mount(r, dir)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}
