package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quotedesk/internal/auth"
	"quotedesk/internal/domain"
	"quotedesk/internal/notification"
)

const createBody = `{
	"title": "Team shirts",
	"customer_name": "Cleo Customer",
	"customer_email": "cleo@example.com",
	"line_items": [{"item_type": "PRODUCT", "description": "Tee", "quantity": 50, "unit_price": "2.00"}],
	"discount_type": "FIXED",
	"discount_value": "10",
	"tax_rate": "8",
	"shipping": "15"
}`

type quoteJSON struct {
	ID          uuid.UUID          `json:"id"`
	QuoteNumber string             `json:"quote_number"`
	Status      domain.QuoteStatus `json:"status"`
	Total       decimal.Decimal    `json:"total"`
}

func (ts *testServer) createQuote(t *testing.T, body string) quoteJSON {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/quotes", adminToken, strings.NewReader(body), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var q quoteJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatal(err)
	}
	return q
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.Invalid("op", "bad"), http.StatusBadRequest},
		{domain.InvalidTransition("op", domain.QuoteStatusPending, domain.QuoteStatusApproved), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrTokenInvalid, http.StatusNotFound},
		{fmt.Errorf("update: %w", domain.ErrConflict), http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{&domain.DeliveryError{Type: domain.NotifyCustomerQuoteSent, Err: domain.ErrNoRecipients}, http.StatusBadGateway},
		{auth.ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Fatalf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStaffRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	for _, token := range []string{"", "nope"} {
		rec := ts.do(t, http.MethodGet, "/v1/quotes", token, nil, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status %d", token, rec.Code)
		}
	}
}

func TestCreateAndGetQuote(t *testing.T) {
	ts := newTestServer(t)
	q := ts.createQuote(t, createBody)

	if q.Status != domain.QuoteStatusPending || !q.Total.Equal(decimal.RequireFromString("112.20")) {
		t.Fatalf("created %+v", q)
	}

	rec := ts.do(t, http.MethodGet, "/v1/quotes/"+q.ID.String(), adminToken, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "approval_token") {
		t.Fatal("approval token leaked into the staff API")
	}

	if rec := ts.do(t, http.MethodGet, "/v1/quotes/not-a-uuid", adminToken, nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/v1/quotes/"+uuid.NewString(), adminToken, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", rec.Code)
	}
}

func TestCreateQuoteValidation(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"title":`},
		{"no customer", `{"title":"x","line_items":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/quotes", adminToken, strings.NewReader(tt.body), "application/json")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestChangeStatusAndArchivePrivileges(t *testing.T) {
	ts := newTestServer(t)
	q := ts.createQuote(t, createBody)
	base := "/v1/quotes/" + q.ID.String()

	rec := ts.do(t, http.MethodPost, base+"/status", staffToken, strings.NewReader(`{"status":"APPROVED"}`), "application/json")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid_transition") {
		t.Fatalf("invalid transition: %d %s", rec.Code, rec.Body)
	}
	if rec := ts.do(t, http.MethodPost, base+"/archive", staffToken, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("staff archive: %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, base, staffToken, nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("staff delete: %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, base+"/archive", adminToken, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("admin archive: %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, base+"/transitions", adminToken, nil, "")
	var tr transitionsResponse
	json.Unmarshal(rec.Body.Bytes(), &tr)
	if tr.Status != domain.QuoteStatusArchived || len(tr.Allowed) != 0 {
		t.Fatalf("transitions = %+v", tr)
	}
}

func TestSendDeliveryFailureReturnsCommittedQuote(t *testing.T) {
	ts := newTestServer(t)
	q := ts.createQuote(t, createBody)
	ts.notifier.result = notification.Result{Outcome: notification.OutcomeFailed, Err: errors.New("smtp: 550")}

	rec := ts.do(t, http.MethodPost, "/v1/quotes/"+q.ID.String()+"/send", adminToken, nil, "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Code  string    `json:"code"`
		Quote quoteJSON `json:"quote"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != "delivery_failed" || body.Quote.Status != domain.QuoteStatusSent {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestPublicQuoteFlow(t *testing.T) {
	ts := newTestServer(t)
	q := ts.createQuote(t, createBody)
	if rec := ts.do(t, http.MethodPost, "/v1/quotes/"+q.ID.String()+"/send", adminToken, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("send: %d", rec.Code)
	}
	stored, _ := ts.quotes.GetByID(context.Background(), q.ID)
	base := "/v1/public/quotes/" + stored.ApprovalToken

	rec := ts.do(t, http.MethodGet, base, "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("view: %d", rec.Code)
	}
	var view publicQuote
	json.Unmarshal(rec.Body.Bytes(), &view)
	if !view.CanRespond || view.QuoteNumber != q.QuoteNumber || strings.Contains(rec.Body.String(), "owner_id") {
		t.Fatalf("view = %s", rec.Body)
	}

	if rec := ts.do(t, http.MethodGet, base+"/pdf", "", nil, ""); rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("pdf: %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, base+"/approve", "", strings.NewReader(`{"notes":"ship it"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body)
	}
	json.Unmarshal(rec.Body.Bytes(), &view)
	if view.Status != domain.QuoteStatusApproved || view.CanRespond {
		t.Fatalf("after approve: %+v", view)
	}

	if rec := ts.do(t, http.MethodPost, base+"/decline", "", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("second answer: %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/v1/public/quotes/unknown", "", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token: %d", rec.Code)
	}
}

func TestArtworkUploadAndCustomerResponse(t *testing.T) {
	ts := newTestServer(t)
	q := ts.createQuote(t, strings.Replace(createBody, `"title"`, `"artwork_required": true, "title"`, 1))
	base := "/v1/quotes/" + q.ID.String()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "proof.png")
	fw.Write([]byte("\x89PNG\r\n\x1a\nproof"))
	mw.Close()

	rec := ts.do(t, http.MethodPost, base+"/artwork", adminToken, &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}
	key := "artwork/" + q.ID.String() + "/v1/proof.png"
	if ts.storage.types[key] != "image/png" {
		t.Fatalf("stored %v with type %q", ts.storage.objects, ts.storage.types[key])
	}

	if rec := ts.do(t, http.MethodPost, base+"/artwork/send", adminToken, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("send artwork: %d %s", rec.Code, rec.Body)
	}

	stored, _ := ts.quotes.GetByID(context.Background(), q.ID)
	public := "/v1/public/artwork/" + *stored.ArtworkToken

	rec = ts.do(t, http.MethodGet, public+"/file", "", nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" || !strings.Contains(rec.Header().Get("Content-Disposition"), "proof.png") {
		t.Fatalf("file: %d %v", rec.Code, rec.Header())
	}

	rec = ts.do(t, http.MethodPost, public+"/decline", "", strings.NewReader(`{"notes":"bigger logo"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("decline: %d %s", rec.Code, rec.Body)
	}
	var art publicArtwork
	json.Unmarshal(rec.Body.Bytes(), &art)
	if art.Status != domain.QuoteStatusArtworkDeclined || !art.Answered || art.Notes != "bigger logo" {
		t.Fatalf("artwork view = %+v", art)
	}

	// A URL upload replaces the version and rotates the link.
	rec = ts.do(t, http.MethodPost, base+"/artwork", adminToken, strings.NewReader(`{"url":"https://files.example.com/v2.pdf"}`), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("url upload: %d %s", rec.Code, rec.Body)
	}
	if rec := ts.do(t, http.MethodGet, public, "", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("rotated link: %d", rec.Code)
	}
}

func TestAuditLogsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	q := ts.createQuote(t, createBody)
	base := "/v1/quotes/" + q.ID.String()
	for _, title := range []string{"A", "B", "C"} {
		body := fmt.Sprintf(`{"title":%q}`, title)
		if rec := ts.do(t, http.MethodPatch, base, adminToken, strings.NewReader(body), "application/json"); rec.Code != http.StatusOK {
			t.Fatalf("patch: %d %s", rec.Code, rec.Body)
		}
	}

	var seen []domain.AuditAction
	path := base + "/audit-logs?order=asc&page_size=3"
	for path != "" {
		rec := ts.do(t, http.MethodGet, path, adminToken, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("audit: %d %s", rec.Code, rec.Body)
		}
		var page domain.AuditPage
		json.Unmarshal(rec.Body.Bytes(), &page)
		for _, e := range page.Entries {
			seen = append(seen, e.Action)
		}
		path = ""
		if page.NextPageToken != "" {
			path = base + "/audit-logs?order=asc&page_size=3&page_token=" + page.NextPageToken
		}
	}
	want := []domain.AuditAction{domain.AuditCreated, domain.AuditUpdated, domain.AuditUpdated, domain.AuditUpdated}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("history = %v", seen)
	}

	if rec := ts.do(t, http.MethodGet, base+"/audit-logs?order=sideways", adminToken, nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad order: %d", rec.Code)
	}
}

func TestNotificationSettingsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/v1/notifications/settings/CUSTOMER_QUOTE_SENT", adminToken,
		strings.NewReader(`{"enabled":true,"subject_template":"Quote {{quote_number}}"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, "/v1/notifications/settings", adminToken, nil, "")
	var views []struct {
		Type             domain.NotificationType `json:"type"`
		Enabled          bool                    `json:"enabled"`
		EffectiveSubject string                  `json:"effective_subject"`
	}
	json.Unmarshal(rec.Body.Bytes(), &views)
	if len(views) != len(domain.NotificationTypes()) {
		t.Fatalf("settings = %s", rec.Body)
	}
	for _, v := range views {
		if v.Type == domain.NotifyCustomerQuoteSent && (!v.Enabled || v.EffectiveSubject != "Quote {{quote_number}}") {
			t.Fatalf("updated setting = %+v", v)
		}
	}

	if rec := ts.do(t, http.MethodPut, "/v1/notifications/settings/NOPE", adminToken, strings.NewReader(`{}`), "application/json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type: %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/v1/notifications/settings/CUSTOMER_QUOTE_SENT/test", adminToken, nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"outcome":"sent"`) {
		t.Fatalf("test send: %d %s", rec.Code, rec.Body)
	}

	if rec := ts.do(t, http.MethodGet, "/v1/notifications/logs?limit=10", adminToken, nil, ""); rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("logs: %d %s", rec.Code, rec.Body)
	}
}
