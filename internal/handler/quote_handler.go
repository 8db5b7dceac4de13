package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"log"
	"mime"
	"net/http"
	"quotedesk/internal/domain"
	"quotedesk/internal/service"
	"quotedesk/internal/service/pdf"
	"strconv"
)

type QuoteHandler struct {
	quoteService *service.QuoteService
	pdf          *pdf.Generator
}

type changeStatusRequest struct {
	Status domain.QuoteStatus `json:"status"`
}

type transitionsResponse struct {
	Status  domain.QuoteStatus   `json:"status"`
	Allowed []domain.QuoteStatus `json:"allowed"`
}

func NewQuoteHandler(quoteService *service.QuoteService, pdf *pdf.Generator) *QuoteHandler {
	return &QuoteHandler{
		quoteService: quoteService,
		pdf:          pdf,
	}
}

func quoteID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("parse quote id", "invalid quote id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (h *QuoteHandler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req service.CreateQuoteInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	q, err := h.quoteService.Create(r.Context(), actor(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.QuoteFilter{
		Status:  domain.QuoteStatus(query.Get("status")),
		OwnerID: query.Get("owner_id"),
		Search:  query.Get("search"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, domain.Invalid("list quotes", "unknown status %q", filter.Status))
		return
	}
	if raw := query.Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, domain.Invalid("list quotes", "invalid customer id %q", raw))
			return
		}
		filter.CustomerID = &id
	}
	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		writeError(w, err)
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		writeError(w, err)
		return
	}

	list, err := h.quoteService.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid("parse query", "invalid number %q", raw)
	}
	return n, nil
}

func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.quoteService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) UpdateQuote(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req service.UpdateQuoteInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	q, err := h.quoteService.Update(r.Context(), actor(r), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req changeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	q, err := h.quoteService.ChangeStatus(r.Context(), actor(r), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.quoteService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionsResponse{
		Status:  q.Status,
		Allowed: service.AllowedTransitions(q.Status),
	})
}

// SendToCustomer answers 502 with the committed quote when the email could not be delivered.
func (h *QuoteHandler) SendToCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.quoteService.SendToCustomer(r.Context(), actor(r), id)
	if err != nil {
		writeDeliveryAware(w, q, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) ArchiveQuote(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.quoteService.Archive(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) DeleteQuote(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.quoteService.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuoteHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.quoteService.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writePDF(w, h.pdf, q)
}

func writePDF(w http.ResponseWriter, gen *pdf.Generator, q *domain.Quote) {
	data, err := gen.Generate(q)
	if err != nil {
		log.Printf("Failed to render PDF for %s: %v", q.QuoteNumber, err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": q.QuoteNumber + ".pdf"}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type deliveryFailureResponse struct {
	Error string        `json:"error"`
	Code  string        `json:"code"`
	Quote *domain.Quote `json:"quote,omitempty"`
}

// writeDeliveryAware reports a delivery failure together with the state that was committed.
func writeDeliveryAware(w http.ResponseWriter, q *domain.Quote, err error) {
	status, code := statusFor(err)
	if status != http.StatusBadGateway {
		writeError(w, err)
		return
	}
	log.Printf("[HTTP] Delivery failed after commit: %v", err)
	writeJSON(w, status, deliveryFailureResponse{Error: err.Error(), Code: code, Quote: q})
}
