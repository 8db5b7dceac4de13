package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"io"
	"log"
	"mime"
	"net/http"
	"quotedesk/internal/domain"
	"quotedesk/internal/service"
	"quotedesk/internal/service/pdf"
	"strconv"
	"time"
)

// PublicHandler serves the token-authenticated customer pages.
type PublicHandler struct {
	quoteService   *service.QuoteService
	artworkService *service.ArtworkService
	pdf            *pdf.Generator
}

func NewPublicHandler(quoteService *service.QuoteService, artworkService *service.ArtworkService, pdf *pdf.Generator) *PublicHandler {
	return &PublicHandler{
		quoteService:   quoteService,
		artworkService: artworkService,
		pdf:            pdf,
	}
}

type respondRequest struct {
	Notes string `json:"notes"`
}

// publicQuote is what a customer sees. Internal notes and ownership stay private.
type publicQuote struct {
	QuoteNumber     string             `json:"quote_number"`
	Title           string             `json:"title"`
	Status          domain.QuoteStatus `json:"status"`
	StatusLabel     string             `json:"status_label"`
	CustomerName    string             `json:"customer_name"`
	CustomerCompany string             `json:"customer_company,omitempty"`
	LineItems       []publicLineItem   `json:"line_items"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Discount        decimal.Decimal    `json:"discount"`
	Tax             decimal.Decimal    `json:"tax"`
	Shipping        decimal.Decimal    `json:"shipping"`
	Total           decimal.Decimal    `json:"total"`
	ValidUntil      *time.Time         `json:"valid_until,omitempty"`
	ArtworkRequired bool               `json:"artwork_required"`
	CanRespond      bool               `json:"can_respond"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
}

type publicLineItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type publicArtwork struct {
	QuoteNumber  string             `json:"quote_number"`
	Title        string             `json:"title"`
	Status       domain.QuoteStatus `json:"status"`
	Version      int                `json:"version"`
	FileName     string             `json:"file_name"`
	URL          string             `json:"url"`
	ThumbnailURL string             `json:"thumbnail_url,omitempty"`
	Answered     bool               `json:"answered"`
	Notes        string             `json:"notes,omitempty"`
}

func toPublicQuote(q *domain.Quote) publicQuote {
	out := publicQuote{
		QuoteNumber:     q.QuoteNumber,
		Title:           q.Title,
		Status:          q.Status,
		StatusLabel:     q.Status.Label(),
		CustomerName:    q.ResolvedCustomerName(),
		CustomerCompany: q.ResolvedCustomerCompany(),
		Subtotal:        q.Subtotal,
		Discount:        q.Discount,
		Tax:             q.Tax,
		Shipping:        q.Shipping,
		Total:           q.Total,
		ValidUntil:      q.ValidUntil,
		ArtworkRequired: q.ArtworkRequired,
		ApprovedAt:      q.ApprovedAt,
		LineItems:       make([]publicLineItem, 0, len(q.LineItems)),
	}
	if q.ArtworkRequired {
		out.CanRespond = q.ArtworkCleared()
	} else {
		out.CanRespond = q.Status == domain.QuoteStatusSent
	}
	for _, item := range q.LineItems {
		out.LineItems = append(out.LineItems, publicLineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}
	return out
}

func toPublicArtwork(q *domain.Quote, token string) publicArtwork {
	out := publicArtwork{
		QuoteNumber: q.QuoteNumber,
		Title:       q.Title,
		Status:      q.Status,
		Version:     q.ArtworkVersion,
		FileName:    derefString(q.ArtworkFileName),
		URL:         derefString(q.ArtworkURL),
		Answered:    q.ArtworkApprovedAt != nil || q.ArtworkDeclinedAt != nil,
		Notes:       derefString(q.ArtworkNotes),
	}
	if q.ArtworkThumbnailURL != nil {
		out.ThumbnailURL = "/v1/public/artwork/" + token + "/thumbnail"
	}
	return out
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *PublicHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.quoteService.GetByApprovalToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicQuote(q))
}

func (h *PublicHandler) QuotePDF(w http.ResponseWriter, r *http.Request) {
	q, err := h.quoteService.GetByApprovalToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writePDF(w, h.pdf, q)
}

func (h *PublicHandler) ApproveQuote(w http.ResponseWriter, r *http.Request) {
	h.respondToQuote(w, r, true)
}

func (h *PublicHandler) DeclineQuote(w http.ResponseWriter, r *http.Request) {
	h.respondToQuote(w, r, false)
}

func (h *PublicHandler) respondToQuote(w http.ResponseWriter, r *http.Request, approve bool) {
	var req respondRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	q, err := h.quoteService.RespondToQuote(r.Context(), chi.URLParam(r, "token"), approve, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicQuote(q))
}

func (h *PublicHandler) GetArtwork(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	q, err := h.artworkService.GetArtworkByToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicArtwork(q, token))
}

func (h *PublicHandler) ApproveArtwork(w http.ResponseWriter, r *http.Request) {
	h.respondToArtwork(w, r, true)
}

func (h *PublicHandler) DeclineArtwork(w http.ResponseWriter, r *http.Request) {
	h.respondToArtwork(w, r, false)
}

func (h *PublicHandler) respondToArtwork(w http.ResponseWriter, r *http.Request, approve bool) {
	var req respondRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	token := chi.URLParam(r, "token")
	q, err := h.artworkService.RespondToArtwork(r.Context(), token, approve, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPublicArtwork(q, token))
}

// ArtworkFile streams the current artwork version from object storage.
func (h *PublicHandler) ArtworkFile(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	q, err := h.artworkService.GetArtworkByToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	obj, err := h.artworkService.OpenArtwork(r.Context(), token, false)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	if ct := obj.ContentType(); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if n := obj.ContentLength(); n > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": derefString(q.ArtworkFileName)}))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("[Public] Artwork stream for %s interrupted: %v", q.QuoteNumber, err)
	}
}
