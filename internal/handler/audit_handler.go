package handler

import (
	"net/http"
	"quotedesk/internal/domain"
	"quotedesk/internal/service"
)

type AuditHandler struct {
	auditService *service.AuditService
}

func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// GetAuditLogs returns one page of a quote's history. Pass order=asc to replay it.
func (h *AuditHandler) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	id, err := quoteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	query := r.URL.Query()
	size, err := intParam(query.Get("page_size"))
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.auditService.GetAuditLogs(r.Context(), id, domain.AuditPageRequest{
		PageSize:  size,
		PageToken: query.Get("page_token"),
		Order:     domain.AuditOrder(query.Get("order")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if page.Entries == nil {
		page.Entries = []domain.QuoteAuditLogEntry{}
	}
	writeJSON(w, http.StatusOK, page)
}
