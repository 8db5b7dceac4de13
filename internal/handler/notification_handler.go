package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"net/http"
	"quotedesk/internal/domain"
	"quotedesk/internal/notification"
	"quotedesk/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

type sendTestRequest struct {
	To string `json:"to"`
}

type attemptView struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type sendTestResponse struct {
	Outcome  notification.Outcome `json:"outcome"`
	Attempts []attemptView        `json:"attempts"`
}

func toSendTestResponse(res notification.Result) sendTestResponse {
	out := sendTestResponse{Outcome: res.Outcome, Attempts: []attemptView{}}
	for _, a := range res.Attempts {
		v := attemptView{Recipient: a.Recipient, Success: a.Success, MessageID: a.MessageID}
		if a.Err != nil {
			v.Error = a.Err.Error()
		}
		out.Attempts = append(out.Attempts, v)
	}
	return out
}

func (h *NotificationHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.notificationService.ListSettings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *NotificationHandler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t := domain.NotificationType(chi.URLParam(r, "type"))
	setting, err := h.notificationService.UpdateSetting(r.Context(), actor(r), t, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	var req sendTestRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	t := domain.NotificationType(chi.URLParam(r, "type"))
	res, err := h.notificationService.SendTest(r.Context(), actor(r), t, req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSendTestResponse(res))
}

func (h *NotificationHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.NotificationLogFilter{
		Type:   domain.NotificationType(query.Get("type")),
		Status: domain.NotificationStatus(query.Get("status")),
	}
	if raw := query.Get("quote_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, domain.Invalid("list notification logs", "invalid quote id %q", raw))
			return
		}
		filter.QuoteID = &id
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

	logs, err := h.notificationService.ListLogs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.NotificationLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
