package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"quotedesk/internal/auth"
	"quotedesk/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] %d: %v", status, err)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func statusFor(err error) (int, string) {
	var de *domain.DeliveryError
	switch {
	case errors.As(err, &de):
		return http.StatusBadGateway, "delivery_failed"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusNotFound, "token_invalid"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrNoToken):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusInternalServerError, "internal"
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("decode request", "invalid request body: %v", err)
	}
	return nil
}

// actor returns the authenticated caller. Routes behind auth.Middleware always have one.
func actor(r *http.Request) domain.Actor {
	a, ok := auth.ActorFromContext(r.Context())
	if !ok {
		return domain.Actor{Type: domain.ActorSystem}
	}
	return a
}
