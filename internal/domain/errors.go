package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("concurrent modification")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrTokenInvalid       = errors.New("token is invalid or has been rotated")
	ErrForbidden          = errors.New("action requires a privileged role")
	ErrNoRecipients       = errors.New("no recipients resolved")
	ErrDeliveryFailed     = errors.New("notification delivery failed")
	ErrChannelUnsupported = errors.New("notification channel not supported")
)

// ValidationError is reported synchronously to the caller; no mutation happened.
type ValidationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Op == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Unwrap makes every ValidationError match ErrValidation, plus its cause if set.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

func Invalid(op, format string, args ...any) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func InvalidTransition(op string, from, to QuoteStatus) error {
	return &ValidationError{
		Op:     op,
		Reason: fmt.Sprintf("cannot move quote from %s to %s", from, to),
		Err:    ErrInvalidTransition,
	}
}

// DeliveryError is returned for user-triggered sends whose state change was
// committed but whose email could not be delivered.
type DeliveryError struct {
	Type NotificationType
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Type, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDeliveryFailed, e.Err}
}
