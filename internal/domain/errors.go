package domain

import (
	"errors"
	"fmt"
)

// Dispatch error taxonomy. Template errors abort a dispatch before any
// notification is created; per-channel errors are recorded in the delivery
// ledger and never propagate to the caller.
var (
	ErrTemplateNotFound      = errors.New("template not found")
	ErrMissingVariable       = errors.New("missing template variable")
	ErrInvalidChannelPayload = errors.New("invalid channel payload")
	ErrRateLimited           = errors.New("rate limited")
	ErrTransportFailure      = errors.New("transport failure")
	ErrTimeout               = errors.New("delivery timeout")
	ErrQueueExhausted        = errors.New("queue attempts exhausted")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrNotCancellable        = errors.New("notification is not cancellable")
)

// TemplateNotFoundError wraps ErrTemplateNotFound with the template name
func TemplateNotFoundError(name string) error {
	return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

// MissingVariableError wraps ErrMissingVariable with the unresolved names
func MissingVariableError(names []string) error {
	return fmt.Errorf("%w: %v", ErrMissingVariable, names)
}

// IsTransient reports whether a channel error is eligible for inner retry.
// Rate limiting and payload validation failures never are; the queue's outer
// retry may still pick up a rate-limited channel later.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInvalidChannelPayload) {
		return false
	}
	return errors.Is(err, ErrTransportFailure) || errors.Is(err, ErrTimeout)
}
