package channel

import (
	"context"
	"errors"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
)

// Payload is the channel-agnostic input to a single send
type Payload struct {
	NotificationID string
	RecipientID    string
	Title          string
	Body           string
	Priority       domain.Priority
	Recipient      domain.Recipient
	Data           map[string]any
}

// Result is the outcome of one Send call, including how many inner attempts
// it consumed. The inner attempt counter is independent of the scheduler's
// outer queue attempts.
type Result struct {
	Success     bool
	MessageID   string
	Err         error
	DeliveredAt *time.Time
	Attempts    int
}

// ErrorText returns the recorded error text, empty on success
func (r *Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Sender is the common contract every delivery transport implements
type Sender interface {
	// Channel identifies the transport this sender serves
	Channel() domain.Channel
	// Provider names the backing provider for the delivery ledger
	Provider() string
	// Validate checks the channel-specific payload shape
	Validate(p *Payload) error
	// Send attempts delivery, applying rate limiting and bounded inner retry
	Send(ctx context.Context, p *Payload) *Result
}

// Registry maps channel identifiers to sender implementations. New channels
// are added by registering an implementation, not by editing a dispatch
// branch.
type Registry struct {
	senders map[domain.Channel]Sender
}

// NewRegistry builds the channel registry from sender implementations
func NewRegistry(senders ...Sender) *Registry {
	m := make(map[domain.Channel]Sender, len(senders))
	for _, s := range senders {
		m[s.Channel()] = s
	}
	return &Registry{senders: m}
}

// Get looks up the sender for a channel
func (r *Registry) Get(ch domain.Channel) (Sender, bool) {
	s, ok := r.senders[ch]
	return s, ok
}

// Channels lists the registered channels
func (r *Registry) Channels() []domain.Channel {
	channels := make([]domain.Channel, 0, len(r.senders))
	for ch := range r.senders {
		channels = append(channels, ch)
	}
	return channels
}

// permanentError marks a transport error that must not consume further inner
// retries, such as a webhook 4xx response
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
