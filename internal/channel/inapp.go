package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
)

// InAppSender records delivery into the recipient's in-application feed. The
// notification row itself is the feed entry, so a send amounts to accepting
// the message; the orchestrator pushes the live event afterwards.
type InAppSender struct{}

// NewInAppSender creates a new in-app sender
func NewInAppSender() *InAppSender {
	return &InAppSender{}
}

// Channel identifies the in-app transport
func (s *InAppSender) Channel() domain.Channel { return domain.ChannelInApp }

// Provider names the backing provider
func (s *InAppSender) Provider() string { return "feed" }

// Validate checks the recipient reference
func (s *InAppSender) Validate(p *Payload) error {
	if p.RecipientID == "" {
		return fmt.Errorf("%w: recipient id is empty", domain.ErrInvalidChannelPayload)
	}
	return nil
}

// Send accepts the message into the feed
func (s *InAppSender) Send(ctx context.Context, p *Payload) *Result {
	if err := s.Validate(p); err != nil {
		return &Result{Err: err}
	}

	now := time.Now()
	return &Result{
		Success:     true,
		MessageID:   uuid.NewString(),
		DeliveredAt: &now,
		Attempts:    1,
	}
}
