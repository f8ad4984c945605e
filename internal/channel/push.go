package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// maxPushPayloadBytes matches the common mobile push provider ceiling
const maxPushPayloadBytes = 4 * 1024

// PushConfig holds push provider configuration
type PushConfig struct {
	Provider string // log, fcm
}

// PushSender delivers notifications to mobile devices
type PushSender struct {
	config PushConfig
	retry  retrier
	log    *logger.Logger
}

// NewPushSender creates a new push sender
func NewPushSender(config PushConfig, retries int, baseDelay time.Duration, limiter *DestinationLimiter, log *logger.Logger) *PushSender {
	return &PushSender{
		config: config,
		retry:  newRetrier(domain.ChannelPush, retries, baseDelay, limiter),
		log:    log,
	}
}

// Channel identifies the push transport
func (s *PushSender) Channel() domain.Channel { return domain.ChannelPush }

// Provider names the backing provider
func (s *PushSender) Provider() string { return s.config.Provider }

// Validate checks device token presence and the payload size ceiling
func (s *PushSender) Validate(p *Payload) error {
	if p.Recipient.DeviceToken == "" {
		return fmt.Errorf("%w: device token is empty", domain.ErrInvalidChannelPayload)
	}
	if len(p.Data) > 0 {
		raw, err := json.Marshal(p.Data)
		if err != nil {
			return fmt.Errorf("%w: push data is not serializable: %v", domain.ErrInvalidChannelPayload, err)
		}
		if len(raw) > maxPushPayloadBytes {
			return fmt.Errorf("%w: push payload exceeds %d bytes", domain.ErrInvalidChannelPayload, maxPushPayloadBytes)
		}
	}
	return nil
}

// Send delivers the message via the configured provider
func (s *PushSender) Send(ctx context.Context, p *Payload) *Result {
	if err := s.Validate(p); err != nil {
		return &Result{Err: err}
	}

	return s.retry.do(ctx, p.Recipient.DeviceToken, func() (string, error) {
		switch s.config.Provider {
		case "log":
			s.log.Info("Sending push notification", "token", p.Recipient.DeviceToken, "provider", "log")
			return uuid.NewString(), nil
		default:
			// Misconfiguration will not fix itself mid-call; skip the retries
			return "", permanent(fmt.Errorf("%w: unsupported push provider %q", domain.ErrTransportFailure, s.config.Provider))
		}
	})
}
