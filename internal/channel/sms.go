package channel

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// maxSMSLength bounds the message body; longer texts are rejected rather
// than silently truncated
const maxSMSLength = 1600

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)

// SMSConfig holds SMS provider configuration
type SMSConfig struct {
	Provider string // log, twilio
	From     string
}

// SMSSender delivers notifications as text messages
type SMSSender struct {
	config SMSConfig
	retry  retrier
	log    *logger.Logger
}

// NewSMSSender creates a new SMS sender
func NewSMSSender(config SMSConfig, retries int, baseDelay time.Duration, limiter *DestinationLimiter, log *logger.Logger) *SMSSender {
	return &SMSSender{
		config: config,
		retry:  newRetrier(domain.ChannelSMS, retries, baseDelay, limiter),
		log:    log,
	}
}

// Channel identifies the SMS transport
func (s *SMSSender) Channel() domain.Channel { return domain.ChannelSMS }

// Provider names the backing provider
func (s *SMSSender) Provider() string { return s.config.Provider }

// Validate checks the phone number pattern and message length ceiling
func (s *SMSSender) Validate(p *Payload) error {
	if !phonePattern.MatchString(p.Recipient.Phone) {
		return fmt.Errorf("%w: invalid phone number %q", domain.ErrInvalidChannelPayload, p.Recipient.Phone)
	}
	if p.Body == "" {
		return fmt.Errorf("%w: SMS body is empty", domain.ErrInvalidChannelPayload)
	}
	if utf8.RuneCountInString(p.Body) > maxSMSLength {
		return fmt.Errorf("%w: SMS body exceeds %d characters", domain.ErrInvalidChannelPayload, maxSMSLength)
	}
	return nil
}

// Send delivers the message via the configured provider
func (s *SMSSender) Send(ctx context.Context, p *Payload) *Result {
	if err := s.Validate(p); err != nil {
		return &Result{Err: err}
	}

	return s.retry.do(ctx, p.Recipient.Phone, func() (string, error) {
		switch s.config.Provider {
		case "log":
			s.log.Info("Sending SMS", "to", p.Recipient.Phone, "provider", "log")
			return uuid.NewString(), nil
		default:
			// Misconfiguration will not fix itself mid-call; skip the retries
			return "", permanent(fmt.Errorf("%w: unsupported SMS provider %q", domain.ErrTransportFailure, s.config.Provider))
		}
	})
}
