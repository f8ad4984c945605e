package channel

import (
	"context"
	"fmt"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// EmailConfig holds SMTP configuration for the email sender
type EmailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// EmailSender delivers notifications over SMTP
type EmailSender struct {
	config EmailConfig
	retry  retrier
	log    *logger.Logger

	// send is swappable for tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender creates a new email sender
func NewEmailSender(config EmailConfig, retries int, baseDelay time.Duration, limiter *DestinationLimiter, log *logger.Logger) *EmailSender {
	return &EmailSender{
		config: config,
		retry:  newRetrier(domain.ChannelEmail, retries, baseDelay, limiter),
		log:    log,
		send:   smtp.SendMail,
	}
}

// Channel identifies the email transport
func (s *EmailSender) Channel() domain.Channel { return domain.ChannelEmail }

// Provider names the backing provider
func (s *EmailSender) Provider() string { return "smtp" }

// Validate checks the address shape and message presence
func (s *EmailSender) Validate(p *Payload) error {
	if !emailPattern.MatchString(p.Recipient.Email) {
		return fmt.Errorf("%w: invalid email address %q", domain.ErrInvalidChannelPayload, p.Recipient.Email)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: email subject is empty", domain.ErrInvalidChannelPayload)
	}
	return nil
}

// Send delivers the message via SMTP with inner retry on transport errors
func (s *EmailSender) Send(ctx context.Context, p *Payload) *Result {
	if err := s.Validate(p); err != nil {
		return &Result{Err: err}
	}

	to := p.Recipient.Email
	return s.retry.do(ctx, to, func() (string, error) {
		if err := s.sendSMTP(to, p.Title, p.Body); err != nil {
			s.log.Warn("SMTP send failed", "to", to, "error", err)
			return "", fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
		}
		return uuid.NewString(), nil
	})
}

// sendSMTP builds the RFC 5322 message and hands it to the SMTP client
func (s *EmailSender) sendSMTP(to, subject, body string) error {
	from := s.config.FromEmail
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	return s.send(addr, auth, s.config.FromEmail, []string{to}, []byte(msg.String()))
}
