package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

// maxWebhookPayloadBytes bounds the serialized request body
const maxWebhookPayloadBytes = 256 * 1024

// WebhookSender delivers notifications as HTTP POSTs to a caller-supplied
// endpoint
type WebhookSender struct {
	client *http.Client
	retry  retrier
	log    *logger.Logger
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(retries int, baseDelay time.Duration, limiter *DestinationLimiter, log *logger.Logger) *WebhookSender {
	return &WebhookSender{
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  newRetrier(domain.ChannelWebhook, retries, baseDelay, limiter),
		log:    log,
	}
}

// Channel identifies the webhook transport
func (s *WebhookSender) Channel() domain.Channel { return domain.ChannelWebhook }

// Provider names the backing provider
func (s *WebhookSender) Provider() string { return "http" }

// Validate checks URL well-formedness and the payload byte-size ceiling
func (s *WebhookSender) Validate(p *Payload) error {
	parsed, err := url.Parse(p.Recipient.WebhookURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: invalid webhook URL %q", domain.ErrInvalidChannelPayload, p.Recipient.WebhookURL)
	}

	body, err := json.Marshal(s.buildBody(p))
	if err != nil {
		return fmt.Errorf("%w: webhook payload is not serializable: %v", domain.ErrInvalidChannelPayload, err)
	}
	if len(body) > maxWebhookPayloadBytes {
		return fmt.Errorf("%w: webhook payload exceeds %d bytes", domain.ErrInvalidChannelPayload, maxWebhookPayloadBytes)
	}

	return nil
}

// Send posts the payload with inner retry. Any response outside 200-299 is a
// failure; 4xx client errors fail fast after one attempt since retrying an
// invalid request only wastes the budget.
func (s *WebhookSender) Send(ctx context.Context, p *Payload) *Result {
	if err := s.Validate(p); err != nil {
		return &Result{Err: err}
	}

	body, err := json.Marshal(s.buildBody(p))
	if err != nil {
		return &Result{Err: fmt.Errorf("%w: %v", domain.ErrInvalidChannelPayload, err)}
	}

	endpoint := p.Recipient.WebhookURL
	return s.retry.do(ctx, endpoint, func() (string, error) {
		if err := s.post(ctx, endpoint, body); err != nil {
			return "", err
		}
		return uuid.NewString(), nil
	})
}

// buildBody shapes the JSON document delivered to the endpoint
func (s *WebhookSender) buildBody(p *Payload) map[string]any {
	return map[string]any{
		"notification_id": p.NotificationID,
		"recipient_id":    p.RecipientID,
		"title":           p.Title,
		"body":            p.Body,
		"priority":        p.Priority,
		"data":            p.Data,
	}
}

// post performs one HTTP attempt and classifies the outcome
func (s *WebhookSender) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return permanent(fmt.Errorf("%w: %v", domain.ErrTransportFailure, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Delivery-Service/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	statusErr := fmt.Errorf("%w: webhook returned status %d", domain.ErrTransportFailure, resp.StatusCode)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return permanent(statusErr)
	}
	return statusErr
}
