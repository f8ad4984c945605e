package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

func newTestWebhookSender() *WebhookSender {
	return NewWebhookSender(3, time.Millisecond, nil, logger.NewLogger())
}

func webhookPayload(url string) *Payload {
	return &Payload{
		NotificationID: "n-1",
		RecipientID:    "user-1",
		Title:          "Booking confirmed",
		Body:           "See you tomorrow",
		Priority:       domain.PriorityNormal,
		Recipient:      domain.Recipient{WebhookURL: url},
	}
}

// TestWebhookSendSuccess delivers on the first attempt
func TestWebhookSendSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newTestWebhookSender()
	result := sender.Send(context.Background(), webhookPayload(server.URL))

	if !result.Success {
		t.Fatalf("Send() failed: %v", result.Err)
	}
	if result.MessageID == "" {
		t.Error("expected a message id")
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

// TestWebhookSendServerErrorRetries exhausts the inner retry budget against
// a consistently failing endpoint
func TestWebhookSendServerErrorRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := newTestWebhookSender()
	result := sender.Send(context.Background(), webhookPayload(server.URL))

	if result.Success {
		t.Fatal("expected failure")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if !errors.Is(result.Err, domain.ErrTransportFailure) {
		t.Errorf("expected transport failure, got %v", result.Err)
	}
}

// TestWebhookSendClientErrorFailsFast verifies a 4xx short-circuits the
// inner retry after one attempt
func TestWebhookSendClientErrorFailsFast(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := newTestWebhookSender()
	result := sender.Send(context.Background(), webhookPayload(server.URL))

	if result.Success {
		t.Fatal("expected failure")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

// TestWebhookSendRecoversAfterTransientError succeeds once the endpoint does
func TestWebhookSendRecoversAfterTransientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newTestWebhookSender()
	result := sender.Send(context.Background(), webhookPayload(server.URL))

	if !result.Success {
		t.Fatalf("Send() failed: %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

// TestWebhookValidate rejects malformed URLs before any transport work
func TestWebhookValidate(t *testing.T) {
	sender := newTestWebhookSender()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "valid https", url: "https://example.com/hook", wantErr: false},
		{name: "valid http", url: "http://example.com/hook", wantErr: false},
		{name: "empty", url: "", wantErr: true},
		{name: "no scheme", url: "example.com/hook", wantErr: true},
		{name: "bad scheme", url: "ftp://example.com/hook", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sender.Validate(webhookPayload(tt.url))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidChannelPayload) {
				t.Errorf("expected invalid payload error, got %v", err)
			}
		})
	}
}

// TestWebhookRateLimited verifies a limiter rejection surfaces as
// RateLimited without touching the endpoint
func TestWebhookRateLimited(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	limiter := NewDestinationLimiter(0.001, 1)
	sender := NewWebhookSender(3, time.Millisecond, limiter, logger.NewLogger())

	// First send consumes the burst, second is rejected by the limiter.
	first := sender.Send(context.Background(), webhookPayload(server.URL))
	if !first.Success {
		t.Fatalf("first Send() failed: %v", first.Err)
	}

	second := sender.Send(context.Background(), webhookPayload(server.URL))
	if second.Success {
		t.Fatal("expected rate-limited failure")
	}
	if !errors.Is(second.Err, domain.ErrRateLimited) {
		t.Errorf("expected rate limited error, got %v", second.Err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}
