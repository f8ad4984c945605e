package channel

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

func newTestEmailSender() *EmailSender {
	cfg := EmailConfig{
		Host:      "smtp.example.com",
		Port:      587,
		FromEmail: "noreply@example.com",
		FromName:  "Delivery Service",
	}
	return NewEmailSender(cfg, 3, time.Millisecond, nil, logger.NewLogger())
}

func emailPayload() *Payload {
	return &Payload{
		NotificationID: "n-1",
		RecipientID:    "user-1",
		Title:          "Booking confirmed",
		Body:           "See you tomorrow",
		Recipient:      domain.Recipient{Email: "user@example.com"},
	}
}

// TestEmailValidate covers the address and subject checks
func TestEmailValidate(t *testing.T) {
	sender := newTestEmailSender()

	tests := []struct {
		name    string
		email   string
		title   string
		wantErr bool
	}{
		{name: "valid", email: "user@example.com", title: "hi", wantErr: false},
		{name: "empty address", email: "", title: "hi", wantErr: true},
		{name: "missing at sign", email: "user.example.com", title: "hi", wantErr: true},
		{name: "missing domain dot", email: "user@example", title: "hi", wantErr: true},
		{name: "empty subject", email: "user@example.com", title: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := emailPayload()
			p.Recipient.Email = tt.email
			p.Title = tt.title
			err := sender.Validate(p)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestEmailSendBuildsMessage checks the assembled SMTP message
func TestEmailSendBuildsMessage(t *testing.T) {
	sender := newTestEmailSender()

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	result := sender.Send(context.Background(), emailPayload())
	if !result.Success {
		t.Fatalf("Send() failed: %v", result.Err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "noreply@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: Booking confirmed\r\n") {
		t.Errorf("message missing subject header: %q", msg)
	}
	if !strings.Contains(msg, "\r\n\r\nSee you tomorrow") {
		t.Errorf("message missing body: %q", msg)
	}
}

// TestEmailSendRetriesTransportErrors retries until the transport recovers
func TestEmailSendRetriesTransportErrors(t *testing.T) {
	sender := newTestEmailSender()

	calls := 0
	sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		if calls < 2 {
			return errors.New("connection reset")
		}
		return nil
	}

	result := sender.Send(context.Background(), emailPayload())
	if !result.Success {
		t.Fatalf("Send() failed: %v", result.Err)
	}
	if calls != 2 {
		t.Errorf("send calls = %d, want 2", calls)
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}
}

// TestEmailSendExhaustsRetries records the last error once the budget is spent
func TestEmailSendExhaustsRetries(t *testing.T) {
	sender := newTestEmailSender()

	calls := 0
	sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		return errors.New("connection refused")
	}

	result := sender.Send(context.Background(), emailPayload())
	if result.Success {
		t.Fatal("expected failure")
	}
	if calls != 3 {
		t.Errorf("send calls = %d, want 3", calls)
	}
	if !errors.Is(result.Err, domain.ErrTransportFailure) {
		t.Errorf("expected transport failure, got %v", result.Err)
	}
}

// TestRegistry looks up senders by channel identifier
func TestRegistry(t *testing.T) {
	registry := NewRegistry(newTestEmailSender(), newTestSMSSender(), NewInAppSender())

	if _, ok := registry.Get(domain.ChannelEmail); !ok {
		t.Error("expected email sender to be registered")
	}
	if _, ok := registry.Get(domain.ChannelSMS); !ok {
		t.Error("expected sms sender to be registered")
	}
	if _, ok := registry.Get(domain.ChannelWebhook); ok {
		t.Error("did not expect webhook sender to be registered")
	}
	if got := len(registry.Channels()); got != 3 {
		t.Errorf("Channels() len = %d, want 3", got)
	}
}
