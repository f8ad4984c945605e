package channel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
)

func newTestSMSSender() *SMSSender {
	return NewSMSSender(SMSConfig{Provider: "log"}, 3, time.Millisecond, nil, logger.NewLogger())
}

// TestSMSValidate covers the phone pattern and length ceiling
func TestSMSValidate(t *testing.T) {
	sender := newTestSMSSender()

	tests := []struct {
		name    string
		phone   string
		body    string
		wantErr bool
	}{
		{name: "valid international", phone: "+15551234567", body: "hi", wantErr: false},
		{name: "valid without plus", phone: "15551234567", body: "hi", wantErr: false},
		{name: "empty phone", phone: "", body: "hi", wantErr: true},
		{name: "letters in phone", phone: "+1555CALLNOW", body: "hi", wantErr: true},
		{name: "too short", phone: "+1234", body: "hi", wantErr: true},
		{name: "leading zero", phone: "+05551234567", body: "hi", wantErr: true},
		{name: "empty body", phone: "+15551234567", body: "", wantErr: true},
		{name: "body at ceiling", phone: "+15551234567", body: strings.Repeat("a", maxSMSLength), wantErr: false},
		{name: "body over ceiling", phone: "+15551234567", body: strings.Repeat("a", maxSMSLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payload{
				Body:      tt.body,
				Recipient: domain.Recipient{Phone: tt.phone},
			}
			err := sender.Validate(p)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestSMSSendLogProvider delivers via the log provider
func TestSMSSendLogProvider(t *testing.T) {
	sender := newTestSMSSender()

	result := sender.Send(context.Background(), &Payload{
		Body:      "Your booking is confirmed",
		Recipient: domain.Recipient{Phone: "+15551234567"},
	})

	if !result.Success {
		t.Fatalf("Send() failed: %v", result.Err)
	}
	if result.MessageID == "" {
		t.Error("expected a message id")
	}
}

// TestSMSSendUnknownProvider fails without consuming the retry budget
func TestSMSSendUnknownProvider(t *testing.T) {
	sender := NewSMSSender(SMSConfig{Provider: "carrier-pigeon"}, 3, time.Millisecond, nil, logger.NewLogger())

	result := sender.Send(context.Background(), &Payload{
		Body:      "hello",
		Recipient: domain.Recipient{Phone: "+15551234567"},
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if !errors.Is(result.Err, domain.ErrTransportFailure) {
		t.Errorf("expected transport failure, got %v", result.Err)
	}
}

// TestSMSSendInvalidPayloadNotRetried verifies validation failures are not
// retried and carry the invalid payload classification
func TestSMSSendInvalidPayloadNotRetried(t *testing.T) {
	sender := newTestSMSSender()

	result := sender.Send(context.Background(), &Payload{
		Body:      "hello",
		Recipient: domain.Recipient{Phone: "bogus"},
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", result.Attempts)
	}
	if !errors.Is(result.Err, domain.ErrInvalidChannelPayload) {
		t.Errorf("expected invalid payload error, got %v", result.Err)
	}
}
