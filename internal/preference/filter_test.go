package preference

import (
	"context"
	"testing"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
)

type stubStore struct {
	prefs *domain.NotificationPreferences
}

func (s *stubStore) GetByUserID(_ context.Context, userID string) (*domain.NotificationPreferences, error) {
	if s.prefs != nil {
		return s.prefs, nil
	}
	return domain.DefaultPreferences(userID), nil
}

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-10 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

// TestInQuietHours covers same-day and overnight windows
func TestInQuietHours(t *testing.T) {
	tests := []struct {
		name   string
		window domain.QuietHours
		now    time.Time
		want   bool
	}{
		{
			name:   "disabled window never matches",
			window: domain.QuietHours{Enabled: false, Start: "22:00", End: "08:00", Timezone: "UTC"},
			now:    at("23:30"),
			want:   false,
		},
		{
			name:   "same-day window inside",
			window: domain.QuietHours{Enabled: true, Start: "09:00", End: "17:00", Timezone: "UTC"},
			now:    at("12:00"),
			want:   true,
		},
		{
			name:   "same-day window outside",
			window: domain.QuietHours{Enabled: true, Start: "09:00", End: "17:00", Timezone: "UTC"},
			now:    at("18:30"),
			want:   false,
		},
		{
			name:   "overnight window late evening",
			window: domain.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "UTC"},
			now:    at("23:30"),
			want:   true,
		},
		{
			name:   "overnight window early morning",
			window: domain.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "UTC"},
			now:    at("06:15"),
			want:   true,
		},
		{
			name:   "overnight window midday",
			window: domain.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "UTC"},
			now:    at("12:00"),
			want:   false,
		},
		{
			name:   "window end is exclusive",
			window: domain.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "UTC"},
			now:    at("08:00"),
			want:   false,
		},
		{
			name:   "malformed start disables suppression",
			window: domain.QuietHours{Enabled: true, Start: "25:99", End: "08:00", Timezone: "UTC"},
			now:    at("23:30"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InQuietHours(tt.window, tt.now)
			if got != tt.want {
				t.Errorf("InQuietHours() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestInQuietHoursTimezone evaluates the window in the user's timezone,
// not the server's
func TestInQuietHoursTimezone(t *testing.T) {
	window := domain.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "America/New_York"}

	// 03:30 UTC is 22:30 or 23:30 in New York depending on DST; either way
	// it falls inside the overnight window.
	now := time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC)
	if !InQuietHours(window, now) {
		t.Error("expected 03:30 UTC to be inside the New York overnight window")
	}

	// 16:00 UTC is late morning in New York.
	now = time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)
	if InQuietHours(window, now) {
		t.Error("expected 16:00 UTC to be outside the New York overnight window")
	}
}

// TestShouldDeliver covers the decision order: global flag, quiet hours,
// type override, default
func TestShouldDeliver(t *testing.T) {
	basePrefs := func() *domain.NotificationPreferences {
		p := domain.DefaultPreferences("user-1")
		return p
	}

	t.Run("globally disabled channel loses", func(t *testing.T) {
		prefs := basePrefs()
		prefs.SMSEnabled = false
		filter := NewFilter(&stubStore{prefs: prefs})

		ok, err := filter.ShouldDeliver(context.Background(), "user-1", domain.ChannelSMS, domain.EventBookingConfirmed, domain.PriorityNormal)
		if err != nil {
			t.Fatalf("ShouldDeliver() error = %v", err)
		}
		if ok {
			t.Error("expected disabled channel to be blocked")
		}
	})

	t.Run("quiet hours suppress non-urgent", func(t *testing.T) {
		prefs := basePrefs()
		prefs.QuietHours = domain.QuietHours{Enabled: true, Start: "00:00", End: "23:59", Timezone: "UTC"}
		filter := NewFilter(&stubStore{prefs: prefs})

		ok, err := filter.ShouldDeliver(context.Background(), "user-1", domain.ChannelEmail, domain.EventBookingConfirmed, domain.PriorityNormal)
		if err != nil {
			t.Fatalf("ShouldDeliver() error = %v", err)
		}
		if ok {
			t.Error("expected quiet hours to block a normal-priority delivery")
		}
	})

	t.Run("urgent bypasses quiet hours", func(t *testing.T) {
		prefs := basePrefs()
		prefs.QuietHours = domain.QuietHours{Enabled: true, Start: "00:00", End: "23:59", Timezone: "UTC"}
		filter := NewFilter(&stubStore{prefs: prefs})

		ok, err := filter.ShouldDeliver(context.Background(), "user-1", domain.ChannelEmail, domain.EventSystemAlert, domain.PriorityUrgent)
		if err != nil {
			t.Fatalf("ShouldDeliver() error = %v", err)
		}
		if !ok {
			t.Error("expected urgent delivery to bypass quiet hours")
		}
	})

	t.Run("type override is authoritative", func(t *testing.T) {
		prefs := basePrefs()
		prefs.TypeOverrides = map[domain.EventType]map[domain.Channel]bool{
			domain.EventReviewReceived: {domain.ChannelEmail: false},
		}
		filter := NewFilter(&stubStore{prefs: prefs})

		ok, err := filter.ShouldDeliver(context.Background(), "user-1", domain.ChannelEmail, domain.EventReviewReceived, domain.PriorityNormal)
		if err != nil {
			t.Fatalf("ShouldDeliver() error = %v", err)
		}
		if ok {
			t.Error("expected per-type override to block the channel")
		}

		// Other types are unaffected by the override.
		ok, _ = filter.ShouldDeliver(context.Background(), "user-1", domain.ChannelEmail, domain.EventBookingConfirmed, domain.PriorityNormal)
		if !ok {
			t.Error("expected other event types to default to allowed")
		}
	})

	t.Run("defaults allow", func(t *testing.T) {
		filter := NewFilter(&stubStore{})

		ok, err := filter.ShouldDeliver(context.Background(), "user-1", domain.ChannelInApp, domain.EventBookingConfirmed, domain.PriorityNormal)
		if err != nil {
			t.Fatalf("ShouldDeliver() error = %v", err)
		}
		if !ok {
			t.Error("expected default policy to allow delivery")
		}
	})
}

// TestAllowedChannels prunes the candidate set preserving order
func TestAllowedChannels(t *testing.T) {
	prefs := domain.DefaultPreferences("user-1")
	prefs.SMSEnabled = false
	prefs.WebhookEnabled = false
	filter := NewFilter(&stubStore{prefs: prefs})

	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelWebhook, domain.ChannelInApp}
	allowed, err := filter.AllowedChannels(context.Background(), "user-1", channels, domain.EventBookingConfirmed, domain.PriorityNormal)
	if err != nil {
		t.Fatalf("AllowedChannels() error = %v", err)
	}

	want := []domain.Channel{domain.ChannelEmail, domain.ChannelInApp}
	if len(allowed) != len(want) {
		t.Fatalf("AllowedChannels() = %v, want %v", allowed, want)
	}
	for i := range want {
		if allowed[i] != want[i] {
			t.Errorf("AllowedChannels()[%d] = %v, want %v", i, allowed[i], want[i])
		}
	}
}
