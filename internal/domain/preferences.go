package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationPreferences represents a user's delivery policy
type NotificationPreferences struct {
	ID             primitive.ObjectID             `json:"id" bson:"_id,omitempty"`
	UserID         string                         `json:"user_id" bson:"user_id"`
	EmailEnabled   bool                           `json:"email_enabled" bson:"email_enabled"`
	SMSEnabled     bool                           `json:"sms_enabled" bson:"sms_enabled"`
	PushEnabled    bool                           `json:"push_enabled" bson:"push_enabled"`
	WebhookEnabled bool                           `json:"webhook_enabled" bson:"webhook_enabled"`
	InAppEnabled   bool                           `json:"in_app_enabled" bson:"in_app_enabled"`
	QuietHours     QuietHours                     `json:"quiet_hours" bson:"quiet_hours"`
	TypeOverrides  map[EventType]map[Channel]bool `json:"type_overrides,omitempty" bson:"type_overrides,omitempty"`
	CreatedAt      time.Time                      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time                      `json:"updated_at" bson:"updated_at"`
}

// QuietHours is a per-user wall-clock window during which non-urgent
// deliveries are suppressed. Start after End is valid and wraps past midnight.
type QuietHours struct {
	Enabled  bool   `json:"enabled" bson:"enabled"`
	Start    string `json:"start" bson:"start"` // "22:00"
	End      string `json:"end" bson:"end"`     // "08:00"
	Timezone string `json:"timezone" bson:"timezone"`
}

// ChannelEnabled returns the global opt-in flag for a channel
func (p *NotificationPreferences) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelWebhook:
		return p.WebhookEnabled
	case ChannelInApp:
		return p.InAppEnabled
	}
	return false
}

// DefaultPreferences synthesizes the opt-in-by-default policy used when a
// user has never saved preferences
func DefaultPreferences(userID string) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:         userID,
		EmailEnabled:   true,
		SMSEnabled:     true,
		PushEnabled:    true,
		WebhookEnabled: true,
		InAppEnabled:   true,
		QuietHours:     QuietHours{Timezone: "UTC"},
		TypeOverrides:  make(map[EventType]map[Channel]bool),
	}
}
