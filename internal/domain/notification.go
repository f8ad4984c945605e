package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Channel represents a delivery transport
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelPush    Channel = "push"
	ChannelWebhook Channel = "webhook"
	ChannelInApp   Channel = "in_app"
)

// AllChannels lists every supported delivery channel
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelWebhook, ChannelInApp}

// IsValid reports whether the channel is one of the supported transports
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWebhook, ChannelInApp:
		return true
	}
	return false
}

// EventType represents the kind of host-application event that produced a notification
type EventType string

const (
	EventBookingConfirmed    EventType = "booking_confirmed"
	EventBookingCancelled    EventType = "booking_cancelled"
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventPaymentFailed       EventType = "payment_failed"
	EventReviewReceived      EventType = "review_received"
	EventModerationUpdate    EventType = "moderation_update"
	EventAccountVerification EventType = "account_verification"
	EventSystemAlert         EventType = "system_alert"
)

// Priority represents the urgency of a notification
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// NotificationStatus represents the lifecycle status of a notification
type NotificationStatus string

const (
	NotificationStatusPending            NotificationStatus = "pending"
	NotificationStatusScheduled          NotificationStatus = "scheduled"
	NotificationStatusSending            NotificationStatus = "sending"
	NotificationStatusDelivered          NotificationStatus = "delivered"
	NotificationStatusPartiallyDelivered NotificationStatus = "partially_delivered"
	NotificationStatusFailed             NotificationStatus = "failed"
	NotificationStatusCancelled          NotificationStatus = "cancelled"
	NotificationStatusExpired            NotificationStatus = "expired"
)

// IsTerminal reports whether no further delivery work applies to the status
func (s NotificationStatus) IsTerminal() bool {
	switch s {
	case NotificationStatusDelivered, NotificationStatusPartiallyDelivered,
		NotificationStatusFailed, NotificationStatusCancelled, NotificationStatusExpired:
		return true
	}
	return false
}

// ChannelResult captures the outcome of one channel delivery
type ChannelResult struct {
	Success     bool       `json:"success" bson:"success"`
	MessageID   string     `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Error       string     `json:"error,omitempty" bson:"error,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
}

// Notification represents one logical message instance
type Notification struct {
	ID          primitive.ObjectID        `json:"id" bson:"_id,omitempty"`
	Type        EventType                 `json:"type" bson:"type"`
	RecipientID string                    `json:"recipient_id" bson:"recipient_id"`
	Title       string                    `json:"title" bson:"title"`
	Body        string                    `json:"body" bson:"body"`
	Priority    Priority                  `json:"priority" bson:"priority"`
	Channels    []Channel                 `json:"channels" bson:"channels"`
	Status      NotificationStatus        `json:"status" bson:"status"`
	ScheduledAt *time.Time                `json:"scheduled_at,omitempty" bson:"scheduled_at,omitempty"`
	DeliveredAt *time.Time                `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	ExpiresAt   *time.Time                `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	Payload     map[string]any            `json:"payload,omitempty" bson:"payload,omitempty"`
	Metadata    map[string]any            `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Results     map[Channel]ChannelResult `json:"results,omitempty" bson:"results,omitempty"`
	Recipient   Recipient                 `json:"recipient" bson:"recipient"`
	CreatedAt   time.Time                 `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at" bson:"updated_at"`
}

// IsExpired reports whether the notification's expiry has passed
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// Recipient holds the contact points supplied by the event producer.
// Address resolution is the caller's concern; the subsystem only validates
// the address shape for the channels it is asked to use.
type Recipient struct {
	Email       string `json:"email,omitempty" bson:"email,omitempty"`
	Phone       string `json:"phone,omitempty" bson:"phone,omitempty"`
	WebhookURL  string `json:"webhook_url,omitempty" bson:"webhook_url,omitempty"`
	DeviceToken string `json:"device_token,omitempty" bson:"device_token,omitempty"`
}
