package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveryState represents the state of one delivery attempt
type DeliveryState string

const (
	DeliveryStatePending DeliveryState = "pending"
	DeliveryStateSent    DeliveryState = "sent"
	DeliveryStateFailed  DeliveryState = "failed"
	DeliveryStateRetry   DeliveryState = "retry"
)

// DeliveryAttempt is one append-only ledger row per (notification, channel, try).
// A new attempt always creates a new record; history is never rewritten.
type DeliveryAttempt struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	NotificationID primitive.ObjectID `json:"notification_id" bson:"notification_id"`
	Channel        Channel            `json:"channel" bson:"channel"`
	Provider       string             `json:"provider" bson:"provider"`
	Status         DeliveryState      `json:"status" bson:"status"`
	MessageID      string             `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Error          string             `json:"error,omitempty" bson:"error,omitempty"`
	AttemptCount   int                `json:"attempt_count" bson:"attempt_count"`
	LastAttemptAt  time.Time          `json:"last_attempt_at" bson:"last_attempt_at"`
	SentAt         *time.Time         `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// DeliveryStatus is the current queryable state per (notification, channel)
// pair, upserted from the latest attempt
type DeliveryStatus struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	NotificationID primitive.ObjectID `json:"notification_id" bson:"notification_id"`
	Channel        Channel            `json:"channel" bson:"channel"`
	Status         DeliveryState      `json:"status" bson:"status"`
	MessageID      string             `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Error          string             `json:"error,omitempty" bson:"error,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// DeliveryStats is the aggregated statistics read model fed by the ledger
type DeliveryStats struct {
	Total      int64                        `json:"total"`
	ByStatus   map[NotificationStatus]int64 `json:"by_status"`
	ByType     map[EventType]int64          `json:"by_type"`
	ByChannel  map[Channel]ChannelStats     `json:"by_channel"`
	QueueDepth int64                        `json:"queue_depth"`
}

// ChannelStats holds per-channel send counters
type ChannelStats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}
