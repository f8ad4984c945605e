package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QueueStatus represents the processing status of a queued notification
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// DefaultMaxAttempts bounds the scheduler's outer retry loop per queue row.
// It is independent of the per-channel inner retry inside a sender.
const DefaultMaxAttempts = 3

// QueuedNotification is a scheduling record for a notification that was not
// eligible for synchronous delivery
type QueuedNotification struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	NotificationID primitive.ObjectID `json:"notification_id" bson:"notification_id"`
	ScheduledAt    time.Time          `json:"scheduled_at" bson:"scheduled_at"`
	Status         QueueStatus        `json:"status" bson:"status"`
	Attempts       int                `json:"attempts" bson:"attempts"`
	MaxAttempts    int                `json:"max_attempts" bson:"max_attempts"`
	LastAttemptAt  *time.Time         `json:"last_attempt_at,omitempty" bson:"last_attempt_at,omitempty"`
	LastError      string             `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// AttemptsExhausted reports whether the outer retry budget is spent
func (q *QueuedNotification) AttemptsExhausted() bool {
	return q.Attempts >= q.MaxAttempts
}
