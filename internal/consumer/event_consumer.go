package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/metrics"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
	"github.com/vhvplatform/go-delivery-service/internal/shared/rabbitmq"
)

const (
	exchangeName = "platform.events"
	queueName    = "delivery-service.events"
	bindingKey   = "#"

	dispatchTimeout = 60 * time.Second
)

// Dispatcher accepts dispatch requests produced from platform events
type Dispatcher interface {
	Dispatch(ctx context.Context, req *domain.DispatchRequest) (*domain.Notification, error)
}

// platformEvent is the envelope other services publish on the topic exchange
type platformEvent struct {
	UserID       string            `json:"user_id"`
	TemplateName string            `json:"template_name"`
	Variables    map[string]string `json:"variables"`
	Channels     []domain.Channel  `json:"channels"`
	Priority     domain.Priority   `json:"priority"`
	ScheduledAt  *time.Time        `json:"scheduled_at"`
	Payload      map[string]any    `json:"payload"`
	Recipient    domain.Recipient  `json:"recipient"`
}

// routingMap translates event routing keys to notification event types.
// Keys absent from the map are acknowledged and dropped; the binding is a
// wildcard so unrelated traffic on the exchange is expected.
var routingMap = map[string]domain.EventType{
	"booking.confirmed":  domain.EventBookingConfirmed,
	"booking.cancelled":  domain.EventBookingCancelled,
	"payment.succeeded":  domain.EventPaymentSucceeded,
	"payment.failed":     domain.EventPaymentFailed,
	"review.created":     domain.EventReviewReceived,
	"moderation.decided": domain.EventModerationUpdate,
	"user.verification":  domain.EventAccountVerification,
	"system.alert":       domain.EventSystemAlert,
}

// EventConsumer turns platform events from the message bus into
// notification dispatches
type EventConsumer struct {
	client     *rabbitmq.Client
	dispatcher Dispatcher
	log        *logger.Logger
	done       chan struct{}
}

// NewEventConsumer creates a consumer over an established RabbitMQ client
func NewEventConsumer(client *rabbitmq.Client, dispatcher Dispatcher, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		client:     client,
		dispatcher: dispatcher,
		log:        log,
		done:       make(chan struct{}),
	}
}

// Start declares the topology and consumes until the context is cancelled
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := c.client.DeclareTopology(exchangeName, queueName, bindingKey); err != nil {
		return fmt.Errorf("failed to declare topology: %w", err)
	}

	messages, err := c.client.Consume(queueName, "delivery-service")
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					c.log.Warn("Event channel closed by broker")
					return
				}
				c.handle(ctx, &msg)
			}
		}
	}()

	c.log.Info("Event consumer started", "exchange", exchangeName, "queue", queueName)
	return nil
}

// Wait blocks until the consume loop has drained
func (c *EventConsumer) Wait() {
	<-c.done
}

func (c *EventConsumer) handle(ctx context.Context, msg *rabbitmq.Message) {
	eventType, ok := routingMap[msg.RoutingKey]
	if !ok {
		metrics.ConsumerEventsTotal.WithLabelValues(msg.RoutingKey, "ignored").Inc()
		if err := msg.Ack(); err != nil {
			c.log.Error("Failed to ack ignored event", "routing_key", msg.RoutingKey, "error", err)
		}
		return
	}

	var event platformEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		// Malformed payloads never become parseable; drop without requeue.
		c.log.Error("Failed to decode platform event", "routing_key", msg.RoutingKey, "error", err)
		metrics.ConsumerEventsTotal.WithLabelValues(msg.RoutingKey, "malformed").Inc()
		if err := msg.Nack(false); err != nil {
			c.log.Error("Failed to nack malformed event", "error", err)
		}
		return
	}

	if event.UserID == "" {
		c.log.Error("Platform event missing user_id", "routing_key", msg.RoutingKey)
		metrics.ConsumerEventsTotal.WithLabelValues(msg.RoutingKey, "malformed").Inc()
		if err := msg.Nack(false); err != nil {
			c.log.Error("Failed to nack malformed event", "error", err)
		}
		return
	}

	req := &domain.DispatchRequest{
		Type:         eventType,
		RecipientID:  event.UserID,
		TemplateName: event.TemplateName,
		Variables:    event.Variables,
		Channels:     event.Channels,
		Priority:     event.Priority,
		ScheduledAt:  event.ScheduledAt,
		Payload:      event.Payload,
		Recipient:    event.Recipient,
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	notification, err := c.dispatcher.Dispatch(dispatchCtx, req)
	if err != nil {
		c.log.Error("Failed to dispatch from event",
			"routing_key", msg.RoutingKey, "user_id", event.UserID, "error", err)
		metrics.ConsumerEventsTotal.WithLabelValues(msg.RoutingKey, "failed").Inc()
		// Transient infrastructure errors get a requeue; bad requests do not.
		if err := msg.Nack(domain.IsTransient(err)); err != nil {
			c.log.Error("Failed to nack event", "error", err)
		}
		return
	}

	metrics.ConsumerEventsTotal.WithLabelValues(msg.RoutingKey, "dispatched").Inc()
	c.log.Info("Dispatched notification from event",
		"routing_key", msg.RoutingKey,
		"notification_id", notification.ID.Hex(),
		"status", notification.Status)

	if err := msg.Ack(); err != nil {
		c.log.Error("Failed to ack event", "routing_key", msg.RoutingKey, "error", err)
	}
}
