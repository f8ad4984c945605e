package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/channel"
	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/metrics"
	"github.com/vhvplatform/go-delivery-service/internal/shared/logger"
	"github.com/vhvplatform/go-delivery-service/internal/template"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationStore persists notifications and drives their status machine
type NotificationStore interface {
	Create(ctx context.Context, notification *domain.Notification) error
	FindByID(ctx context.Context, id string) (*domain.Notification, error)
	MarkSending(ctx context.Context, id primitive.ObjectID) (bool, error)
	FinishDispatch(ctx context.Context, id primitive.ObjectID, status domain.NotificationStatus, results map[domain.Channel]domain.ChannelResult, deliveredAt *time.Time) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.NotificationStatus) error
	Cancel(ctx context.Context, id string) error
}

// TemplateStore looks up rendering rules
type TemplateStore interface {
	FindByName(ctx context.Context, name string) (*domain.Template, error)
}

// QueueStore inserts and cancels scheduling records
type QueueStore interface {
	Create(ctx context.Context, queued *domain.QueuedNotification) error
	CancelPending(ctx context.Context, notificationID primitive.ObjectID) error
}

// Ledger appends delivery attempt rows
type Ledger interface {
	RecordAttempt(ctx context.Context, attempt *domain.DeliveryAttempt) error
}

// PreferenceFilter prunes candidate channels by the recipient's policy
type PreferenceFilter interface {
	AllowedChannels(ctx context.Context, userID string, channels []domain.Channel, typ domain.EventType, priority domain.Priority) ([]domain.Channel, error)
}

// Pusher delivers a lightweight event to a recipient's live connection
type Pusher interface {
	SendJSON(userID string, v any) bool
}

// Orchestrator resolves template and preferences for a dispatch request,
// fans out to the channel senders, and records every outcome in the
// delivery ledger
type Orchestrator struct {
	notifications NotificationStore
	templates     TemplateStore
	queue         QueueStore
	ledger        Ledger
	filter        PreferenceFilter
	registry      *channel.Registry
	hub           Pusher
	log           *logger.Logger

	timeout     time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewOrchestrator creates a new dispatch orchestrator
func NewOrchestrator(
	notifications NotificationStore,
	templates TemplateStore,
	queue QueueStore,
	ledger Ledger,
	filter PreferenceFilter,
	registry *channel.Registry,
	hub Pusher,
	timeout time.Duration,
	maxAttempts int,
	log *logger.Logger,
) *Orchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	return &Orchestrator{
		notifications: notifications,
		templates:     templates,
		queue:         queue,
		ledger:        ledger,
		filter:        filter,
		registry:      registry,
		hub:           hub,
		log:           log,
		timeout:       timeout,
		maxAttempts:   maxAttempts,
		now:           time.Now,
	}
}

// Dispatch creates a notification for the request and either delivers it
// immediately or queues it for its scheduled time. Template resolution
// failures abort before any notification exists; per-channel delivery
// failures are recorded in the ledger and never propagate to the caller.
func (o *Orchestrator) Dispatch(ctx context.Context, req *domain.DispatchRequest) (*domain.Notification, error) {
	title := req.Title
	body := req.Body
	priority := req.Priority
	channels := req.Channels

	if req.TemplateName != "" {
		tmpl, err := o.templates.FindByName(ctx, req.TemplateName)
		if err != nil {
			return nil, err
		}
		if missing := template.Missing(tmpl, req.Variables); len(missing) > 0 {
			return nil, domain.MissingVariableError(missing)
		}
		title = template.Apply(tmpl.TitleTemplate, req.Variables)
		body = template.Apply(tmpl.BodyTemplate, req.Variables)
		if len(channels) == 0 {
			channels = tmpl.Channels
		}
		if priority == "" {
			priority = tmpl.DefaultPriority
		}
	}

	if priority == "" {
		priority = domain.PriorityNormal
	}
	if len(channels) == 0 {
		channels = defaultChannels(req.Recipient)
	}

	allowed, err := o.filter.AllowedChannels(ctx, req.RecipientID, channels, req.Type, priority)
	if err != nil {
		return nil, err
	}

	notification := &domain.Notification{
		Type:        req.Type,
		RecipientID: req.RecipientID,
		Title:       title,
		Body:        body,
		Priority:    priority,
		Channels:    allowed,
		Status:      domain.NotificationStatusPending,
		ScheduledAt: req.ScheduledAt,
		ExpiresAt:   req.ExpiresAt,
		Payload:     req.Payload,
		Metadata:    req.Metadata,
		Recipient:   req.Recipient,
	}

	// An empty resolved channel set still creates the notification, as a
	// record that the event happened, but nothing will ever be attempted.
	if len(allowed) == 0 {
		notification.Status = domain.NotificationStatusCancelled
		if err := o.notifications.Create(ctx, notification); err != nil {
			return nil, err
		}
		metrics.DispatchesTotal.WithLabelValues(string(req.Type), string(notification.Status)).Inc()
		return notification, nil
	}

	if req.ScheduledAt != nil && req.ScheduledAt.After(o.now()) {
		notification.Status = domain.NotificationStatusScheduled
		if err := o.notifications.Create(ctx, notification); err != nil {
			return nil, err
		}
		queued := &domain.QueuedNotification{
			NotificationID: notification.ID,
			ScheduledAt:    *req.ScheduledAt,
			Status:         domain.QueueStatusPending,
			MaxAttempts:    o.maxAttempts,
		}
		if err := o.queue.Create(ctx, queued); err != nil {
			return nil, err
		}
		metrics.DispatchesTotal.WithLabelValues(string(req.Type), string(notification.Status)).Inc()
		return notification, nil
	}

	if err := o.notifications.Create(ctx, notification); err != nil {
		return nil, err
	}

	o.deliver(ctx, notification)
	metrics.DispatchesTotal.WithLabelValues(string(req.Type), string(notification.Status)).Inc()
	return notification, nil
}

// DispatchQueued re-drives a stored notification on behalf of the scheduler
func (o *Orchestrator) DispatchQueued(ctx context.Context, notificationID string) (*domain.Notification, error) {
	notification, err := o.notifications.FindByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if notification.Status.IsTerminal() {
		return notification, nil
	}

	if notification.IsExpired(o.now()) {
		if err := o.notifications.UpdateStatus(ctx, notification.ID, domain.NotificationStatusExpired); err != nil {
			return nil, err
		}
		notification.Status = domain.NotificationStatusExpired
		return notification, nil
	}

	o.deliver(ctx, notification)
	return notification, nil
}

// Cancel cancels a notification while it is still pending or scheduled and
// removes its unclaimed queue row. A row already claimed by a worker races
// naturally: the in-flight attempt completes and its result is simply never
// surfaced.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	if err := o.notifications.Cancel(ctx, id); err != nil {
		return err
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	return o.queue.CancelPending(ctx, objectID)
}

// deliver fans out to the channel senders under the dispatch deadline,
// records one attempt per channel, and persists the aggregate outcome
func (o *Orchestrator) deliver(ctx context.Context, notification *domain.Notification) {
	claimed, err := o.notifications.MarkSending(ctx, notification.ID)
	if err != nil {
		o.log.Error("Failed to mark notification sending", "id", notification.ID.Hex(), "error", err)
		return
	}
	if !claimed {
		// Lost the race to a cancel; nothing to do.
		return
	}
	notification.Status = domain.NotificationStatusSending

	sendCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	payload := &channel.Payload{
		NotificationID: notification.ID.Hex(),
		RecipientID:    notification.RecipientID,
		Title:          notification.Title,
		Body:           notification.Body,
		Priority:       notification.Priority,
		Recipient:      notification.Recipient,
		Data:           notification.Payload,
	}

	var mu sync.Mutex
	results := make(map[domain.Channel]domain.ChannelResult, len(notification.Channels))

	var wg sync.WaitGroup
	for _, ch := range notification.Channels {
		wg.Add(1)
		go func(ch domain.Channel) {
			defer wg.Done()
			result := o.sendOne(ctx, sendCtx, ch, payload, notification)
			mu.Lock()
			results[ch] = result
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
		}
	}

	status := domain.NotificationStatusFailed
	var deliveredAt *time.Time
	switch {
	case succeeded == len(results):
		status = domain.NotificationStatusDelivered
	case succeeded > 0:
		status = domain.NotificationStatusPartiallyDelivered
	}
	if succeeded > 0 {
		now := o.now()
		deliveredAt = &now
	}

	if err := o.notifications.FinishDispatch(ctx, notification.ID, status, results, deliveredAt); err != nil {
		o.log.Error("Failed to persist dispatch outcome", "id", notification.ID.Hex(), "error", err)
	}
	notification.Status = status
	notification.Results = results
	notification.DeliveredAt = deliveredAt

	if result, ok := results[domain.ChannelInApp]; ok && result.Success && o.hub != nil {
		o.hub.SendJSON(notification.RecipientID, map[string]any{
			"event":           "new_notification",
			"notification_id": notification.ID.Hex(),
			"type":            notification.Type,
			"title":           notification.Title,
			"priority":        notification.Priority,
		})
	}
}

// sendOne runs a single channel send under the dispatch deadline and
// appends its ledger row. The ledger write uses the parent context: a send
// that consumed the whole deadline must still have its timeout recorded.
func (o *Orchestrator) sendOne(ctx, sendCtx context.Context, ch domain.Channel, payload *channel.Payload, notification *domain.Notification) domain.ChannelResult {
	sender, ok := o.registry.Get(ch)

	var result *channel.Result
	provider := "none"
	if !ok {
		result = &channel.Result{Err: fmt.Errorf("%w: no sender registered for channel %s", domain.ErrInvalidChannelPayload, ch)}
	} else {
		provider = sender.Provider()
		start := o.now()
		result = sender.Send(sendCtx, payload)
		metrics.ChannelSendDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())
	}

	state := domain.DeliveryStateFailed
	outcome := "failed"
	if result.Success {
		state = domain.DeliveryStateSent
		outcome = "sent"
	}
	metrics.ChannelSendsTotal.WithLabelValues(string(ch), outcome).Inc()

	attempt := &domain.DeliveryAttempt{
		NotificationID: notification.ID,
		Channel:        ch,
		Provider:       provider,
		Status:         state,
		MessageID:      result.MessageID,
		Error:          result.ErrorText(),
		AttemptCount:   result.Attempts,
		LastAttemptAt:  o.now(),
		SentAt:         result.DeliveredAt,
	}
	if err := o.ledger.RecordAttempt(ctx, attempt); err != nil {
		o.log.Error("Failed to record delivery attempt", "id", notification.ID.Hex(), "channel", ch, "error", err)
	}

	if !result.Success {
		o.log.Warn("Channel delivery failed",
			"id", notification.ID.Hex(), "channel", ch, "error", result.ErrorText())
	}

	return domain.ChannelResult{
		Success:     result.Success,
		MessageID:   result.MessageID,
		Error:       result.ErrorText(),
		DeliveredAt: result.DeliveredAt,
	}
}

// defaultChannels picks the channels a request without an explicit list can
// actually reach: the in-app feed always, plus any transport the supplied
// contact points support
func defaultChannels(recipient domain.Recipient) []domain.Channel {
	channels := []domain.Channel{domain.ChannelInApp}
	if recipient.Email != "" {
		channels = append(channels, domain.ChannelEmail)
	}
	if recipient.Phone != "" {
		channels = append(channels, domain.ChannelSMS)
	}
	if recipient.DeviceToken != "" {
		channels = append(channels, domain.ChannelPush)
	}
	if recipient.WebhookURL != "" {
		channels = append(channels, domain.ChannelWebhook)
	}
	return channels
}
