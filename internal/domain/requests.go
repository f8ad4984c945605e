package domain

import "time"

// DispatchRequest is the orchestrator's input: either a template name plus
// variables, or an explicit title/body
type DispatchRequest struct {
	Type         EventType         `json:"type" binding:"required"`
	RecipientID  string            `json:"recipient_id" binding:"required"`
	TemplateName string            `json:"template_name,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
	Title        string            `json:"title,omitempty"`
	Body         string            `json:"body,omitempty"`
	Channels     []Channel         `json:"channels,omitempty"`
	Priority     Priority          `json:"priority,omitempty"`
	ScheduledAt  *time.Time        `json:"scheduled_at,omitempty"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	Payload      map[string]any    `json:"payload,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	Recipient    Recipient         `json:"recipient"`
}

// UpsertTemplateRequest creates or updates a template by name. Re-creating
// an existing name updates the resource instead of raising a conflict.
type UpsertTemplateRequest struct {
	Name            string    `json:"name" binding:"required"`
	Type            EventType `json:"type" binding:"required"`
	TitleTemplate   string    `json:"title_template" binding:"required"`
	BodyTemplate    string    `json:"body_template" binding:"required"`
	Channels        []Channel `json:"channels,omitempty"`
	DefaultPriority Priority  `json:"default_priority,omitempty"`
	Variables       []string  `json:"variables,omitempty"`
}

// UpdatePreferencesRequest replaces a user's delivery policy
type UpdatePreferencesRequest struct {
	EmailEnabled   *bool                          `json:"email_enabled,omitempty"`
	SMSEnabled     *bool                          `json:"sms_enabled,omitempty"`
	PushEnabled    *bool                          `json:"push_enabled,omitempty"`
	WebhookEnabled *bool                          `json:"webhook_enabled,omitempty"`
	InAppEnabled   *bool                          `json:"in_app_enabled,omitempty"`
	QuietHours     *QuietHours                    `json:"quiet_hours,omitempty"`
	TypeOverrides  map[EventType]map[Channel]bool `json:"type_overrides,omitempty"`
}

// ListNotificationsRequest filters the notification history
type ListNotificationsRequest struct {
	RecipientID string             `form:"recipient_id"`
	Type        EventType          `form:"type"`
	Status      NotificationStatus `form:"status"`
	Page        int                `form:"page"`
	PageSize    int                `form:"page_size"`
}
