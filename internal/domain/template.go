package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Template represents a reusable rendering rule for a notification type
type Template struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name            string             `json:"name" bson:"name"`
	Type            EventType          `json:"type" bson:"type"`
	TitleTemplate   string             `json:"title_template" bson:"title_template"`
	BodyTemplate    string             `json:"body_template" bson:"body_template"`
	Channels        []Channel          `json:"channels" bson:"channels"`
	DefaultPriority Priority           `json:"default_priority" bson:"default_priority"`
	Variables       []string           `json:"variables,omitempty" bson:"variables,omitempty"`
	IsActive        bool               `json:"is_active" bson:"is_active"`
	Version         int                `json:"version" bson:"version"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}
