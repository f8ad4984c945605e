package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-delivery-service/internal/domain"
	"github.com/vhvplatform/go-delivery-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const preferencesCollection = "notification_preferences"

// PreferencesRepository handles notification preferences data operations
type PreferencesRepository struct {
	client *mongodb.MongoClient
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(client *mongodb.MongoClient) *PreferencesRepository {
	return &PreferencesRepository{client: client}
}

// EnsureIndexes creates necessary indexes
func (r *PreferencesRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("user_idx").SetUnique(true),
		},
	}

	return r.client.CreateIndexes(ctx, preferencesCollection, indexes)
}

// GetByUserID retrieves preferences for a user, synthesizing the
// opt-in-by-default policy when no row exists
func (r *PreferencesRepository) GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	var prefs domain.NotificationPreferences
	filter := bson.M{"user_id": userID}
	err := r.client.Collection(preferencesCollection).FindOne(ctx, filter).Decode(&prefs)

	if err == mongo.ErrNoDocuments {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, err
	}

	return &prefs, nil
}

// Upsert creates or replaces a user's preferences
func (r *PreferencesRepository) Upsert(ctx context.Context, prefs *domain.NotificationPreferences) error {
	now := time.Now()
	prefs.UpdatedAt = now

	filter := bson.M{"user_id": prefs.UserID}
	update := bson.M{
		"$set": bson.M{
			"email_enabled":   prefs.EmailEnabled,
			"sms_enabled":     prefs.SMSEnabled,
			"push_enabled":    prefs.PushEnabled,
			"webhook_enabled": prefs.WebhookEnabled,
			"in_app_enabled":  prefs.InAppEnabled,
			"quiet_hours":     prefs.QuietHours,
			"type_overrides":  prefs.TypeOverrides,
			"updated_at":      now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"user_id":    prefs.UserID,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := r.client.Collection(preferencesCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

// Delete removes a user's preferences, used on account deletion
func (r *PreferencesRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.client.Collection(preferencesCollection).DeleteOne(ctx, bson.M{"user_id": userID})
	return err
}
