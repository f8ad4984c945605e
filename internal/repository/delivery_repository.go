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

const (
	attemptsCollection = "notification_delivery_attempts"
	statusesCollection = "notification_delivery_statuses"
)

// DeliveryRepository is the delivery ledger: an append-only attempt history
// plus an upserted current-status row per (notification, channel) pair
type DeliveryRepository struct {
	client *mongodb.MongoClient
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(client *mongodb.MongoClient) *DeliveryRepository {
	return &DeliveryRepository{client: client}
}

// EnsureIndexes creates necessary indexes
func (r *DeliveryRepository) EnsureIndexes(ctx context.Context) error {
	attemptIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "notification_id", Value: 1},
				{Key: "channel", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("notification_channel_idx"),
		},
	}
	if err := r.client.CreateIndexes(ctx, attemptsCollection, attemptIndexes); err != nil {
		return err
	}

	statusIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "notification_id", Value: 1},
				{Key: "channel", Value: 1},
			},
			Options: options.Index().SetName("notification_channel_uniq").SetUnique(true),
		},
	}
	return r.client.CreateIndexes(ctx, statusesCollection, statusIndexes)
}

// RecordAttempt appends an attempt row and upserts the per-channel current
// status. History rows are never mutated; a new attempt is a new record.
func (r *DeliveryRepository) RecordAttempt(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	attempt.ID = primitive.NewObjectID()
	attempt.CreatedAt = time.Now()

	if _, err := r.client.Collection(attemptsCollection).InsertOne(ctx, attempt); err != nil {
		return err
	}

	filter := bson.M{
		"notification_id": attempt.NotificationID,
		"channel":         attempt.Channel,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     attempt.Status,
			"message_id": attempt.MessageID,
			"error":      attempt.Error,
			"updated_at": time.Now(),
		},
		"$setOnInsert": bson.M{
			"_id":             primitive.NewObjectID(),
			"notification_id": attempt.NotificationID,
			"channel":         attempt.Channel,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := r.client.Collection(statusesCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

// ListAttempts returns the full attempt history for a notification,
// newest first
func (r *DeliveryRepository) ListAttempts(ctx context.Context, notificationID string) ([]*domain.DeliveryAttempt, error) {
	objectID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.client.Collection(attemptsCollection).Find(ctx, bson.M{"notification_id": objectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attempts []*domain.DeliveryAttempt
	if err = cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}

	return attempts, nil
}

// ListStatuses returns the current per-channel statuses for a notification
func (r *DeliveryRepository) ListStatuses(ctx context.Context, notificationID string) ([]*domain.DeliveryStatus, error) {
	objectID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return nil, err
	}

	cursor, err := r.client.Collection(statusesCollection).Find(ctx, bson.M{"notification_id": objectID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var statuses []*domain.DeliveryStatus
	if err = cursor.All(ctx, &statuses); err != nil {
		return nil, err
	}

	return statuses, nil
}

// CountAttempts returns the number of ledger rows for a notification
func (r *DeliveryRepository) CountAttempts(ctx context.Context, notificationID primitive.ObjectID) (int64, error) {
	return r.client.Collection(attemptsCollection).CountDocuments(ctx, bson.M{
		"notification_id": notificationID,
	})
}

// ChannelCounts aggregates sent/failed counters per channel for the stats
// read model
func (r *DeliveryRepository) ChannelCounts(ctx context.Context) (map[domain.Channel]domain.ChannelStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"channel": "$channel", "status": "$status"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.client.Collection(attemptsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key struct {
			Channel domain.Channel       `bson:"channel"`
			Status  domain.DeliveryState `bson:"status"`
		} `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[domain.Channel]domain.ChannelStats)
	for _, row := range rows {
		stats := counts[row.Key.Channel]
		switch row.Key.Status {
		case domain.DeliveryStateSent:
			stats.Sent += row.Count
		case domain.DeliveryStateFailed:
			stats.Failed += row.Count
		}
		counts[row.Key.Channel] = stats
	}

	return counts, nil
}
