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

const notificationsCollection = "notifications"

// NotificationRepository handles notification data operations
type NotificationRepository struct {
	client *mongodb.MongoClient
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(client *mongodb.MongoClient) *NotificationRepository {
	return &NotificationRepository{client: client}
}

// EnsureIndexes creates indexes for the notification lookups the service performs
func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("recipient_created_idx"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "expires_at", Value: 1},
			},
			Options: options.Index().SetName("status_expires_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, notificationsCollection, indexes)
}

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now()
	notification.UpdatedAt = time.Now()

	_, err := r.client.Collection(notificationsCollection).InsertOne(ctx, notification)
	return err
}

// FindByID finds a notification by ID
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var notification domain.Notification
	err = r.client.Collection(notificationsCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&notification)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}

	return &notification, nil
}

// List finds notifications with optional filters and pagination
func (r *NotificationRepository) List(ctx context.Context, req *domain.ListNotificationsRequest) ([]*domain.Notification, int64, error) {
	filter := bson.M{}
	if req.RecipientID != "" {
		filter["recipient_id"] = req.RecipientID
	}
	if req.Type != "" {
		filter["type"] = req.Type
	}
	if req.Status != "" {
		filter["status"] = req.Status
	}

	total, err := r.client.Collection(notificationsCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (req.Page - 1) * req.PageSize
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(req.PageSize)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.client.Collection(notificationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var notifications []*domain.Notification
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// UpdateStatus updates the status of a notification
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.NotificationStatus) error {
	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now(),
		},
	}

	_, err := r.client.Collection(notificationsCollection).UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// FinishDispatch records the terminal outcome of a dispatch: final status,
// per-channel results, and delivered-at when at least one channel succeeded
func (r *NotificationRepository) FinishDispatch(ctx context.Context, id primitive.ObjectID, status domain.NotificationStatus, results map[domain.Channel]domain.ChannelResult, deliveredAt *time.Time) error {
	set := bson.M{
		"status":     status,
		"results":    results,
		"updated_at": time.Now(),
	}
	if deliveredAt != nil {
		set["delivered_at"] = deliveredAt
	}

	_, err := r.client.Collection(notificationsCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// MarkSending transitions a notification into sending. The filter keeps the
// transition monotonic: only pending or scheduled rows qualify, so a racing
// cancel cannot be overwritten and a terminal status is never reopened.
func (r *NotificationRepository) MarkSending(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id": id,
		"status": bson.M{"$in": []domain.NotificationStatus{
			domain.NotificationStatusPending,
			domain.NotificationStatusScheduled,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     domain.NotificationStatusSending,
			"updated_at": time.Now(),
		},
	}

	result, err := r.client.Collection(notificationsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// Cancel cancels a notification while it is still pending or scheduled
func (r *NotificationRepository) Cancel(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id": objectID,
		"status": bson.M{"$in": []domain.NotificationStatus{
			domain.NotificationStatusPending,
			domain.NotificationStatusScheduled,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     domain.NotificationStatusCancelled,
			"updated_at": time.Now(),
		},
	}

	result, err := r.client.Collection(notificationsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotCancellable
	}
	return nil
}

// ExpireDue marks terminal-delivered notifications whose expiry has passed
// as expired and returns the number of rows touched
func (r *NotificationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"expires_at": bson.M{"$ne": nil, "$lte": now},
		"status": bson.M{"$in": []domain.NotificationStatus{
			domain.NotificationStatusDelivered,
			domain.NotificationStatusPartiallyDelivered,
			domain.NotificationStatusFailed,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     domain.NotificationStatusExpired,
			"updated_at": now,
		},
	}

	result, err := r.client.Collection(notificationsCollection).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// CountByStatus aggregates notification counts per status for the stats read model
func (r *NotificationRepository) CountByStatus(ctx context.Context) (map[domain.NotificationStatus]int64, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.client.Collection(notificationsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status domain.NotificationStatus `bson:"_id"`
		Count  int64                     `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, 0, err
	}

	counts := make(map[domain.NotificationStatus]int64, len(rows))
	var total int64
	for _, row := range rows {
		counts[row.Status] = row.Count
		total += row.Count
	}
	return counts, total, nil
}

// CountByType aggregates notification counts per event type
func (r *NotificationRepository) CountByType(ctx context.Context) (map[domain.EventType]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$type",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.client.Collection(notificationsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Type  domain.EventType `bson:"_id"`
		Count int64            `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[domain.EventType]int64, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}
