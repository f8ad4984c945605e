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

const queueCollection = "notification_queue"

// QueueRepository handles queued notification data operations. The atomic
// pending-to-processing claim in ClaimNextDue is the system's sole
// mutual-exclusion point.
type QueueRepository struct {
	client *mongodb.MongoClient
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(client *mongodb.MongoClient) *QueueRepository {
	return &QueueRepository{client: client}
}

// EnsureIndexes creates necessary indexes
func (r *QueueRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "scheduled_at", Value: 1},
			},
			Options: options.Index().SetName("status_scheduled_idx"),
		},
		{
			Keys:    bson.D{{Key: "notification_id", Value: 1}},
			Options: options.Index().SetName("notification_idx"),
		},
	}

	return r.client.CreateIndexes(ctx, queueCollection, indexes)
}

// Create inserts a new queued notification
func (r *QueueRepository) Create(ctx context.Context, queued *domain.QueuedNotification) error {
	queued.ID = primitive.NewObjectID()
	if queued.Status == "" {
		queued.Status = domain.QueueStatusPending
	}
	if queued.MaxAttempts == 0 {
		queued.MaxAttempts = domain.DefaultMaxAttempts
	}
	queued.CreatedAt = time.Now()
	queued.UpdatedAt = time.Now()

	_, err := r.client.Collection(queueCollection).InsertOne(ctx, queued)
	return err
}

// FindByID finds a queued notification by ID
func (r *QueueRepository) FindByID(ctx context.Context, id string) (*domain.QueuedNotification, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var queued domain.QueuedNotification
	err = r.client.Collection(queueCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&queued)
	if err != nil {
		return nil, err
	}

	return &queued, nil
}

// ClaimNextDue atomically claims the earliest due pending row by flipping it
// to processing. Returns mongo.ErrNoDocuments via a nil row when nothing is
// due. Rows whose attempts reached max_attempts are never claimed.
func (r *QueueRepository) ClaimNextDue(ctx context.Context, now time.Time) (*domain.QueuedNotification, error) {
	filter := bson.M{
		"status":       domain.QueueStatusPending,
		"scheduled_at": bson.M{"$lte": now},
		"$expr":        bson.M{"$lt": bson.A{"$attempts", "$max_attempts"}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":          domain.QueueStatusProcessing,
			"last_attempt_at": now,
			"updated_at":      now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "scheduled_at", Value: 1}}).
		SetReturnDocument(options.After)

	var queued domain.QueuedNotification
	err := r.client.Collection(queueCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&queued)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &queued, nil
}

// MarkCompleted marks a claimed row as completed
func (r *QueueRepository) MarkCompleted(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$set": bson.M{
			"status":     domain.QueueStatusCompleted,
			"last_error": "",
			"updated_at": time.Now(),
		},
		"$inc": bson.M{"attempts": 1},
	}

	_, err := r.client.Collection(queueCollection).UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// ReleaseWithError counts the failed attempt and either reverts the row to
// pending for another poll cycle or, when the budget is spent, marks it
// terminally failed so no further automatic polling acts on it
func (r *QueueRepository) ReleaseWithError(ctx context.Context, queued *domain.QueuedNotification, errMsg string) error {
	status := domain.QueueStatusPending
	if queued.Attempts+1 >= queued.MaxAttempts {
		status = domain.QueueStatusFailed
	}

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"last_error": errMsg,
			"updated_at": time.Now(),
		},
		"$inc": bson.M{"attempts": 1},
	}

	_, err := r.client.Collection(queueCollection).UpdateOne(ctx, bson.M{"_id": queued.ID}, update)
	return err
}

// Retry resets a terminally failed row to pending for explicit operator
// retry, granting one more attempt beyond whatever was consumed
func (r *QueueRepository) Retry(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": objectID, "status": domain.QueueStatusFailed}
	update := []bson.M{
		{"$set": bson.M{
			"status":       domain.QueueStatusPending,
			"max_attempts": bson.M{"$add": bson.A{"$attempts", 1}},
			"updated_at":   "$$NOW",
		}},
	}

	result, err := r.client.Collection(queueCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrQueueExhausted
	}
	return nil
}

// ReleaseStuck reverts processing rows whose claim outlived the lease back
// to pending, recovering work lost to a crashed worker
func (r *QueueRepository) ReleaseStuck(ctx context.Context, lease time.Duration) (int64, error) {
	cutoff := time.Now().Add(-lease)
	filter := bson.M{
		"status":          domain.QueueStatusProcessing,
		"last_attempt_at": bson.M{"$lte": cutoff},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     domain.QueueStatusPending,
			"last_error": "processing lease expired",
			"updated_at": time.Now(),
		},
	}

	result, err := r.client.Collection(queueCollection).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// CancelPending removes the pending queue row for a notification. Claimed
// rows are left alone: a cancellation after claiming races naturally and the
// in-flight attempt simply completes.
func (r *QueueRepository) CancelPending(ctx context.Context, notificationID primitive.ObjectID) error {
	filter := bson.M{
		"notification_id": notificationID,
		"status":          domain.QueueStatusPending,
	}

	_, err := r.client.Collection(queueCollection).DeleteOne(ctx, filter)
	return err
}

// ListByStatus lists queue rows by status with pagination, earliest first
func (r *QueueRepository) ListByStatus(ctx context.Context, status domain.QueueStatus, page, pageSize int) ([]*domain.QueuedNotification, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.client.Collection(queueCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize)).
		SetSort(bson.M{"scheduled_at": 1})

	cursor, err := r.client.Collection(queueCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var rows []*domain.QueuedNotification
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// CountPending returns the number of rows awaiting dispatch, the scheduler's
// backpressure signal
func (r *QueueRepository) CountPending(ctx context.Context) (int64, error) {
	return r.client.Collection(queueCollection).CountDocuments(ctx, bson.M{
		"status": domain.QueueStatusPending,
	})
}

// DeleteFinishedBefore purges completed and failed rows older than the
// retention cutoff. Notification and delivery-attempt history is untouched.
func (r *QueueRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status": bson.M{"$in": []domain.QueueStatus{
			domain.QueueStatusCompleted,
			domain.QueueStatusFailed,
		}},
		"updated_at": bson.M{"$lte": cutoff},
	}

	result, err := r.client.Collection(queueCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
